// Package messages renders verdict reasons as short user-facing texts.
package messages

import (
	"context"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/example/idcard-check/internal/document"
)

var translations = map[language.Tag]map[document.Reason]string{
	language.English: {
		document.ReasonDocumentValid: "✅ Document is valid",
		document.ReasonFaceDetected:  "✅ Face detected",
		document.ReasonNoFace:        "⛔ No face detected",
		document.ReasonTextNotFound:  "⛔ ID card text not found",
		document.ReasonCaptureFailed: "⛔ Photo was not captured",
		document.ReasonLoadFailed:    "⛔ Failed to load photo",
	},
	language.Russian: {
		document.ReasonDocumentValid: "✅ Паспорт валидный",
		document.ReasonFaceDetected:  "✅ Лицо обнаружено",
		document.ReasonNoFace:        "⛔ Лицо не обнаружено",
		document.ReasonTextNotFound:  "⛔ Текст ID-карты не найден",
		document.ReasonCaptureFailed: "⛔ Фото не получено",
		document.ReasonLoadFailed:    "⛔ Не удалось загрузить фото",
	},
}

// Catalog maps reasons to messages in the supported languages. English is the
// fallback for anything the client does not ask for explicitly.
type Catalog struct {
	builder   *catalog.Builder
	supported []language.Tag
	matcher   language.Matcher
}

// NewCatalog builds the catalog with the built-in translations.
func NewCatalog() *Catalog {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	supported := []language.Tag{language.English, language.Russian}
	for _, tag := range supported {
		for reason, text := range translations[tag] {
			// Texts contain no format verbs, so SetString cannot fail here.
			_ = builder.SetString(tag, string(reason), text)
		}
	}
	return &Catalog{
		builder:   builder,
		supported: supported,
		matcher:   language.NewMatcher(supported),
	}
}

// Match picks the best supported language for an Accept-Language header value.
func (c *Catalog) Match(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, index, confidence := c.matcher.Match(tags...)
	if confidence == language.No {
		return language.English
	}
	return c.supported[index]
}

// Text renders the message for reason in lang.
func (c *Catalog) Text(lang language.Tag, reason document.Reason) string {
	printer := message.NewPrinter(lang, message.Catalog(c.builder))
	return printer.Sprintf(string(reason))
}

type languageKey struct{}

// WithLanguage tags ctx with the language messages should be rendered in.
func WithLanguage(ctx context.Context, lang language.Tag) context.Context {
	return context.WithValue(ctx, languageKey{}, lang)
}

// Render renders reason in the language carried by ctx, English otherwise.
func (c *Catalog) Render(ctx context.Context, reason document.Reason) string {
	lang, ok := ctx.Value(languageKey{}).(language.Tag)
	if !ok {
		lang = language.English
	}
	return c.Text(lang, reason)
}

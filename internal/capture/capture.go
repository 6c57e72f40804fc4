// Package capture coordinates one capture cycle: request a photo of a side,
// load it once it arrives, run the validation policy and tell the user.
package capture

import (
	"context"
	"image"

	"github.com/example/idcard-check/internal/document"
)

// Request is one outstanding capture of a side.
type Request struct {
	ID            string
	Side          document.Side
	DestinationID string
}

// Result is what a capture provider reports back.
type Result struct {
	Success  bool
	Location string
}

// Outcome is the end of a capture cycle. Evaluated is false when the cycle
// stopped before the policy ran (capture or load failure).
type Outcome struct {
	RequestID string
	Side      document.Side
	Result    document.Result
	Message   string
	Evaluated bool
}

// Provider produces a photo into the named destination.
type Provider interface {
	RequestCapture(ctx context.Context, destinationID string) (Result, error)
}

// Loader turns a stored capture back into an image and discards it afterwards.
type Loader interface {
	Load(ctx context.Context, location string) (image.Image, error)
	Remove(ctx context.Context, location string) error
}

// Evaluator is the validation policy.
type Evaluator interface {
	Evaluate(ctx context.Context, side document.Side, img image.Image) (document.Result, error)
}

// Notifier shows a short message to the user. Delivery is fire-and-forget.
type Notifier interface {
	ShowMessage(ctx context.Context, text string)
}

// Renderer turns a reason into user-facing text.
type Renderer interface {
	Render(ctx context.Context, reason document.Reason) string
}

type ownerKey struct{}

// WithOwner tags ctx with the user a capture cycle belongs to.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFrom returns the owner stored by WithOwner.
func OwnerFrom(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	return owner, ok && owner != ""
}

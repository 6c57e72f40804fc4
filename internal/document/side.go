// Package document holds the capture vocabulary shared by the coordinator,
// the validation policy and the HTTP layer.
package document

import (
	"errors"
	"fmt"
	"strings"
)

// Side identifies what a capture is supposed to show.
type Side string

const (
	Front Side = "FRONT"
	Back  Side = "BACK"
	Face  Side = "FACE"
)

// ErrUnknownSide is returned when a side name cannot be parsed.
var ErrUnknownSide = errors.New("unknown document side")

// Sides lists every supported side in display order.
func Sides() []Side {
	return []Side{Front, Back, Face}
}

// ParseSide parses a side name case-insensitively.
func ParseSide(raw string) (Side, error) {
	side := Side(strings.ToUpper(strings.TrimSpace(raw)))
	if !side.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSide, raw)
	}
	return side, nil
}

// Valid reports whether s is one of the supported sides.
func (s Side) Valid() bool {
	switch s {
	case Front, Back, Face:
		return true
	}
	return false
}

// DestinationID is the storage name a capture of this side is written to.
// Each side gets its own name so captures of different sides never collide.
func (s Side) DestinationID() string {
	return string(s) + "_photo.jpg"
}

func (s Side) String() string {
	return string(s)
}

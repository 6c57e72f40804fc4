// Package detection wraps the face detector and text recognizer behind
// single-shot operations that never fail: provider errors are logged and
// turned into the negative result of the operation.
package detection

import (
	"context"
	"image"
)

// Mode selects the speed/accuracy trade-off of a face detector.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeAccurate Mode = "accurate"
)

// Level toggles optional face detector outputs.
type Level string

const (
	LevelNone Level = "none"
	LevelAll  Level = "all"
)

// Options configures a face detection call.
type Options struct {
	Mode           Mode
	Landmarks      Level
	Classification Level
}

// FastOptions trades precision for latency.
var FastOptions = Options{Mode: ModeFast, Landmarks: LevelNone, Classification: LevelNone}

// AccurateOptions asks the detector for everything it can do.
var AccurateOptions = Options{Mode: ModeAccurate, Landmarks: LevelAll, Classification: LevelAll}

// Preset resolves a preset name; anything other than "accurate" is fast.
func Preset(name string) Options {
	if Mode(name) == ModeAccurate {
		return AccurateOptions
	}
	return FastOptions
}

// Face is one detection. Only the count matters to validation.
type Face struct {
	Bounds     image.Rectangle
	Confidence float64
}

// FaceDetector finds faces in an image.
type FaceDetector interface {
	Detect(ctx context.Context, img image.Image, opts Options) ([]Face, error)
}

// TextRecognizer returns the full text it can read in an image.
type TextRecognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Package opencv detects faces locally with OpenCV Haar cascades.
package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"github.com/example/idcard-check/internal/detection"
)

const (
	faceCascadeFile = "haarcascade_frontalface_alt.xml"
	eyeCascadeFile  = "haarcascade_eye.xml"
)

var fallbackCascadeDirs = []string{
	"/usr/local/share/opencv4/haarcascades",
	"/usr/share/opencv4/haarcascades",
	"/opt/homebrew/share/opencv4/haarcascades",
}

// FaceDetector implements detection.FaceDetector. The cascades are not safe
// for concurrent use, so calls are serialised.
type FaceDetector struct {
	mu          sync.Mutex
	faceCascade gocv.CascadeClassifier
	eyeCascade  gocv.CascadeClassifier
	hasEyes     bool
}

// NewFaceDetector loads the cascades from dir, falling back to the usual
// system locations.
func NewFaceDetector(dir string) (*FaceDetector, error) {
	d := &FaceDetector{
		faceCascade: gocv.NewCascadeClassifier(),
		eyeCascade:  gocv.NewCascadeClassifier(),
	}
	if !loadCascade(&d.faceCascade, dir, faceCascadeFile) {
		d.Close()
		return nil, fmt.Errorf("load %s from %s or system paths", faceCascadeFile, dir)
	}
	d.hasEyes = loadCascade(&d.eyeCascade, dir, eyeCascadeFile)
	return d, nil
}

func loadCascade(c *gocv.CascadeClassifier, dir, name string) bool {
	for _, candidate := range append([]string{dir}, fallbackCascadeDirs...) {
		if candidate == "" {
			continue
		}
		path := filepath.Join(candidate, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if c.Load(path) {
			return true
		}
	}
	return false
}

// Close releases the native classifiers.
func (d *FaceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return errors.Join(d.faceCascade.Close(), d.eyeCascade.Close())
}

// Detect finds faces in img. The accurate preset equalises the histogram and
// uses stricter cascade parameters; with all landmarks requested, candidates
// without a detectable eye are dropped when the eye cascade is available.
func (d *FaceDetector) Detect(ctx context.Context, img image.Image, opts detection.Options) ([]detection.Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)

	d.mu.Lock()
	defer d.mu.Unlock()

	var rects []image.Rectangle
	if opts.Mode == detection.ModeAccurate {
		equalized := gocv.NewMat()
		defer equalized.Close()
		gocv.EqualizeHist(gray, &equalized)
		rects = d.faceCascade.DetectMultiScaleWithParams(equalized, 1.1, 5, 0, image.Pt(30, 30), image.Pt(0, 0))
		if opts.Landmarks == detection.LevelAll && d.hasEyes {
			rects = d.withEyes(equalized, rects)
		}
	} else {
		rects = d.faceCascade.DetectMultiScale(gray)
	}

	faces := make([]detection.Face, 0, len(rects))
	for _, r := range rects {
		faces = append(faces, detection.Face{Bounds: r, Confidence: 1})
	}
	return faces, nil
}

func (d *FaceDetector) withEyes(gray gocv.Mat, rects []image.Rectangle) []image.Rectangle {
	kept := rects[:0]
	for _, r := range rects {
		region := gray.Region(r)
		eyes := d.eyeCascade.DetectMultiScale(region)
		region.Close()
		if len(eyes) > 0 {
			kept = append(kept, r)
		}
	}
	return kept
}

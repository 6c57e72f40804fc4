package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Saver stores captured bytes under an owner's destination.
type Saver interface {
	Save(ctx context.Context, owner, destinationID string, data []byte) (string, error)
}

// BytesProvider hands over a photo that has already been received, for
// example an HTTP upload.
type BytesProvider struct {
	Store Saver
	Owner string
	Data  []byte
}

// RequestCapture stores the bytes in the destination. No bytes means the
// user captured nothing.
func (p BytesProvider) RequestCapture(ctx context.Context, destinationID string) (Result, error) {
	if len(p.Data) == 0 {
		return Result{}, nil
	}
	location, err := p.Store.Save(ctx, p.Owner, destinationID, p.Data)
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, Location: location}, nil
}

// FileProvider captures by reading an existing photo from disk.
type FileProvider struct {
	Store Saver
	Owner string
	Path  string
}

// RequestCapture copies the file into the destination. A missing file is a
// failed capture rather than an error.
func (p FileProvider) RequestCapture(ctx context.Context, destinationID string) (Result, error) {
	data, err := os.ReadFile(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", p.Path, err)
	}
	return BytesProvider{Store: p.Store, Owner: p.Owner, Data: data}.RequestCapture(ctx, destinationID)
}

package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/idcard-check/internal/imaging"
)

// ErrOutsideStore is returned for locations that do not belong to the store.
var ErrOutsideStore = errors.New("location outside capture store")

// captureDirPattern names the per-save directory under an owner.
const captureDirPattern = "capture-*"

// FileStore keeps captured photos on the local filesystem, one directory per
// owner and one subdirectory per save, holding the destination file.
type FileStore struct {
	root string
}

// NewFileStore creates root if needed.
func NewFileStore(root string) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve capture dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	return &FileStore{root: abs}, nil
}

// Save writes data to the owner's destination and returns its location.
// Every save gets its own location, so two captures of the same destination
// never share a file.
func (s *FileStore) Save(ctx context.Context, owner, destinationID string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ownerDir := filepath.Join(s.root, safeName(owner))
	if err := os.MkdirAll(ownerDir, 0o700); err != nil {
		return "", fmt.Errorf("create owner dir: %w", err)
	}
	dir, err := os.MkdirTemp(ownerDir, captureDirPattern)
	if err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}

	location := filepath.Join(dir, safeName(destinationID))
	if err := os.WriteFile(location, data, 0o600); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("write capture: %w", err)
	}
	return location, nil
}

// Load decodes the photo stored at location.
func (s *FileStore) Load(ctx context.Context, location string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.owns(location) {
		return nil, ErrOutsideStore
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	return imaging.Decode(data)
}

// Remove deletes the photo at location along with its capture directory.
// Missing files are not an error.
func (s *FileStore) Remove(ctx context.Context, location string) error {
	if !s.owns(location) {
		return ErrOutsideStore
	}
	if err := os.Remove(location); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove capture: %w", err)
	}
	dir := filepath.Dir(location)
	if matched, _ := filepath.Match(captureDirPattern, filepath.Base(dir)); matched && s.owns(dir) {
		if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove capture dir: %w", err)
		}
	}
	return nil
}

func (s *FileStore) owns(location string) bool {
	rel, err := filepath.Rel(s.root, filepath.Clean(location))
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

// safeName keeps names to a single path element.
func safeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
	name = strings.Trim(name, ".")
	if name == "" {
		return "_"
	}
	return name
}

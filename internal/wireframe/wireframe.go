// Package wireframe reads and writes the wireframe file format used for save/load.
package wireframe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wirejam/wirejam/internal/models"
)

// Version is written into every file.
const Version = "1.0"

const (
	DefaultCanvasWidth  = 1024
	DefaultCanvasHeight = 600
)

var (
	ErrMalformed    = errors.New("malformed wireframe file")
	ErrInvalidShape = errors.New("wireframe shape missing id or type")
)

// Canvas is the canvas size at save time.
type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// File is the on-disk document.
type File struct {
	Version string         `json:"version"`
	Created time.Time      `json:"created"`
	Canvas  Canvas         `json:"canvas"`
	Shapes  []models.Shape `json:"shapes"`
}

// New wraps shapes in a file stamped with the current time.
func New(shapes []models.Shape, canvas Canvas) File {
	if shapes == nil {
		shapes = []models.Shape{}
	}
	return File{
		Version: Version,
		Created: time.Now().UTC(),
		Canvas:  canvas,
		Shapes:  shapes,
	}
}

// Encode writes f as indented JSON.
func Encode(w io.Writer, f File) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}

// Decode parses a wireframe file. Shapes without an id or type are rejected; older files
// that omit version or canvas get the defaults.
func Decode(r io.Reader) (File, error) {
	var f File
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Version == "" {
		f.Version = Version
	}
	if f.Canvas.Width == 0 {
		f.Canvas.Width = DefaultCanvasWidth
	}
	if f.Canvas.Height == 0 {
		f.Canvas.Height = DefaultCanvasHeight
	}
	seen := make(map[string]bool, len(f.Shapes))
	for i, s := range f.Shapes {
		if !s.Valid() {
			return File{}, fmt.Errorf("%w: shape %d", ErrInvalidShape, i)
		}
		if seen[s.ID] {
			return File{}, fmt.Errorf("%w: duplicate shape id %q", ErrMalformed, s.ID)
		}
		seen[s.ID] = true
	}
	if f.Shapes == nil {
		f.Shapes = []models.Shape{}
	}
	return f, nil
}

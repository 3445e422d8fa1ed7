// Package gradient serves a generated PNG: green rises along x, blue along y.
package gradient

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"sync"

	"endpointd/pkg/service"
)

const (
	// DefaultSize is the edge length of the image in pixels.
	DefaultSize = 256
	// MaxSize bounds either edge.
	MaxSize = 4096
)

// Service renders the gradient once and serves the cached bytes.
type Service struct {
	width, height int

	once    sync.Once
	encoded []byte
	err     error
}

// New returns a gradient service of width×height pixels. Non-positive
// dimensions fall back to DefaultSize and larger ones are clamped to MaxSize.
func New(width, height int) *Service {
	width, height = clampSize(width), clampSize(height)
	return &Service{width: width, height: height}
}

func clampSize(n int) int {
	switch {
	case n <= 0:
		return DefaultSize
	case n > MaxSize:
		return MaxSize
	}
	return n
}

// Handle implements service.Service.
func (s *Service) Handle(req service.Request) error {
	switch req.Method() {
	case http.MethodGet, http.MethodHead:
	default:
		req.ResponseHeaders().Set("Allow", []string{"GET, HEAD"})
		return service.RespondText(req, http.StatusMethodNotAllowed, "method not allowed")
	}

	s.once.Do(func() { s.encoded, s.err = Render(s.width, s.height) })
	if s.err != nil {
		return fmt.Errorf("render gradient: %w", s.err)
	}
	return service.Respond(req, http.StatusOK, "image/png", s.encoded)
}

// Render encodes a width×height gradient as PNG.
func Render(width, height int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 0, G: uint8(x & 0xff), B: uint8(y & 0xff), A: 0xff})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

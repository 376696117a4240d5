package imaging

import (
	"encoding/base64"
	"fmt"
	"os"
)

// ImageResult carries an encoded image back to a tool client.
type ImageResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64,omitempty"`
	MimeType    string `json:"mime_type"`
	Path        string `json:"path,omitempty"`
}

// EncodeResult PNG-encodes a raster and wraps it as base64 for transport.
func EncodeResult(r *Raster) (*ImageResult, error) {
	data, err := Encode(r)
	if err != nil {
		return nil, err
	}
	return PNGResult(r.Width, r.Height, data), nil
}

// PNGResult wraps already encoded PNG bytes.
func PNGResult(width, height int, png []byte) *ImageResult {
	return &ImageResult{
		Width:       width,
		Height:      height,
		ImageBase64: base64.StdEncoding.EncodeToString(png),
		MimeType:    "image/png",
	}
}

// WriteTo writes the decoded PNG payload to path and records the path on the result.
// When dropInline is true the base64 payload is cleared afterwards to keep
// responses small.
func (r *ImageResult) WriteTo(path string, dropInline bool) error {
	data, err := base64.StdEncoding.DecodeString(r.ImageBase64)
	if err != nil {
		return fmt.Errorf("failed to decode image payload: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	r.Path = path
	if dropInline {
		r.ImageBase64 = ""
	}
	return nil
}

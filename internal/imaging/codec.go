package imaging

import (
	"bytes"
	"errors"
	"fmt"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// Kernel selects the resampling filter used by Resample.
type Kernel int

const (
	// KernelQuality is a Lanczos filter, used for visual buffers
	// (base, candidate, heatmap).
	KernelQuality Kernel = iota

	// KernelNearest copies the nearest source pixel without blending. Masks are
	// always resampled with it so no mid-range alpha values appear at edges.
	KernelNearest
)

// String returns the kernel name.
func (k Kernel) String() string {
	switch k {
	case KernelQuality:
		return "lanczos"
	case KernelNearest:
		return "nearest"
	default:
		return "unknown"
	}
}

func (k Kernel) filter() imaging.ResampleFilter {
	if k == KernelNearest {
		return imaging.NearestNeighbor
	}
	return imaging.Lanczos
}

// Decode decodes an encoded image buffer into a Raster.
//
// Any format registered with the image package is accepted: PNG, JPEG and GIF
// from the standard library, BMP and TIFF through disintegration/imaging, and
// WebP through golang.org/x/image. Malformed input yields a *DecodeError.
func Decode(data []byte) (*Raster, error) {
	return DecodeNamed("", data)
}

// DecodeNamed is Decode with a label that is carried into the *DecodeError.
func DecodeNamed(source string, data []byte) (*Raster, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Source: source, Err: errors.New("empty buffer")}
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Source: source, Err: err}
	}
	r := FromImage(img)
	if r.Width == 0 || r.Height == 0 {
		return nil, &DecodeError{Source: source, Err: errors.New("image has no pixels")}
	}
	return r, nil
}

// Encode encodes a raster as PNG.
//
// PNG is lossless for 8-bit straight-alpha data, so Decode(Encode(r))
// reproduces r byte for byte, including fully transparent pixels.
func Encode(r *Raster) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, r.Image(), imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Resample scales a raster to exactly width x height pixels.
//
// The output always has the requested pixel count. With KernelNearest every
// output pixel is a verbatim copy of some input pixel.
func Resample(r *Raster, width, height int, k Kernel) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid resample target %dx%d", width, height)
	}
	if r.Width == width && r.Height == height {
		return r.Clone(), nil
	}
	if r.Width == 0 || r.Height == 0 {
		return nil, fmt.Errorf("cannot resample empty %dx%d raster", r.Width, r.Height)
	}
	return fromNRGBA(imaging.Resize(r.Image(), width, height, k.filter())), nil
}

// Conform returns r unchanged when it is already width x height, and a
// resampled copy otherwise.
func Conform(r *Raster, width, height int, k Kernel) (*Raster, error) {
	if r.Width == width && r.Height == height {
		return r, nil
	}
	return Resample(r, width, height, k)
}

package imaging

import "fmt"

// DecodeError reports image bytes that could not be decoded.
//
// It is fatal for the operation that received the bytes; nothing in this
// module retries a decode.
type DecodeError struct {
	// Source names the buffer that failed (e.g. "base", "candidate", a file path).
	// Empty when the caller did not label the input.
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("failed to decode %s image: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DimensionMismatchError reports two buffers of different sizes passed where
// equal sizes are required. It indicates a caller bug, not bad user data.
type DimensionMismatchError struct {
	// Index is the position of the offending raster in the checked list.
	Index      int
	WantWidth  int
	WantHeight int
	GotWidth   int
	GotHeight  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: raster %d is %dx%d, want %dx%d",
		e.Index, e.GotWidth, e.GotHeight, e.WantWidth, e.WantHeight)
}

// Package imaging provides the pixel buffer shared by the fidelity tools.
//
// A Raster is a straight-alpha RGBA8 buffer in row-major order with a
// (0,0) top-left origin. Every image that enters the server, whether base,
// candidate or mask, is decoded into a Raster so the drift, heatmap and
// composite loops can index Pix directly without per-pixel interface calls.
//
// # Mask Convention
//
// Only the alpha channel of a mask is read. Alpha above MaskAlphaCutoff (127)
// preserves the pixel; anything at or below it is editable. Preserved reports
// this for a single alpha value and is the only place the cutoff is applied.
//
// # Decoding and Resampling
//
// Decode sniffs the format from the data (PNG, JPEG, GIF, BMP, TIFF, WebP) and
// normalizes to NRGBA. Encode always writes PNG so alpha survives a round trip.
//
// Conform resizes a raster to target dimensions only when they differ:
//   - KernelQuality (Lanczos) for candidates, so texture is kept
//   - KernelNearest for masks, so edges stay hard and no soft alpha appears
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Rasters are not; callers that
// share one across goroutines must not write to it.
//
// # Error Handling
//
// Decode failures are reported as *DecodeError naming which input failed.
// Operations that require equal dimensions return *DimensionMismatchError.
// Use errors.As to inspect either.
//
// # Performance Considerations
//
// Cached rasters stay in memory until Evict or Clear is called. The server
// evicts candidates and masks after each verification since they are usually
// rewritten under the same path.
package imaging

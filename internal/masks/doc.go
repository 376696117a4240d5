// Package masks synthesizes inpainting masks from detected text regions.
//
// A detector reports text as normalized bounding boxes. The synthesizer turns
// each box into a padded pixel rectangle and paints the rectangles into a mask
// raster that follows the shared alpha convention: alpha 0 marks pixels the
// generator may repaint, alpha 255 marks pixels it must leave alone.
//
// # Pipeline
//
//  1. Sanitize: clamp each untrusted box into the unit square
//  2. Denormalize: round each coordinate to the nearest pixel
//  3. Pad: grow the box on all sides by AdaptivePadding, clamped to the image
//  4. Merge (optional): fuse regions that overlap or nearly touch
//  5. Rasterize: draw the regions as hard-edged editable rectangles
//
// # Padding
//
// Padding scales with the box: PaddingPercent of the mean of width and height,
// clamped to [MinPadding, MaxPadding]. With the defaults a 200x50 box gets
// round(12.5) = 13 px on every side.
//
// # Merging
//
// Merging is off by default. Independent labels that sit close together, such
// as the captions of two adjacent cards, would otherwise collapse into one
// large editable block and let the generator repaint the artwork between them.
package masks

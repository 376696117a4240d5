package imaging

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"sync"
)

// ImageCache provides thread-safe caching of decoded rasters to avoid redundant disk reads.
//
// The cache stores decoded *Raster values keyed by their file path. Once an image
// is loaded, subsequent Load() calls for the same path return the cached raster without
// disk I/O. Cached rasters are shared between callers and must be treated as read-only;
// every operation in this module allocates its output instead of writing to its inputs.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Memory Management
//
// Cached rasters remain in memory until explicitly removed via Evict() or Clear().
// A base image that is re-verified against many candidates stays hot; candidates
// are usually evicted by the caller after verification.
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	base, err := cache.Load("/path/to/base.png")
//	if err != nil {
//	    return err
//	}
//	// Use base...
//	cache.Evict("/path/to/base.png") // Optional: free memory
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*Raster
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*Raster),
	}
}

// Load retrieves a raster from the cache or loads and decodes it from disk.
//
// Parameters:
//   - path: Absolute or relative file path to the image. Any format accepted by
//     Decode is supported.
//
// Returns:
//   - *Raster: The decoded raster. Shared with other callers; do not mutate.
//   - error: Non-nil if the file cannot be read, or a *DecodeError if it cannot be decoded.
//
// The raster is cached using the exact path string provided. Different paths to the
// same file (e.g., relative vs absolute) will result in separate cache entries.
func (c *ImageCache) Load(path string) (*Raster, error) {
	c.mu.RLock()
	if r, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return r, nil
	}
	c.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	r, err := DecodeNamed(path, data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = r
	c.mu.Unlock()

	return r, nil
}

// Len returns the number of cached rasters.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all rasters from the cache, freeing the associated memory.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*Raster)
	c.mu.Unlock()
}

// Evict removes a specific raster from the cache by its path.
//
// If the path is not in the cache, this method does nothing.
// After eviction, the next Load() call for this path will read from disk.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the format sniffed from the file contents ("png", "jpeg", "gif",
	// "bmp", "tiff", "webp").
	Format string `json:"format"`

	// HasTransparency is true when at least one pixel has alpha below 255.
	// For a mask this means it contains editable pixels or soft edges.
	HasTransparency bool `json:"has_transparency"`

	// PreservedPixels counts pixels whose alpha marks them as "preserve"
	// under the mask convention. Meaningful only when the file is a mask.
	PreservedPixels int `json:"preserved_pixels"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image and returns metadata about it.
//
// The raster is loaded into the cache (if not already cached). The format is
// determined from the file header rather than the extension, so a mask saved
// with a wrong extension is still reported correctly.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	r, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		format = "unknown"
	}

	info := &ImageInfo{
		Width:         r.Width,
		Height:        r.Height,
		Format:        format,
		FileSizeBytes: int64(len(data)),
	}
	for i := 0; i < r.Len(); i++ {
		a := r.Alpha(i)
		if a < 255 {
			info.HasTransparency = true
		}
		if Preserved(a) {
			info.PreservedPixels++
		}
	}
	return info, nil
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of an image without additional metadata.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	r, err := cache.Load(path)
	if err != nil {
		return nil, err
	}
	return &DimensionsResult{
		Width:  r.Width,
		Height: r.Height,
	}, nil
}

// Package drift measures unintended pixel change outside the editable region of a mask.
//
// A base image and a candidate image are compared only where the mask says
// "preserve" (alpha > 127). Every such pixel contributes to the considered
// total; pixels whose mean absolute RGB difference exceeds ChangeThreshold are
// counted as changed. The drift score is the changed share of considered pixels,
// in percent, and is classified against two fixed thresholds.
//
// The engine also produces a DiffMap for visualization. The map amplifies the
// per-pixel difference by DiffAmplification; the score never sees the amplified
// value, so the heatmap's look and the pass/warn/fail outcome stay independent.
package drift

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/anthonynsimon/bild/parallel"

	"github.com/ironsheep/image-fidelity-mcp/internal/imaging"
)

const (
	// ChangeThreshold is the mean absolute RGB difference above which a
	// preserved pixel counts as changed.
	ChangeThreshold = 10

	// PassThreshold is the highest score still classified as Pass.
	PassThreshold = 2.0

	// WarnThreshold is the highest score still classified as Warn.
	WarnThreshold = 5.0

	// DiffAmplification scales the per-pixel difference written to the DiffMap.
	DiffAmplification = 2
)

// Status classifies a drift score.
type Status int

const (
	// Pending is the zero value: no measurement has been made yet.
	Pending Status = iota
	Pass
	Warn
	Fail
)

var statusNames = [...]string{"pending", "pass", "warn", "fail"}

// String returns the lower-case status name.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(b)))
	for i, n := range statusNames {
		if n == name {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown drift status %q", string(b))
}

// Classify maps a score to a status. It is monotonic in score.
func Classify(score float64) Status {
	switch {
	case score <= PassThreshold:
		return Pass
	case score <= WarnThreshold:
		return Warn
	default:
		return Fail
	}
}

// DiffMap is a one-byte-per-pixel intensity map aligned with the compared images.
//
// Zero means no measurable change, or a pixel inside the editable region.
type DiffMap struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewDiffMap allocates an all-zero map.
func NewDiffMap(width, height int) *DiffMap {
	return &DiffMap{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// At returns the intensity at (x, y), or 0 outside the map.
func (d *DiffMap) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= d.Width || y >= d.Height {
		return 0
	}
	return d.Pix[y*d.Width+x]
}

// Max returns the largest intensity in the map.
func (d *DiffMap) Max() uint8 {
	var m uint8
	for _, v := range d.Pix {
		if v > m {
			m = v
		}
	}
	return m
}

// Result is the outcome of one drift measurement.
type Result struct {
	// Score is the percentage of considered pixels that changed, at full
	// precision so it always agrees with Status.
	Score                 float64  `json:"score"`
	Status                Status   `json:"status"`
	ChangedPixels         uint64   `json:"changed_pixels"`
	TotalConsideredPixels uint64   `json:"total_considered_pixels"`
	DiffMap               *DiffMap `json:"-"`
}

// Engine computes drift. The zero value is a serial engine.
type Engine struct {
	// Parallel splits the pixel loop into row ranges processed concurrently.
	// Results are identical to serial execution.
	Parallel bool
}

// NewEngine returns an engine.
func NewEngine(parallel bool) *Engine {
	return &Engine{Parallel: parallel}
}

// Compute compares base and candidate wherever mask preserves pixels.
//
// All three rasters must have identical dimensions; callers conform them
// first (see imaging.Conform). A size mismatch is returned as
// *imaging.DimensionMismatchError and is the only error Compute produces.
//
// An all-editable mask considers no pixels and yields score 0 / Pass:
// absence of evidence is treated as no drift.
func (e *Engine) Compute(base, candidate, mask *imaging.Raster) (*Result, error) {
	if err := imaging.SameSize(base, candidate, mask); err != nil {
		return nil, fmt.Errorf("drift: %w", err)
	}

	width, height := base.Width, base.Height
	diff := NewDiffMap(width, height)

	var changed, total uint64
	scan := func(start, end int) {
		c, n := scanRows(base, candidate, mask, diff, start, end)
		atomic.AddUint64(&changed, c)
		atomic.AddUint64(&total, n)
	}
	if e != nil && e.Parallel {
		parallel.Line(height, scan)
	} else {
		scan(0, height)
	}

	return newResult(changed, total, diff), nil
}

// Compute runs a serial engine.
func Compute(base, candidate, mask *imaging.Raster) (*Result, error) {
	return (&Engine{}).Compute(base, candidate, mask)
}

func newResult(changed, total uint64, diff *DiffMap) *Result {
	var score float64
	if total > 0 {
		// changed*100/total rather than changed/total*100 keeps exact
		// percentages (e.g. 200 of 10000) exact in floating point.
		score = float64(changed) * 100 / float64(total)
	}
	return &Result{
		Score:                 score,
		Status:                Classify(score),
		ChangedPixels:         changed,
		TotalConsideredPixels: total,
		DiffMap:               diff,
	}
}

// scanRows processes rows [start, end) and returns the changed and considered counts.
func scanRows(base, candidate, mask *imaging.Raster, diff *DiffMap, start, end int) (changed, total uint64) {
	width := base.Width
	bp, cp, mp := base.Pix, candidate.Pix, mask.Pix

	for i := start * width; i < end*width; i++ {
		o := i * 4
		if !imaging.Preserved(mp[o+3]) {
			continue
		}
		total++

		avgDiff := AverageDiff(bp[o], bp[o+1], bp[o+2], cp[o], cp[o+1], cp[o+2])
		diff.Pix[i] = amplify(avgDiff)
		if avgDiff > ChangeThreshold {
			changed++
		}
	}
	return changed, total
}

// AverageDiff is the mean absolute difference of the R, G and B channels.
// Alpha is not compared.
func AverageDiff(r1, g1, b1, r2, g2, b2 uint8) float64 {
	return float64(absDiff(r1, r2)+absDiff(g1, g2)+absDiff(b1, b2)) / 3.0
}

// amplify converts a mean difference to a DiffMap byte.
func amplify(avgDiff float64) uint8 {
	v := math.Round(avgDiff * DiffAmplification)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// Package diff computes block-wise dirty rectangles between consecutive
// captured frames. It partitions each frame into a tile grid and
// reports per-tile changed regions rather than hashing whole frames.
package diff

import (
	"sync"

	"github.com/breeze-rmm/remote-desktop/internal/capture"
	"github.com/breeze-rmm/remote-desktop/internal/geom"
)

// Config holds the diff engine's tunables.
type Config struct {
	BlockSize            int
	Threshold            int
	ChangeRatioThreshold float64
	MergeAdjacent        bool
	MinDiffSize          int
}

// DefaultConfig returns conservative default tunables.
func DefaultConfig() Config {
	return Config{
		BlockSize:            32,
		Threshold:            15,
		ChangeRatioThreshold: 0.05,
		MergeAdjacent:        true,
		MinDiffSize:          8,
	}
}

// Result is the outcome of one Calculate call.
type Result struct {
	ChangedRegions []geom.Rectangle
	ChangedPixels  int
	TotalPixels    int
	ChangeRatio    float64
}

// Differ is stateful: it retains the last frame supplied to Calculate.
type Differ struct {
	cfg Config

	mu   sync.Mutex
	prev *capture.Frame
}

// New creates a Differ with the given configuration.
func New(cfg Config) *Differ {
	return &Differ{cfg: cfg}
}

// ClearPrevious discards the retained previous frame, forcing the next
// Calculate to report a full-frame change.
func (d *Differ) ClearPrevious() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prev = nil
}

// Calculate computes the dirty rectangles between the retained previous
// frame and current, then stores current as the new previous frame.
func (d *Differ) Calculate(current *capture.Frame) Result {
	d.mu.Lock()
	prev := d.prev
	d.prev = current
	d.mu.Unlock()

	total := current.Width * current.Height

	if prev == nil || prev.Width != current.Width || prev.Height != current.Height {
		return Result{
			ChangedRegions: []geom.Rectangle{geom.New(0, 0, current.Width, current.Height)},
			ChangedPixels:  total,
			TotalPixels:    total,
			ChangeRatio:    ratio(total, total),
		}
	}

	blockSize := d.cfg.BlockSize
	if blockSize <= 0 {
		blockSize = 32
	}

	var dirty []geom.Rectangle
	changedPixels := 0

	for by := 0; by < current.Height; by += blockSize {
		blockH := blockSize
		if by+blockH > current.Height {
			blockH = current.Height - by
		}
		for bx := 0; bx < current.Width; bx += blockSize {
			blockW := blockSize
			if bx+blockW > current.Width {
				blockW = current.Width - bx
			}

			changedInBlock := countChangedPixels(prev, current, bx, by, blockW, blockH, d.cfg.Threshold)
			changedPixels += changedInBlock

			area := blockW * blockH
			if area == 0 {
				continue
			}
			if float64(changedInBlock)/float64(area) >= d.cfg.ChangeRatioThreshold {
				dirty = append(dirty, geom.New(bx, by, blockW, blockH))
			}
		}
	}

	if d.cfg.MergeAdjacent {
		dirty = geom.MergeAdjacent(dirty)
	}

	if d.cfg.MinDiffSize > 0 {
		filtered := dirty[:0:0]
		for _, r := range dirty {
			if r.Width >= d.cfg.MinDiffSize && r.Height >= d.cfg.MinDiffSize {
				filtered = append(filtered, r)
			}
		}
		dirty = filtered
	}

	return Result{
		ChangedRegions: dirty,
		ChangedPixels:  changedPixels,
		TotalPixels:    total,
		ChangeRatio:    ratio(changedPixels, total),
	}
}

func ratio(changed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(changed) / float64(total)
}

// countChangedPixels compares a block region between prev and cur,
// counting pixels whose channel-averaged absolute difference exceeds
// threshold. Alpha is ignored.
func countChangedPixels(prev, cur *capture.Frame, bx, by, w, h, threshold int) int {
	count := 0
	prevStride := prev.Width * 4
	curStride := cur.Width * 4

	for y := by; y < by+h; y++ {
		prevRow := y * prevStride
		curRow := y * curStride
		for x := bx; x < bx+w; x++ {
			pi := prevRow + x*4
			ci := curRow + x*4

			dr := absDiff(prev.Pix[pi+0], cur.Pix[ci+0])
			dg := absDiff(prev.Pix[pi+1], cur.Pix[ci+1])
			db := absDiff(prev.Pix[pi+2], cur.Pix[ci+2])

			if (int(dr)+int(dg)+int(db))/3 > threshold {
				count++
			}
		}
	}
	return count
}

func absDiff(a, b byte) byte {
	if a > b {
		return a - b
	}
	return b - a
}

package schedule

import (
	"time"

	"confsched/internal/model"
)

// DefaultMinFreeBlock is the shortest free block worth showing.
const DefaultMinFreeBlock = 10 * time.Minute

// CarveOptions tune CarveFreeBlocks.
type CarveOptions struct {
	// AllowedOverlap is tolerated before a fixed item is considered to
	// intersect a free block.
	AllowedOverlap time.Duration

	// MinLength drops free pieces shorter than this. Zero means
	// DefaultMinFreeBlock.
	MinLength time.Duration
}

// displaces reports whether a fixed item takes time away from free blocks.
// Breaks never do, and sessions only once the user has scheduled them.
func displaces(it model.Item) bool {
	switch it.Type {
	case model.TypeFree, model.TypeBreak:
		return false
	case model.TypeSession:
		return it.InSchedule
	default:
		return true
	}
}

// CarveFreeBlocks validates items, then trims and splits free blocks around
// the items that occupy the user's time. A free block fully covered by a fixed item is
// removed, one that fully contains it is split in two, and one that
// partially overlaps it is shortened. Pieces shorter than MinLength are
// dropped.
//
// The result lists every non-free item in input order followed by the
// surviving free pieces, so a stable sort by start places fixed items
// ahead of free time starting at the same instant.
func CarveFreeBlocks(items []model.Item, opts CarveOptions) ([]model.Item, error) {
	if err := Validate(items); err != nil {
		return nil, err
	}
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinFreeBlock
	}

	fixed := make([]model.Item, 0, len(items))
	var free []model.Item
	for _, it := range items {
		if it.Type == model.TypeFree {
			free = append(free, it)
		} else {
			fixed = append(fixed, it)
		}
	}

	for _, f := range fixed {
		if !displaces(f) {
			continue
		}
		next := make([]model.Item, 0, len(free)+1)
		for _, blk := range free {
			if !intersects(f, blk, opts.AllowedOverlap) {
				next = append(next, blk)
				continue
			}
			if containedIn(blk, f) {
				continue
			}

			var split *model.Item
			switch {
			case containedIn(f, blk):
				if blk.End.Sub(f.End) >= opts.MinLength {
					s := blk
					s.Start = f.End
					split = &s
				}
				blk.End = f.Start
			case !blk.Start.Before(f.Start):
				blk.Start = f.End
			default:
				blk.End = f.Start
			}

			if blk.End.Sub(blk.Start) >= opts.MinLength {
				next = append(next, blk)
			}
			if split != nil {
				next = append(next, *split)
			}
		}
		free = next
	}

	return append(fixed, free...), nil
}

// intersects reports whether a and b overlap by more than tolerance on
// both ends.
func intersects(a, b model.Item, tolerance time.Duration) bool {
	return b.End.After(a.Start.Add(tolerance)) && b.Start.Add(tolerance).Before(a.End)
}

func containedIn(inner, outer model.Item) bool {
	return !inner.Start.Before(outer.Start) && !inner.End.After(outer.End)
}

// CountAvailable returns how many unscheduled sessions in pool start
// inside the free block.
func CountAvailable(free model.Item, pool []model.Item) int {
	n := 0
	for _, it := range pool {
		if it.Type != model.TypeSession || it.InSchedule {
			continue
		}
		if !it.Start.Before(free.Start) && it.Start.Before(free.End) {
			n++
		}
	}
	return n
}

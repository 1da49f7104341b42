package counter

import (
	"fmt"
	"math"
	"strings"

	iface "FootfallCounter/interface"
)

// Side is the classification of a point against the boundary line.
type Side int8

const (
	SideAbove Side = -1
	SideBelow Side = 1
)

func (s Side) String() string {
	switch s {
	case SideAbove:
		return "ABOVE"
	case SideBelow:
		return "BELOW"
	default:
		return fmt.Sprintf("Side(%d)", int8(s))
	}
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	return -s
}

// ParseSide accepts "above" or "below" in any letter case.
func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "above":
		return SideAbove, nil
	case "below":
		return SideBelow, nil
	}
	return 0, fmt.Errorf("unknown side %q", v)
}

// Boundary is a horizontal line at a fixed pixel row. It has no setters; a new run
// needs a new Boundary.
type Boundary struct {
	y int
}

// NewBoundary places the line at floor(ratio*frameHeight).
func NewBoundary(frameHeight int, ratio float64) (Boundary, error) {
	if frameHeight <= 0 {
		return Boundary{}, fmt.Errorf("frame height must be positive, got %d", frameHeight)
	}
	if math.IsNaN(ratio) || ratio <= 0 || ratio >= 1 {
		return Boundary{}, fmt.Errorf("boundary ratio must be in (0, 1), got %v", ratio)
	}
	return Boundary{y: int(ratio * float64(frameHeight))}, nil
}

func (b Boundary) Y() int {
	return b.y
}

// Classify puts points strictly above the line on SideAbove and everything else,
// including points exactly on the line, on SideBelow.
func (b Boundary) Classify(p iface.Position) Side {
	if p.Y < float64(b.y) {
		return SideAbove
	}
	return SideBelow
}

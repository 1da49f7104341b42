package iface

import (
	"image"
	"math"
)

type Position struct {
	X, Y float64
}

// Finite reports whether both coordinates are real numbers.
func (p Position) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Box is an axis aligned rectangle in frame pixels, LT is the top-left corner.
type Box struct {
	LT Position
	RB Position
}

func (b Box) Width() float64  { return b.RB.X - b.LT.X }
func (b Box) Height() float64 { return b.RB.Y - b.LT.Y }

func (b Box) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func (b Box) Center() Position {
	return Position{
		X: (b.LT.X + b.RB.X) / 2,
		Y: (b.LT.Y + b.RB.Y) / 2,
	}
}

// PixelCenter truncates the corners to whole pixels and takes the integer midpoint,
// the point the counter classifies.
func (b Box) PixelCenter() Position {
	x1, y1 := int(b.LT.X), int(b.LT.Y)
	x2, y2 := int(b.RB.X), int(b.RB.Y)
	return Position{X: float64((x1 + x2) / 2), Y: float64((y1 + y2) / 2)}
}

// Valid rejects boxes with non-finite corners or inverted extents.
func (b Box) Valid() bool {
	return b.LT.Finite() && b.RB.Finite() && b.RB.X >= b.LT.X && b.RB.Y >= b.LT.Y
}

// Rect truncates the box to integer pixels for drawing.
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.LT.X), int(b.LT.Y), int(b.RB.X), int(b.RB.Y))
}

// IoU returns the intersection over union of two boxes, 0 when they do not overlap.
func (b Box) IoU(o Box) float64 {
	ix := math.Min(b.RB.X, o.RB.X) - math.Max(b.LT.X, o.LT.X)
	iy := math.Min(b.RB.Y, o.RB.Y) - math.Max(b.LT.Y, o.LT.Y)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

type Detection struct {
	Class string
	Conf  float32
	Box   Box
}

// Track is one tracker output for the current frame.
type Track struct {
	ID        string
	Box       Box
	Confirmed bool
	// Misses is the number of frames since the track was last matched to a detection.
	Misses int
}

type NamesConf struct {
	IsFile bool
	Data   any
}

type EngineConfig struct {
	UseGPU    bool
	ModelPath string
	Names     NamesConf
	Conf      float32
	Iou       float32
	InputSize int
}

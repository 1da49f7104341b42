package engine

import (
	"image"
	"math"
	"sort"

	iface "FootfallCounter/interface"

	"gocv.io/x/gocv"
)

type candidate struct {
	cx, cy, w, h float32
	class        int
	score        float32
}

// decodeYOLOv8 reads a [4+classes][anchors] output tensor, keeping the best class of
// every anchor whose score reaches conf.
func decodeYOLOv8(data []float32, rows, anchors int, conf float32) []candidate {
	if rows <= 4 || anchors <= 0 || len(data) < rows*anchors {
		return nil
	}
	var out []candidate
	for a := 0; a < anchors; a++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < rows-4; c++ {
			s := data[(4+c)*anchors+a]
			if s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || bestScore < conf {
			continue
		}
		out = append(out, candidate{
			cx:    data[a],
			cy:    data[anchors+a],
			w:     data[2*anchors+a],
			h:     data[3*anchors+a],
			class: best,
			score: bestScore,
		})
	}
	return out
}

// letterbox describes how a frame was scaled and padded into the square network input.
type letterbox struct {
	scale        float64
	padX, padY   int
	resizedW     int
	resizedH     int
	frameW       int
	frameH       int
	inputSize    int
	padR, padBot int
}

func newLetterbox(frameW, frameH, inputSize int) letterbox {
	scale := math.Min(float64(inputSize)/float64(frameW), float64(inputSize)/float64(frameH))
	rw := int(math.Round(float64(frameW) * scale))
	rh := int(math.Round(float64(frameH) * scale))
	padX := (inputSize - rw) / 2
	padY := (inputSize - rh) / 2
	return letterbox{
		scale:     scale,
		padX:      padX,
		padY:      padY,
		resizedW:  rw,
		resizedH:  rh,
		frameW:    frameW,
		frameH:    frameH,
		inputSize: inputSize,
		padR:      inputSize - rw - padX,
		padBot:    inputSize - rh - padY,
	}
}

// toFrame maps a network-space center box back to clamped frame pixels.
func (l letterbox) toFrame(c candidate) iface.Box {
	x1 := (float64(c.cx-c.w/2) - float64(l.padX)) / l.scale
	y1 := (float64(c.cy-c.h/2) - float64(l.padY)) / l.scale
	x2 := (float64(c.cx+c.w/2) - float64(l.padX)) / l.scale
	y2 := (float64(c.cy+c.h/2) - float64(l.padY)) / l.scale
	clamp := func(v float64, hi int) float64 {
		return math.Max(0, math.Min(v, float64(hi)))
	}
	return iface.Box{
		LT: iface.Position{X: clamp(x1, l.frameW), Y: clamp(y1, l.frameH)},
		RB: iface.Position{X: clamp(x2, l.frameW), Y: clamp(y2, l.frameH)},
	}
}

// classIndexes maps wanted labels to their class ids. nil means no restriction.
func classIndexes(names, classes []string) map[int]bool {
	if len(classes) == 0 {
		return nil
	}
	allowed := make(map[int]bool, len(classes))
	for i, n := range names {
		for _, c := range classes {
			if n == c {
				allowed[i] = true
			}
		}
	}
	return allowed
}

func keepClasses(cands []candidate, allowed map[int]bool) []candidate {
	if allowed == nil {
		return cands
	}
	out := cands[:0:0]
	for _, c := range cands {
		if allowed[c.class] {
			out = append(out, c)
		}
	}
	return out
}

// nmsByClass runs NMS separately for every class, so boxes of different classes never
// suppress each other. It returns the kept candidate indexes in ascending order.
func nmsByClass(cands []candidate, boxes []iface.Box, conf, iou float32) []int {
	groups := make(map[int][]int)
	for i, c := range cands {
		groups[c.class] = append(groups[c.class], i)
	}
	var keep []int
	for _, idx := range groups {
		rects := make([]image.Rectangle, len(idx))
		scores := make([]float32, len(idx))
		for j, i := range idx {
			rects[j] = boxes[i].Rect()
			scores[j] = cands[i].score
		}
		for _, k := range gocv.NMSBoxes(rects, scores, conf, iou) {
			keep = append(keep, idx[k])
		}
	}
	sort.Ints(keep)
	return keep
}

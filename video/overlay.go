package video

import (
	"fmt"
	"image"
	"image/color"

	"FootfallCounter/counter"
	iface "FootfallCounter/interface"
	"FootfallCounter/summary"

	"gocv.io/x/gocv"
)

var (
	trackColor    = color.RGBA{255, 180, 50, 0}
	labelColor    = color.RGBA{255, 255, 255, 0}
	boundaryColor = color.RGBA{255, 255, 0, 0}
	entryColor    = color.RGBA{0, 255, 0, 0}
	exitColor     = color.RGBA{255, 165, 0, 0}
	totalColor    = color.RGBA{0, 255, 255, 0}
	panelColor    = color.RGBA{0, 0, 0, 0}
)

func DrawTrack(img *gocv.Mat, tr iface.Track) {
	rect := tr.Box.Rect()
	gocv.Rectangle(img, rect, trackColor, 2)
	gocv.PutText(img, fmt.Sprintf("ID %s", tr.ID), image.Pt(rect.Min.X, rect.Min.Y-10),
		gocv.FontHersheySimplex, 0.7, labelColor, 2)
	c := tr.Box.PixelCenter()
	gocv.Circle(img, image.Pt(int(c.X), int(c.Y)), 4, labelColor, -1)
}

func DrawBoundary(img *gocv.Mat, y int) {
	gocv.Line(img, image.Pt(0, y), image.Pt(img.Cols(), y), boundaryColor, 3)
}

func DrawCounters(img *gocv.Mat, counts counter.Counts) {
	gocv.PutText(img, fmt.Sprintf("ENTRY: %d", counts.Entry), image.Pt(20, 40),
		gocv.FontHersheySimplex, 1, entryColor, 2)
	gocv.PutText(img, fmt.Sprintf("EXIT:  %d", counts.Exit), image.Pt(20, 80),
		gocv.FontHersheySimplex, 1, exitColor, 2)
}

// DrawSummary paints the final summary panel in the top-left corner.
func DrawSummary(img *gocv.Mat, view summary.View) {
	gocv.Rectangle(img, image.Rect(30, 30, 580, 260), panelColor, -1)
	lines := view.Lines()
	styles := []struct {
		y     int
		scale float64
		c     color.RGBA
		thick int
	}{
		{90, 1.2, labelColor, 3},
		{150, 1.0, entryColor, 2},
		{190, 1.0, exitColor, 2},
		{230, 1.1, totalColor, 3},
	}
	for i, st := range styles {
		gocv.PutText(img, lines[i], image.Pt(50, st.y), gocv.FontHersheySimplex, st.scale, st.c, st.thick)
	}
}

// Renderer draws the live overlay on each frame and appends it to the output video.
type Renderer struct {
	out       *Writer
	boundaryY int
}

func NewRenderer(out *Writer, boundaryY int) *Renderer {
	return &Renderer{out: out, boundaryY: boundaryY}
}

func (r *Renderer) WriteFrame(frame *gocv.Mat, tracks []iface.Track, counts counter.Counts) error {
	for _, tr := range tracks {
		DrawTrack(frame, tr)
	}
	DrawBoundary(frame, r.boundaryY)
	DrawCounters(frame, counts)
	return r.out.Write(*frame)
}

// WriteSummary repeats the summary frame so it stays on screen for frames frames.
func (r *Renderer) WriteSummary(last gocv.Mat, view summary.View, frames int) error {
	if last.Empty() || frames <= 0 {
		return nil
	}
	panel := last.Clone()
	defer panel.Close()
	DrawSummary(&panel, view)
	for i := 0; i < frames; i++ {
		if err := r.out.Write(panel); err != nil {
			return err
		}
	}
	return nil
}

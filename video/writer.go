package video

import (
	"fmt"

	"gocv.io/x/gocv"
)

type Writer struct {
	path   string
	w      *gocv.VideoWriter
	frames int
}

func NewWriter(path, codec string, fps float64, width, height int) (*Writer, error) {
	w, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("open writer %s: %w", path, err)
	}
	if !w.IsOpened() {
		w.Close()
		return nil, fmt.Errorf("open writer %s: codec %s not available", path, codec)
	}
	return &Writer{path: path, w: w}, nil
}

func (w *Writer) Write(frame gocv.Mat) error {
	if err := w.w.Write(frame); err != nil {
		return fmt.Errorf("write frame %d to %s: %w", w.frames, w.path, err)
	}
	w.frames++
	return nil
}

// Frames is the number of frames written so far.
func (w *Writer) Frames() int {
	return w.frames
}

func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) Close() error {
	return w.w.Close()
}

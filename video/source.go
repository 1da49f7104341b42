package video

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gocv.io/x/gocv"
)

// ErrStreamRead reports a capture that stopped delivering frames before its end.
var ErrStreamRead = errors.New("stream read failure")

type Props struct {
	FPS        float64
	Width      int
	Height     int
	FrameCount int // 0 when the container does not report it
}

// Source reads frames from a video file in order.
type Source struct {
	path   string
	cap    *gocv.VideoCapture
	props  Props
	read   int
	closed bool
}

func OpenSource(path string) (*Source, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open video %s: capture not opened", path)
	}
	props := Props{
		FPS:    capture.Get(gocv.VideoCaptureFPS),
		Width:  int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}
	if n := capture.Get(gocv.VideoCaptureFrameCount); n > 0 && !math.IsInf(n, 0) && !math.IsNaN(n) {
		props.FrameCount = int(n)
	}
	if props.Width <= 0 || props.Height <= 0 {
		capture.Close()
		return nil, fmt.Errorf("open video %s: invalid frame size %dx%d", path, props.Width, props.Height)
	}
	return &Source{path: path, cap: capture, props: props}, nil
}

func (s *Source) Props() Props {
	return s.props
}

// Read fills dst with the next frame. It returns io.EOF at the end of the stream and an
// error wrapping ErrStreamRead when the capture fails before the frame count it reported.
func (s *Source) Read(dst *gocv.Mat) error {
	if s.closed {
		return fmt.Errorf("%w: source closed", ErrStreamRead)
	}
	if s.cap.Read(dst) && !dst.Empty() {
		s.read++
		return nil
	}
	return classifyStop(s.read, s.props.FrameCount, s.path)
}

// classifyStop decides whether a failed read after n good frames is the end of the
// stream. Containers often over-report the count by a frame, so one missing frame is
// tolerated.
func classifyStop(n, frameCount int, path string) error {
	if frameCount > 0 && n < frameCount-1 {
		return fmt.Errorf("%w: %s stopped after %d of %d frames", ErrStreamRead, path, n, frameCount)
	}
	return io.EOF
}

func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.cap.Close()
}

package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"

	"FootfallCounter/counter"
	iface "FootfallCounter/interface"
	"FootfallCounter/summary"
	"FootfallCounter/tracker"
	"FootfallCounter/video"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type fakeSource struct {
	frames int
	stop   error
	reads  int
}

func (s *fakeSource) Read(dst *gocv.Mat) error {
	if s.reads >= s.frames {
		if s.stop != nil {
			return s.stop
		}
		return io.EOF
	}
	s.reads++
	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer img.Close()
	img.CopyTo(dst)
	return nil
}

// scriptedDetector returns the detections for the n-th call, then nothing.
type scriptedDetector struct {
	script [][]iface.Detection
	calls  int
}

func (d *scriptedDetector) Detect(gocv.Mat) ([]iface.Detection, error) {
	defer func() { d.calls++ }()
	if d.calls < len(d.script) {
		return d.script[d.calls], nil
	}
	return nil, nil
}

type fixedTracker struct {
	tracks []iface.Track
}

func (t fixedTracker) Update([]iface.Detection) []iface.Track {
	return t.tracks
}

type recordingSink struct {
	frames      []counter.Counts
	summary     summary.View
	hold        int
	summaryDone bool
	lastEmpty   bool
}

func (s *recordingSink) WriteFrame(_ *gocv.Mat, _ []iface.Track, counts counter.Counts) error {
	s.frames = append(s.frames, counts)
	return nil
}

func (s *recordingSink) WriteSummary(last gocv.Mat, view summary.View, frames int) error {
	s.summaryDone = true
	s.summary = view
	s.hold = frames
	s.lastEmpty = last.Empty()
	return nil
}

func person(cy float64) iface.Detection {
	return iface.Detection{
		Class: "person",
		Conf:  0.9,
		Box:   iface.Box{LT: iface.Position{X: 30, Y: cy - 20}, RB: iface.Position{X: 50, Y: cy + 20}},
	}
}

func newCounter(t *testing.T) *counter.Counter {
	t.Helper()
	b, err := counter.NewBoundary(100, 0.5)
	require.NoError(t, err)
	return counter.New(b)
}

func TestRunCountsEntry(t *testing.T) {
	det := &scriptedDetector{script: [][]iface.Detection{
		{person(30)},
		{person(40), {Class: "chair", Conf: 0.9, Box: person(80).Box}},
		{person(60)},
		{person(70)},
	}}
	sink := &recordingSink{}
	p := &Pipeline{
		Source:     &fakeSource{frames: 4},
		Detector:   det,
		Tracker:    tracker.New(tracker.Config{MaxAge: 5, NInit: 1, MaxIouDistance: 0.7}),
		Counter:    newCounter(t),
		Sink:       sink,
		ClassName:  "person",
		HoldFrames: 3,
	}

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Frames)
	assert.Equal(t, counter.Counts{Entry: 1}, res.Counts)
	assert.Equal(t, summary.View{Entry: 1, Exit: 0, Total: 1}, res.Summary)
	require.Len(t, res.Crossings, 1)
	assert.Equal(t, uint64(3), res.Crossings[0].Frame)
	assert.Equal(t, counter.DirectionEntry, res.Crossings[0].Direction)
	assert.NoError(t, res.ReadErr)
	assert.False(t, res.Cancelled)

	require.Len(t, sink.frames, 4)
	assert.Equal(t, counter.Counts{}, sink.frames[1])
	assert.Equal(t, counter.Counts{Entry: 1}, sink.frames[2])
	assert.True(t, sink.summaryDone)
	assert.Equal(t, 3, sink.hold)
	assert.False(t, sink.lastEmpty)
}

func TestRunStreamReadFailure(t *testing.T) {
	sink := &recordingSink{}
	p := &Pipeline{
		Source:     &fakeSource{frames: 2, stop: video.ErrStreamRead},
		Detector:   &scriptedDetector{},
		Tracker:    tracker.New(tracker.DefaultConfig()),
		Counter:    newCounter(t),
		Sink:       sink,
		HoldFrames: 1,
	}

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Frames)
	assert.True(t, errors.Is(res.ReadErr, video.ErrStreamRead))
	assert.True(t, sink.summaryDone, "summary still produced after a read failure")
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	p := &Pipeline{
		Source:     &fakeSource{frames: 10},
		Detector:   &scriptedDetector{},
		Tracker:    tracker.New(tracker.DefaultConfig()),
		Counter:    newCounter(t),
		Sink:       sink,
		HoldFrames: 2,
	}

	res, err := p.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 0, res.Frames)
	assert.True(t, sink.summaryDone)
	assert.True(t, sink.lastEmpty)
}

func TestRunContractViolation(t *testing.T) {
	box := person(30).Box
	sink := &recordingSink{}
	p := &Pipeline{
		Source:   &fakeSource{frames: 3},
		Detector: &scriptedDetector{},
		Tracker:  fixedTracker{tracks: []iface.Track{{ID: "", Box: box, Confirmed: true}}},
		Counter:  newCounter(t),
		Sink:     sink,
	}

	res, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, counter.ErrContractViolation))
	assert.Equal(t, 0, res.Frames)
	assert.True(t, sink.summaryDone)
}

func TestRunOnFrameHook(t *testing.T) {
	var seen []uint64
	p := &Pipeline{
		Source:   &fakeSource{frames: 3},
		Detector: &scriptedDetector{},
		Tracker:  tracker.New(tracker.DefaultConfig()),
		Counter:  newCounter(t),
		Sink:     &recordingSink{},
		OnFrame: func(frame uint64, _ []iface.Track, _ []counter.Crossing) {
			seen = append(seen, frame)
		},
	}

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, seen)
}

// scriptedTracker returns the tracks for the n-th frame.
type scriptedTracker struct {
	frames [][]iface.Track
	calls  int
}

func (s *scriptedTracker) Update([]iface.Detection) []iface.Track {
	defer func() { s.calls++ }()
	if s.calls < len(s.frames) {
		return s.frames[s.calls]
	}
	return nil
}

func TestRunClassifiesPixelCenter(t *testing.T) {
	box := func(y1, y2 float64) []iface.Track {
		return []iface.Track{{
			ID:        "1",
			Confirmed: true,
			Box:       iface.Box{LT: iface.Position{X: 10, Y: y1}, RB: iface.Position{X: 30, Y: y2}},
		}}
	}
	p := &Pipeline{
		Source:   &fakeSource{frames: 3},
		Detector: &scriptedDetector{},
		// line at y=50; frame 2 has a float center of 50.25 but a pixel center of 49
		Tracker: &scriptedTracker{frames: [][]iface.Track{box(20, 40), box(49.6, 50.9), box(50, 52)}},
		Counter: newCounter(t),
		Sink:    &recordingSink{},
	}

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Crossings, 1)
	assert.Equal(t, uint64(3), res.Crossings[0].Frame)
	assert.Equal(t, counter.Counts{Entry: 1}, res.Counts)
}

// Package pipeline drives one video through detect, track, count and render, one
// frame at a time. A frame is fully processed before the next one is read, so every
// identity's observations reach the counter in frame order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"FootfallCounter/counter"
	"FootfallCounter/engine"
	iface "FootfallCounter/interface"
	"FootfallCounter/logger"
	"FootfallCounter/summary"
	"FootfallCounter/tracker"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

type FrameSource interface {
	Read(dst *gocv.Mat) error
}

type Detector interface {
	Detect(img gocv.Mat) ([]iface.Detection, error)
}

type Sink interface {
	WriteFrame(frame *gocv.Mat, tracks []iface.Track, counts counter.Counts) error
	WriteSummary(last gocv.Mat, view summary.View, frames int) error
}

// FrameHook runs after each frame has been counted and rendered.
type FrameHook func(frame uint64, tracks []iface.Track, crossings []counter.Crossing)

type Pipeline struct {
	Source     FrameSource
	Detector   Detector
	Tracker    iface.Tracker
	Counter    *counter.Counter
	Sink       Sink
	ClassName  string
	HoldFrames int
	OnFrame    FrameHook
}

type Result struct {
	Frames    int
	Counts    counter.Counts
	Summary   summary.View
	Crossings []counter.Crossing
	Cancelled bool
	// ReadErr is set when the source failed mid-stream; the summary is still produced.
	ReadErr error
}

// Run processes frames until the source ends, fails or ctx is cancelled, then writes
// the summary from the last processed frame. The returned error is non-nil only for
// failures that made the counts unreliable or the output unwritable.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	var res Result
	frame := gocv.NewMat()
	defer frame.Close()
	last := gocv.NewMat()
	defer last.Close()

	runErr := p.loop(ctx, &frame, &last, &res)

	res.Counts = p.Counter.Counts()
	res.Summary = summary.Report(res.Counts)
	if err := p.Sink.WriteSummary(last, res.Summary, p.HoldFrames); err != nil && runErr == nil {
		runErr = fmt.Errorf("write summary: %w", err)
	}
	logger.Log().Info("Run finished",
		zap.Int("frames", res.Frames),
		zap.Int("entry", res.Summary.Entry),
		zap.Int("exit", res.Summary.Exit),
		zap.Int("total", res.Summary.Total),
		zap.Bool("cancelled", res.Cancelled),
		zap.NamedError("readError", res.ReadErr))
	return res, runErr
}

func (p *Pipeline) loop(ctx context.Context, frame, last *gocv.Mat, res *Result) error {
	for {
		select {
		case <-ctx.Done():
			res.Cancelled = true
			logger.Log().Warn("Processing cancelled", zap.Int("frames", res.Frames))
			return nil
		default:
		}

		if err := p.Source.Read(frame); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			res.ReadErr = err
			logger.Log().Error("Frame source failed", zap.Int("frames", res.Frames), zap.Error(err))
			return nil
		}
		// keep an unannotated copy for the summary frame
		frame.CopyTo(last)

		detections, err := p.Detector.Detect(*frame)
		if err != nil {
			return fmt.Errorf("detect frame %d: %w", res.Frames+1, err)
		}
		if p.ClassName != "" {
			detections = engine.FilterClass(detections, p.ClassName)
		}
		tracks := tracker.Confirmed(p.Tracker.Update(detections))

		observations := make([]counter.Observation, 0, len(tracks))
		for _, tr := range tracks {
			if !tr.Box.Valid() {
				return fmt.Errorf("%w: track %s has malformed box %+v", counter.ErrContractViolation, tr.ID, tr.Box)
			}
			observations = append(observations, counter.Observation{ID: tr.ID, Point: tr.Box.PixelCenter()})
		}
		crossings, err := p.Counter.ObserveFrame(observations)
		res.Crossings = append(res.Crossings, crossings...)
		if err != nil {
			return err
		}
		index := p.Counter.Frame()
		for _, c := range crossings {
			logger.Log().Debug("Crossing",
				zap.String("id", c.ID),
				zap.Uint64("frame", c.Frame),
				zap.Stringer("direction", c.Direction),
				zap.Stringer("from", c.From),
				zap.Stringer("to", c.To))
		}

		if err := p.Sink.WriteFrame(frame, tracks, p.Counter.Counts()); err != nil {
			return fmt.Errorf("render frame %d: %w", index, err)
		}
		res.Frames++
		if p.OnFrame != nil {
			p.OnFrame(index, tracks, crossings)
		}
	}
}

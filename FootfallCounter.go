package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"FootfallCounter/api"
	"FootfallCounter/collector"
	"FootfallCounter/config"
	"FootfallCounter/counter"
	"FootfallCounter/engine"
	iface "FootfallCounter/interface"
	"FootfallCounter/logger"
	"FootfallCounter/monitor"
	"FootfallCounter/pipeline"
	"FootfallCounter/summary"
	"FootfallCounter/tracker"
	"FootfallCounter/video"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const prompt = "Enter your input video filename (example: mall.mp4): "

func main() {
	os.Exit(run(os.Stdin, os.Stdout))
}

func readInputPath(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// streamFPS falls back when the container reports no usable frame rate.
func streamFPS(reported, fallback float64) float64 {
	if math.IsNaN(reported) || math.IsInf(reported, 0) || reported <= 0 {
		return fallback
	}
	return reported
}

func run(in io.Reader, out io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		return 1
	}
	if err := logger.Init(logger.Options{Development: cfg.Log.Development, Level: cfg.Log.Level}); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to init logger:", err)
		return 1
	}
	defer logger.Sync()

	path, err := readInputPath(in, out)
	if err != nil {
		logger.Log().Error("Failed to read input filename", zap.Error(err))
		return 1
	}
	if err := config.CheckInput(path); err != nil {
		logger.Log().Error("Input rejected", zap.String("path", path), zap.Error(err))
		fmt.Fprintf(out, "Error: Video file '%s' not found.\n", path)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := video.OpenSource(path)
	if err != nil {
		logger.Log().Error("Failed to open video", zap.Error(err))
		return 1
	}
	defer src.Close()
	props := src.Props()
	fps := streamFPS(props.FPS, cfg.FallbackFPS)
	if fps != props.FPS {
		logger.Log().Warn("Video reports no usable frame rate, using fallback",
			zap.Float64("reported", props.FPS), zap.Float64("fallback", fps))
	}
	logger.Log().Info("Opened video",
		zap.String("path", path),
		zap.Int("width", props.Width),
		zap.Int("height", props.Height),
		zap.Float64("fps", fps),
		zap.Int("frames", props.FrameCount))

	writer, err := video.NewWriter(cfg.Output, cfg.Codec, fps, props.Width, props.Height)
	if err != nil {
		logger.Log().Error("Failed to create output video", zap.Error(err))
		return 1
	}
	defer writer.Close()

	detector := &engine.Detector{InputSize: cfg.Model.InputSize}
	detector.New()
	detector.SetClasses(cfg.ClassName)
	names := iface.NamesConf{}
	if cfg.Model.NamesFile != "" {
		names = iface.NamesConf{IsFile: true, Data: cfg.Model.NamesFile}
	}
	if _, err := detector.LoadModel(cfg.Model.Path, names, cfg.Model.Conf, cfg.Model.Iou, cfg.Model.UseGPU); err != nil {
		logger.Log().Error("Failed to load detection model", zap.String("path", cfg.Model.Path), zap.Error(err))
		return 1
	}
	defer detector.Destroy()
	engineCfg := detector.CheckConfig()
	logger.Log().Info("Detector ready",
		zap.String("model", engineCfg.ModelPath),
		zap.Int("inputSize", engineCfg.InputSize),
		zap.Bool("useGPU", engineCfg.UseGPU))

	boundary, err := counter.NewBoundary(props.Height, cfg.BoundaryRatio)
	if err != nil {
		logger.Log().Error("Invalid counting boundary", zap.Error(err))
		return 1
	}
	entryFrom, err := counter.ParseSide(cfg.EntryFrom)
	if err != nil {
		logger.Log().Error("Invalid entry side", zap.Error(err))
		return 1
	}
	metrics := monitor.NewMetrics()
	cnt := counter.New(boundary,
		counter.WithEntryFrom(entryFrom),
		counter.WithEvictionHorizon(cfg.HistoryHorizon),
		counter.WithCrossingHook(metrics.ObserveCrossing))
	trk := tracker.New(tracker.Config{
		MaxAge:         cfg.Tracker.MaxAge,
		NInit:          cfg.Tracker.NInit,
		MaxIouDistance: cfg.Tracker.MaxIouDistance,
	}, tracker.WithRetireHook(cnt.Retire))

	svcCtx, cancelSvc := context.WithCancel(ctx)
	var wg sync.WaitGroup
	runID := uuid.NewString()
	var coll *collector.Client
	if cfg.Collector.URL != "" {
		coll = collector.New(cfg.Collector.URL, path, cfg.Collector.Timeout())
		runID = coll.RunID()
		wg.Add(1)
		go coll.SendAliveMessage(svcCtx, cnt, cfg.Collector.Heartbeat(), &wg)
	}
	if cfg.MetricsPort > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := monitor.StartMon(svcCtx, cfg.MetricsPort, metrics); err != nil {
				logger.Log().Error("Metrics server stopped", zap.Error(err))
			}
		}()
	}
	status := api.New(cnt, runID, path)
	if cfg.StatusPort > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := status.Start(svcCtx, cfg.StatusPort); err != nil {
				logger.Log().Error("Status API stopped", zap.Error(err))
			}
		}()
	}

	p := &pipeline.Pipeline{
		Source:     src,
		Detector:   detector,
		Tracker:    trk,
		Counter:    cnt,
		Sink:       video.NewRenderer(writer, boundary.Y()),
		ClassName:  cfg.ClassName,
		HoldFrames: summary.HoldFrames(fps, cfg.SummaryHold()),
		OnFrame: func(uint64, []iface.Track, []counter.Crossing) {
			metrics.ObserveFrame(cnt.Tracked(), cnt.Counts())
		},
	}
	fmt.Fprintln(out, "Processing video... please wait")
	res, runErr := p.Run(ctx)
	status.MarkFinished()

	_ = summary.WriteTerminal(out, res.Summary)
	fmt.Fprintf(out, "Output saved as %s\n", writer.Path())
	logger.S().Infow("Output written", "path", writer.Path(), "frames", writer.Frames())

	if coll != nil {
		postCtx, cancel := context.WithTimeout(context.Background(), cfg.Collector.Timeout()+time.Second)
		if err := coll.PostSummary(postCtx, cnt); err != nil {
			logger.Log().Warn("Failed to post final summary", zap.Error(err))
		}
		cancel()
	}
	cancelSvc()
	wg.Wait()

	switch {
	case runErr != nil:
		logger.Log().Error("Run failed", zap.Error(runErr))
		return 1
	case res.ReadErr != nil:
		return 1
	}
	return 0
}

// Package config holds the settings compiled into the binary from config.yaml.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"FootfallCounter/counter"

	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var embedded []byte

// ErrInputNotFound is returned when the requested input video does not exist.
var ErrInputNotFound = errors.New("input video not found")

type TrackerConfig struct {
	MaxAge         int     `yaml:"maxAge"`
	NInit          int     `yaml:"nInit"`
	MaxIouDistance float64 `yaml:"maxIouDistance"`
}

type ModelConfig struct {
	Path      string  `yaml:"path"`
	NamesFile string  `yaml:"namesFile"`
	Conf      float32 `yaml:"conf"`
	Iou       float32 `yaml:"iou"`
	InputSize int     `yaml:"inputSize"`
	UseGPU    bool    `yaml:"useGPU"`
}

type LogConfig struct {
	Development bool   `yaml:"development"`
	Level       string `yaml:"level"`
}

type CollectorConfig struct {
	URL              string `yaml:"url"`
	HeartbeatSeconds int    `yaml:"heartbeatSeconds"`
	TimeoutSeconds   int    `yaml:"timeoutSeconds"`
}

type Config struct {
	BoundaryRatio      float64         `yaml:"boundaryRatio"`
	EntryFrom          string          `yaml:"entryFrom"`
	ClassName          string          `yaml:"className"`
	Tracker            TrackerConfig   `yaml:"tracker"`
	HistoryHorizon     uint64          `yaml:"historyHorizon"`
	Model              ModelConfig     `yaml:"model"`
	Output             string          `yaml:"output"`
	Codec              string          `yaml:"codec"`
	SummaryHoldSeconds float64         `yaml:"summaryHoldSeconds"`
	FallbackFPS        float64         `yaml:"fallbackFPS"`
	Log                LogConfig       `yaml:"log"`
	MetricsPort        int             `yaml:"metricsPort"`
	StatusPort         int             `yaml:"statusPort"`
	Collector          CollectorConfig `yaml:"collector"`
}

func Default() Config {
	return Config{
		BoundaryRatio: 0.55,
		EntryFrom:     "above",
		ClassName:     "person",
		Tracker: TrackerConfig{
			MaxAge:         30,
			NInit:          2,
			MaxIouDistance: 0.7,
		},
		HistoryHorizon: 30,
		Model: ModelConfig{
			Path:      "models/yolov8n.onnx",
			Conf:      0.25,
			Iou:       0.45,
			InputSize: 640,
		},
		Output:             "output.mp4",
		Codec:              "mp4v",
		SummaryHoldSeconds: 2,
		FallbackFPS:        30,
		Log:                LogConfig{Development: true, Level: "info"},
		Collector: CollectorConfig{
			HeartbeatSeconds: 5,
			TimeoutSeconds:   5,
		},
	}
}

// Load returns the embedded configuration.
func Load() (Config, error) {
	return Parse(embedded)
}

// Parse decodes data over the defaults, so omitted keys keep their default values.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.BoundaryRatio <= 0 || c.BoundaryRatio >= 1 {
		return fmt.Errorf("boundaryRatio must be in (0, 1), got %v", c.BoundaryRatio)
	}
	if _, err := counter.ParseSide(c.EntryFrom); err != nil {
		return fmt.Errorf("entryFrom must be above or below: %w", err)
	}
	if c.ClassName == "" {
		return errors.New("className cannot be empty")
	}
	if c.Tracker.MaxAge < 1 {
		return fmt.Errorf("tracker.maxAge must be at least 1, got %d", c.Tracker.MaxAge)
	}
	if c.Tracker.NInit < 1 {
		return fmt.Errorf("tracker.nInit must be at least 1, got %d", c.Tracker.NInit)
	}
	if c.Tracker.MaxIouDistance <= 0 || c.Tracker.MaxIouDistance > 1 {
		return fmt.Errorf("tracker.maxIouDistance must be in (0, 1], got %v", c.Tracker.MaxIouDistance)
	}
	if c.Model.Path == "" {
		return errors.New("model path cannot be empty")
	}
	if c.Model.Conf < 0 || c.Model.Conf > 1 {
		return fmt.Errorf("model confidence must be between 0.0 and 1.0, got %f", c.Model.Conf)
	}
	if c.Model.Iou < 0 || c.Model.Iou > 1 {
		return fmt.Errorf("model IoU must be between 0.0 and 1.0, got %f", c.Model.Iou)
	}
	if c.Model.InputSize <= 0 || c.Model.InputSize%32 != 0 {
		return fmt.Errorf("model inputSize must be a positive multiple of 32, got %d", c.Model.InputSize)
	}
	if c.Output == "" {
		return errors.New("output path cannot be empty")
	}
	if len(c.Codec) != 4 {
		return fmt.Errorf("codec must be a fourcc, got %q", c.Codec)
	}
	if c.SummaryHoldSeconds < 0 {
		return fmt.Errorf("summaryHoldSeconds cannot be negative, got %v", c.SummaryHoldSeconds)
	}
	if c.FallbackFPS <= 0 {
		return fmt.Errorf("fallbackFPS must be positive, got %v", c.FallbackFPS)
	}
	for name, port := range map[string]int{"metricsPort": c.MetricsPort, "statusPort": c.StatusPort} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("%s out of range: %d", name, port)
		}
	}
	if c.Collector.URL != "" && c.Collector.TimeoutSeconds <= 0 {
		return fmt.Errorf("collector.timeoutSeconds must be positive, got %d", c.Collector.TimeoutSeconds)
	}
	return nil
}

func (c Config) SummaryHold() time.Duration {
	return time.Duration(c.SummaryHoldSeconds * float64(time.Second))
}

func (c CollectorConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

func (c CollectorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CheckInput verifies the input video exists and is a regular file.
func CheckInput(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("%w: empty filename", ErrInputNotFound)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: video file '%s' not found", ErrInputNotFound, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: '%s' is a directory", ErrInputNotFound, path)
	}
	return nil
}

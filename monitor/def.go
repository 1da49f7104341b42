package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"FootfallCounter/counter"
	"FootfallCounter/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

const sampleInterval = 500 * time.Millisecond

// Metrics 是 /metrics 暴露的独立 registry：计数进度 + 本进程 CPU/内存
type Metrics struct {
	registry  *prometheus.Registry
	PID       *process.Process
	memUsage  prometheus.Gauge
	cpuUsage  prometheus.Gauge
	crossings *prometheus.CounterVec
	frames    prometheus.Counter
	tracked   prometheus.Gauge
	entry     prometheus.Gauge
	exit      prometheus.Gauge
	total     prometheus.Gauge
}

// NewMetrics 创建并注册全部指标
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_Megabytes",
		Help: "Memory usage in Megabytes",
	})
	m.cpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})
	m.crossings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "footfall_crossings_total",
		Help: "Boundary crossings counted, by direction",
	}, []string{"direction"})
	m.frames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "footfall_frames_processed_total",
		Help: "Frames taken through detection, tracking and counting",
	})
	m.tracked = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "footfall_tracked_identities",
		Help: "Identities currently held in the side history",
	})
	m.entry = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "footfall_entry_count",
		Help: "Current entry count",
	})
	m.exit = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "footfall_exit_count",
		Help: "Current exit count",
	})
	m.total = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "footfall_total_count",
		Help: "Current total count",
	})
	m.registry.MustRegister(m.memUsage, m.cpuUsage, m.crossings, m.frames, m.tracked, m.entry, m.exit, m.total)
	// 预先创建两个方向的序列，面板上一开始就显示 0 而不是空白
	m.crossings.WithLabelValues(directionLabel(counter.DirectionEntry))
	m.crossings.WithLabelValues(directionLabel(counter.DirectionExit))
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCrossing 作为 counter 的 crossing hook 安装（在 counter 锁内调用，不能回调 counter）
func (m *Metrics) ObserveCrossing(c counter.Crossing) {
	m.crossings.WithLabelValues(directionLabel(c.Direction)).Inc()
}

func directionLabel(d counter.Direction) string {
	return strings.ToLower(d.String())
}

// ObserveFrame 每处理完一帧调用一次
func (m *Metrics) ObserveFrame(tracked int, counts counter.Counts) {
	m.frames.Inc()
	m.tracked.Set(float64(tracked))
	m.entry.Set(float64(counts.Entry))
	m.exit.Set(float64(counts.Exit))
	m.total.Set(float64(counts.Total()))
}

// CheckProcessInfo 采样一次 RSS(MB) 和 CPU%，取不到时保留旧值
func (m *Metrics) CheckProcessInfo() {
	if m.PID == nil {
		return
	}
	if memInfo, err := m.PID.MemoryInfo(); err == nil {
		m.memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	if cpuPercent, err := m.PID.CPUPercent(); err == nil {
		// 保留两位小数
		m.cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// GotPID 绑定当前进程
func (m *Metrics) GotPID() error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("lookup own process: %w", err)
	}
	m.PID = proc
	return nil
}

// StartMon 在 port 上提供 /metrics，每 500ms 采样一次进程信息，直到 ctx 结束
func StartMon(ctx context.Context, port int, m *Metrics) error {
	if err := m.GotPID(); err != nil {
		logger.Log().Warn("Process metrics disabled", zap.Error(err))
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	logger.Log().Info("Metrics server started", zap.Int("port", port))

	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case err, ok := <-serveErr:
			if ok {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		case <-ticker.C:
			m.CheckProcessInfo()
		}
	}
	// ctx 已经取消，Shutdown 需要新的超时 ctx
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}

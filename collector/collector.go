// Package collector reports a run's counts to a remote HTTP endpoint: periodic
// heartbeats while the video is processed and one final summary at the end.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FootfallCounter/counter"
	"FootfallCounter/logger"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const TimeOutSeconds = 5

var ErrRejected = errors.New("collector rejected report")

type Report struct {
	RunID     string `json:"runId"`
	Source    string `json:"source"`
	Frame     uint64 `json:"frame"`
	Entry     int    `json:"entry"`
	Exit      int    `json:"exit"`
	Total     int    `json:"total"`
	Final     bool   `json:"final"`
	TimeStamp int64  `json:"timestamp"`
}

type Response struct {
	RunID   string `json:"runId"`
	Success bool   `json:"success"`
}

// Snapshotter is the read side of a counter.
type Snapshotter interface {
	Counts() counter.Counts
	Frame() uint64
}

type Client struct {
	url    string
	runID  string
	source string
	http   *resty.Client
}

func New(url, source string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = TimeOutSeconds * time.Second
	}
	return &Client{
		url:    url,
		runID:  uuid.NewString(),
		source: source,
		http:   resty.New().SetTimeout(timeout),
	}
}

// RunID identifies this process's reports.
func (c *Client) RunID() string {
	return c.runID
}

func (c *Client) report(s Snapshotter, final bool) Report {
	counts := s.Counts()
	return Report{
		RunID:     c.runID,
		Source:    c.source,
		Frame:     s.Frame(),
		Entry:     counts.Entry,
		Exit:      counts.Exit,
		Total:     counts.Total(),
		Final:     final,
		TimeStamp: time.Now().Unix(),
	}
}

func (c *Client) post(ctx context.Context, body Report) error {
	var respBody Response
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).        // resty 直接把 struct 编码成 JSON
		SetResult(&respBody). // 2xx 自动反序列化到 respBody
		Post(c.url)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	// 检查 HTTP 状态码
	if resp.IsError() {
		return fmt.Errorf("%w: %s, body: %s", ErrRejected, resp.Status(), resp.String())
	}
	if !respBody.Success {
		return fmt.Errorf("%w: success=false", ErrRejected)
	}
	return nil
}

// SendAliveMessage posts a heartbeat every interval until ctx is done. Failures are
// logged and never stop the loop.
func (c *Client) SendAliveMessage(ctx context.Context, s Snapshotter, interval time.Duration, wg *sync.WaitGroup) {
	defer wg.Done()
	// 未配置时使用默认间隔
	if interval <= 0 {
		interval = TimeOutSeconds * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	safeDoRequest := func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Log().Error("SendAliveMessage panic recovered", zap.Any("panic", r))
			}
		}()
		if err := c.post(ctx, c.report(s, false)); err != nil && ctx.Err() == nil {
			logger.Log().Warn("Heartbeat failed", zap.String("url", c.url), zap.Error(err))
		}
	}
	safeDoRequest()
	for {
		select {
		case <-ctx.Done():
			logger.Log().Debug("SendAliveMessage context cancelled, exiting goroutine.")
			return
		case <-ticker.C:
			safeDoRequest()
		}
	}
}

// PostSummary sends the final counts once.
func (c *Client) PostSummary(ctx context.Context, s Snapshotter) error {
	return c.post(ctx, c.report(s, true))
}

// Package api serves the live counts of a run over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"FootfallCounter/counter"
	"FootfallCounter/logger"
	"FootfallCounter/summary"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Status is the read side of a counter.
type Status interface {
	Counts() counter.Counts
	Frame() uint64
	Tracked() int
}

type CountsResponse struct {
	RunID    string `json:"runId"`
	Source   string `json:"source"`
	Frame    uint64 `json:"frame"`
	Tracked  int    `json:"tracked"`
	Finished bool   `json:"finished"`
	summary.View
}

type Server struct {
	status   Status
	runID    string
	source   string
	finished atomic.Bool
	router   *gin.Engine
}

func New(status Status, runID, source string) *Server {
	s := &Server{status: status, runID: runID, source: source}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/counts", s.counts)
	s.router = r
	return s
}

func (s *Server) counts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.Snapshot()})
}

// Snapshot reads the counter once, so entry, exit and total always agree.
func (s *Server) Snapshot() CountsResponse {
	return CountsResponse{
		RunID:    s.runID,
		Source:   s.source,
		Frame:    s.status.Frame(),
		Tracked:  s.status.Tracked(),
		Finished: s.finished.Load(),
		View:     summary.Report(s.status.Counts()),
	}
}

// MarkFinished flags the counts as final.
func (s *Server) MarkFinished() {
	s.finished.Store(true)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on port until ctx is done.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Log().Info("Status API started", zap.Int("port", port), zap.String("runId", s.runID))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status api: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status api shutdown: %w", err)
	}
	return nil
}

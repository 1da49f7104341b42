package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"FootfallCounter/counter"
	iface "FootfallCounter/interface"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	s := New(counter.New(counter.Boundary{}), "run-1", "mall.mp4")
	w := get(t, s, "/api/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestCounts(t *testing.T) {
	b, err := counter.NewBoundary(100, 0.5)
	require.NoError(t, err)
	c := counter.New(b)
	frames := [][]counter.Observation{
		{{ID: "1", Point: iface.Position{X: 10, Y: 10}}, {ID: "2", Point: iface.Position{X: 10, Y: 90}}},
		{{ID: "1", Point: iface.Position{X: 10, Y: 60}}, {ID: "2", Point: iface.Position{X: 10, Y: 80}}},
		{{ID: "2", Point: iface.Position{X: 10, Y: 20}}},
	}
	for _, f := range frames {
		_, err := c.ObserveFrame(f)
		require.NoError(t, err)
	}

	s := New(c, "run-1", "mall.mp4")
	w := get(t, s, "/api/counts")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data CountsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.Data.RunID)
	assert.Equal(t, "mall.mp4", body.Data.Source)
	assert.Equal(t, uint64(3), body.Data.Frame)
	assert.Equal(t, 1, body.Data.Entry)
	assert.Equal(t, 1, body.Data.Exit)
	assert.Equal(t, 2, body.Data.Total)
	assert.False(t, body.Data.Finished)

	s.MarkFinished()
	assert.True(t, s.Snapshot().Finished)
}

func TestUnknownRoute(t *testing.T) {
	s := New(counter.New(counter.Boundary{}), "run-1", "mall.mp4")
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/nope").Code)
}

func TestStartStopsOnCancel(t *testing.T) {
	s := New(counter.New(counter.Boundary{}), "run-1", "mall.mp4")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx, 0) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

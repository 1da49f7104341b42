package summary

import (
	"bytes"
	"math"
	"testing"
	"time"

	"FootfallCounter/counter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	v := Report(counter.Counts{Entry: 4, Exit: 3})
	assert.Equal(t, View{Entry: 4, Exit: 3, Total: 7}, v)
	assert.Equal(t, []string{
		"FINAL FOOTFALL SUMMARY",
		"ENTRY COUNT : 4",
		"EXIT COUNT  : 3",
		"TOTAL COUNT : 7",
	}, v.Lines())
}

func TestHoldFrames(t *testing.T) {
	cases := []struct {
		fps  float64
		hold time.Duration
		want int
	}{
		{30, DefaultHold, 60},
		{25, DefaultHold, 50},
		{29.97, DefaultHold, 60},
		{23.976, DefaultHold, 48},
		{12.25, DefaultHold, 25},
		{0.1, DefaultHold, 1},
		{30, 0, 0},
		{0, DefaultHold, 0},
		{-5, DefaultHold, 0},
		{math.NaN(), DefaultHold, 0},
		{math.Inf(1), DefaultHold, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HoldFrames(c.fps, c.hold), "fps=%v hold=%v", c.fps, c.hold)
	}
}

func TestWriteTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTerminal(&buf, View{Entry: 1, Exit: 2, Total: 3}))
	out := buf.String()
	assert.Contains(t, out, "ENTRY : 1")
	assert.Contains(t, out, "EXIT  : 2")
	assert.Contains(t, out, "TOTAL : 3")
}

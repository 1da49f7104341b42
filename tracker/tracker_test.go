package tracker

import (
	"math"
	"testing"

	iface "FootfallCounter/interface"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func person(x, y float64) iface.Detection {
	return iface.Detection{
		Class: "person",
		Conf:  0.9,
		Box: iface.Box{
			LT: iface.Position{X: x, Y: y},
			RB: iface.Position{X: x + 40, Y: y + 100},
		},
	}
}

func ids(tracks []iface.Track) []string {
	out := make([]string, 0, len(tracks))
	for _, tr := range tracks {
		out = append(out, tr.ID)
	}
	return out
}

func TestConfirmationAfterNInit(t *testing.T) {
	tr := New(DefaultConfig())

	out := tr.Update([]iface.Detection{person(100, 100)})
	require.Len(t, out, 1)
	assert.False(t, out[0].Confirmed)
	assert.Empty(t, Confirmed(out))

	out = tr.Update([]iface.Detection{person(104, 106)})
	require.Len(t, out, 1)
	assert.True(t, out[0].Confirmed)
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, 104.0, out[0].Box.LT.X)
}

func TestTentativeDeletedOnMiss(t *testing.T) {
	tr := New(DefaultConfig())
	tr.Update([]iface.Detection{person(100, 100)})
	out := tr.Update(nil)
	assert.Empty(t, out)

	out = tr.Update([]iface.Detection{person(100, 100)})
	require.Len(t, out, 1)
	assert.Equal(t, "2", out[0].ID)
}

func TestConfirmedCoastsThenRetires(t *testing.T) {
	var retired []string
	tr := New(Config{MaxAge: 3, NInit: 2, MaxIouDistance: 0.7}, WithRetireHook(func(id string) {
		retired = append(retired, id)
	}))
	tr.Update([]iface.Detection{person(100, 100)})
	tr.Update([]iface.Detection{person(100, 110)})

	for miss := 1; miss <= 3; miss++ {
		out := tr.Update(nil)
		require.Len(t, out, 1, "miss %d", miss)
		assert.True(t, out[0].Confirmed)
		assert.Equal(t, miss, out[0].Misses)
	}
	assert.Empty(t, retired)

	assert.Empty(t, tr.Update(nil))
	assert.Equal(t, []string{"1"}, retired)
}

func TestCoastingFollowsVelocity(t *testing.T) {
	tr := New(DefaultConfig())
	tr.Update([]iface.Detection{person(100, 100)})
	tr.Update([]iface.Detection{person(100, 120)})
	before := tr.tracks[0].box.Center().Y

	out := tr.Update(nil)
	require.Len(t, out, 1)
	assert.Greater(t, out[0].Box.Center().Y, before)
}

func TestTwoPeopleKeepIdentities(t *testing.T) {
	tr := New(DefaultConfig())
	tr.Update([]iface.Detection{person(100, 100), person(400, 500)})
	out := tr.Update([]iface.Detection{person(402, 490), person(103, 110)})

	if diff := cmp.Diff([]string{"1", "2"}, ids(out)); diff != "" {
		t.Errorf("track ids (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 103, out[0].Box.LT.X, 1e-9)
	assert.InDelta(t, 402, out[1].Box.LT.X, 1e-9)
	tentative, confirmed := tr.Count()
	assert.Equal(t, 0, tentative)
	assert.Equal(t, 2, confirmed)
}

func TestFarDetectionStartsNewTrack(t *testing.T) {
	tr := New(DefaultConfig())
	tr.Update([]iface.Detection{person(100, 100)})
	out := tr.Update([]iface.Detection{person(100, 100), person(600, 100)})
	assert.Equal(t, []string{"1", "2"}, ids(out))
	assert.True(t, out[0].Confirmed)
	assert.False(t, out[1].Confirmed)
}

func TestInvalidBoxesIgnored(t *testing.T) {
	tr := New(DefaultConfig())
	bad := person(0, 0)
	bad.Box.RB.X = math.NaN()
	inverted := person(50, 50)
	inverted.Box.RB.Y = 10
	assert.Empty(t, tr.Update([]iface.Detection{bad, inverted}))
}

func TestNInitOneConfirmsImmediately(t *testing.T) {
	tr := New(Config{MaxAge: 5, NInit: 1, MaxIouDistance: 0.7})
	out := tr.Update([]iface.Detection{person(1, 1)})
	require.Len(t, out, 1)
	assert.True(t, out[0].Confirmed)
}

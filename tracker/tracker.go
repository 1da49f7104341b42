// Package tracker associates per-frame detections into stable identities.
//
// Tracks start tentative and are confirmed after NInit consecutive matches. A tentative
// track that misses a frame is deleted; a confirmed track coasts on its last velocity and
// is deleted once it has missed more than MaxAge frames.
package tracker

import (
	"sort"
	"strconv"

	iface "FootfallCounter/interface"
)

type TrackState string

const (
	TrackTentative TrackState = "tentative"
	TrackConfirmed TrackState = "confirmed"
	TrackDeleted   TrackState = "deleted"
)

type Config struct {
	MaxAge         int     // misses before a confirmed track is deleted
	NInit          int     // consecutive hits needed for confirmation
	MaxIouDistance float64 // associations need 1-IoU <= MaxIouDistance
}

func DefaultConfig() Config {
	return Config{MaxAge: 30, NInit: 2, MaxIouDistance: 0.7}
}

type track struct {
	id     string
	state  TrackState
	box    iface.Box
	last   iface.Position // center at the last match
	vx, vy float64        // center velocity, pixels per frame
	hits   int
	misses int
}

func (t *track) predict() {
	t.box.LT.X += t.vx
	t.box.RB.X += t.vx
	t.box.LT.Y += t.vy
	t.box.RB.Y += t.vy
}

func (t *track) update(box iface.Box) {
	cur := box.Center()
	elapsed := float64(t.misses + 1)
	// exponential smoothing keeps single-frame jitter out of the coast velocity
	const alpha = 0.5
	t.vx = alpha*(cur.X-t.last.X)/elapsed + (1-alpha)*t.vx
	t.vy = alpha*(cur.Y-t.last.Y)/elapsed + (1-alpha)*t.vy
	t.box = box
	t.last = cur
}

type Option func(*Tracker)

// WithRetireHook is called with the id of every confirmed track the tracker deletes.
func WithRetireHook(fn func(id string)) Option {
	return func(t *Tracker) {
		t.onRetire = fn
	}
}

var _ iface.Tracker = (*Tracker)(nil)

type Tracker struct {
	cfg      Config
	tracks   []*track
	nextID   int
	onRetire func(id string)
}

func New(cfg Config, opts ...Option) *Tracker {
	if cfg.NInit < 1 {
		cfg.NInit = 1
	}
	t := &Tracker{cfg: cfg, nextID: 1}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type pair struct {
	track, det int
	iou        float64
}

// Update advances every track by one frame and returns the live tracks in creation
// order. Invalid detection boxes are ignored.
func (t *Tracker) Update(detections []iface.Detection) []iface.Track {
	for _, tr := range t.tracks {
		tr.predict()
	}

	dets := make([]iface.Detection, 0, len(detections))
	for _, d := range detections {
		if d.Box.Valid() && d.Box.Area() > 0 {
			dets = append(dets, d)
		}
	}

	minIoU := 1 - t.cfg.MaxIouDistance
	var candidates []pair
	for ti, tr := range t.tracks {
		for di, d := range dets {
			iou := tr.box.IoU(d.Box)
			if iou > 0 && iou >= minIoU {
				candidates = append(candidates, pair{track: ti, det: di, iou: iou})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].iou > candidates[j].iou
	})

	trackUsed := make([]bool, len(t.tracks))
	detUsed := make([]bool, len(dets))
	for _, c := range candidates {
		if trackUsed[c.track] || detUsed[c.det] {
			continue
		}
		trackUsed[c.track] = true
		detUsed[c.det] = true
		tr := t.tracks[c.track]
		tr.update(dets[c.det].Box)
		tr.hits++
		tr.misses = 0
		if tr.state == TrackTentative && tr.hits >= t.cfg.NInit {
			tr.state = TrackConfirmed
		}
	}

	for ti, tr := range t.tracks {
		if trackUsed[ti] {
			continue
		}
		tr.misses++
		tr.hits = 0
		switch {
		case tr.state == TrackTentative:
			tr.state = TrackDeleted
		case tr.misses > t.cfg.MaxAge:
			tr.state = TrackDeleted
			if t.onRetire != nil {
				t.onRetire(tr.id)
			}
		}
	}

	for di, d := range dets {
		if detUsed[di] {
			continue
		}
		state := TrackTentative
		if t.cfg.NInit <= 1 {
			state = TrackConfirmed
		}
		t.tracks = append(t.tracks, &track{
			id:    strconv.Itoa(t.nextID),
			state: state,
			box:   d.Box,
			last:  d.Box.Center(),
			hits:  1,
		})
		t.nextID++
	}

	live := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.state != TrackDeleted {
			live = append(live, tr)
		}
	}
	t.tracks = live

	out := make([]iface.Track, 0, len(t.tracks))
	for _, tr := range t.tracks {
		out = append(out, iface.Track{
			ID:        tr.id,
			Box:       tr.box,
			Confirmed: tr.state == TrackConfirmed,
			Misses:    tr.misses,
		})
	}
	return out
}

// Confirmed filters out tentative tracks.
func Confirmed(tracks []iface.Track) []iface.Track {
	out := make([]iface.Track, 0, len(tracks))
	for _, tr := range tracks {
		if tr.Confirmed {
			out = append(out, tr)
		}
	}
	return out
}

// Count returns the number of tracks in each state.
func (t *Tracker) Count() (tentative, confirmed int) {
	for _, tr := range t.tracks {
		switch tr.state {
		case TrackTentative:
			tentative++
		case TrackConfirmed:
			confirmed++
		}
	}
	return tentative, confirmed
}

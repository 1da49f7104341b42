package counter

import (
	"errors"
	"fmt"
	"sync"

	iface "FootfallCounter/interface"
)

// ErrContractViolation marks observations the counter refuses to classify.
var ErrContractViolation = errors.New("observation contract violation")

type Direction int

const (
	DirectionEntry Direction = iota + 1
	DirectionExit
)

func (d Direction) String() string {
	switch d {
	case DirectionEntry:
		return "ENTRY"
	case DirectionExit:
		return "EXIT"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

type Observation struct {
	ID    string
	Point iface.Position
}

type Crossing struct {
	ID        string
	Frame     uint64
	From      Side
	To        Side
	Direction Direction
}

// Counts is a read-only snapshot of the tallies.
type Counts struct {
	Entry int
	Exit  int
}

func (c Counts) Total() int {
	return c.Entry + c.Exit
}

type Option func(*Counter)

// WithEntryFrom sets the side an entry starts from, SideAbove by default.
func WithEntryFrom(side Side) Option {
	return func(c *Counter) {
		c.entryFrom = side
	}
}

// WithEvictionHorizon bounds the history to identities seen in the last n frames.
func WithEvictionHorizon(n uint64) Option {
	return func(c *Counter) {
		c.history = NewHistory(n)
	}
}

// WithCrossingHook registers fn to run after every counted crossing, under the counter lock.
func WithCrossingHook(fn func(Crossing)) Option {
	return func(c *Counter) {
		c.hooks = append(c.hooks, fn)
	}
}

// Counter is the crossing state machine. One goroutine feeds it frames; any goroutine
// may read Counts.
type Counter struct {
	mu        sync.RWMutex
	boundary  Boundary
	history   *History
	entryFrom Side
	entry     int
	exit      int
	frame     uint64
	hooks     []func(Crossing)
}

func New(boundary Boundary, opts ...Option) *Counter {
	c := &Counter{
		boundary:  boundary,
		history:   NewHistory(0),
		entryFrom: SideAbove,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Counter) Boundary() Boundary {
	return c.boundary
}

// BeginFrame advances the frame index and evicts stale identities.
func (c *Counter) BeginFrame() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame++
	c.history.Advance(c.frame)
	c.history.Evict()
	return c.frame
}

// Observe applies one observation to the current frame. It returns the crossing it
// caused, or nil.
func (c *Counter) Observe(obs Observation) (*Crossing, error) {
	if obs.ID == "" {
		return nil, fmt.Errorf("%w: empty track identity", ErrContractViolation)
	}
	if !obs.Point.Finite() {
		return nil, fmt.Errorf("%w: identity %s has non-finite center (%v, %v)", ErrContractViolation, obs.ID, obs.Point.X, obs.Point.Y)
	}
	current := c.boundary.Classify(obs.Point)

	c.mu.Lock()
	defer c.mu.Unlock()
	previous, seen := c.history.Get(obs.ID)
	if !seen {
		c.history.Set(obs.ID, current)
		return nil, nil
	}
	if previous == current {
		c.history.Touch(obs.ID)
		return nil, nil
	}

	crossing := Crossing{ID: obs.ID, Frame: c.frame, From: previous, To: current}
	if previous == c.entryFrom {
		c.entry++
		crossing.Direction = DirectionEntry
	} else {
		c.exit++
		crossing.Direction = DirectionExit
	}
	c.history.Set(obs.ID, current)
	for _, hook := range c.hooks {
		hook(crossing)
	}
	return &crossing, nil
}

// ObserveFrame starts a new frame and applies observations in order. Processing stops
// at the first contract violation; crossings counted before it are kept.
func (c *Counter) ObserveFrame(observations []Observation) ([]Crossing, error) {
	c.BeginFrame()
	var crossings []Crossing
	for _, obs := range observations {
		crossing, err := c.Observe(obs)
		if err != nil {
			return crossings, err
		}
		if crossing != nil {
			crossings = append(crossings, *crossing)
		}
	}
	return crossings, nil
}

// Retire forgets an identity the tracker has dropped.
func (c *Counter) Retire(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history.Remove(id)
}

func (c *Counter) Counts() Counts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Counts{Entry: c.entry, Exit: c.exit}
}

func (c *Counter) Frame() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame
}

// Tracked returns the number of identities currently held in history.
func (c *Counter) Tracked() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.history.Len()
}

package smoothing

import (
	"math"
	"sort"
)

// KeyMode selects how per-hand state is associated across frames.
type KeyMode int

const (
	// KeyByTrack matches each new pose to the nearest existing track, so
	// state follows a physical hand even when the detector reorders hands.
	KeyByTrack KeyMode = iota
	// KeyBySlot keys state by the hand's position in the frame's list.
	KeyBySlot
)

// String returns the mode name used in configuration.
func (m KeyMode) String() string {
	if m == KeyBySlot {
		return "slot"
	}
	return "track"
}

// ParseKeyMode parses "track" or "slot". Anything else means KeyByTrack.
func ParseKeyMode(s string) KeyMode {
	if s == "slot" {
		return KeyBySlot
	}
	return KeyByTrack
}

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	Mode   KeyMode
	Alphas Alphas
	// MaxMissed is how many consecutive frames a track may go unobserved
	// before it is dropped. Negative keeps tracks until Reset.
	MaxMissed int
	// MatchFactor bounds association distance as a multiple of the larger
	// pose width. Beyond it a pose starts a new track.
	MatchFactor float64
}

// DefaultTrackerConfig returns the default configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Mode:        KeyByTrack,
		Alphas:      DefaultAlphas(),
		MaxMissed:   15,
		MatchFactor: 1.5,
	}
}

// Track is the persistent smoothed state of one hand.
type Track struct {
	ID     int  `json:"id"`
	Pose   Pose `json:"pose"`
	Missed int  `json:"missed"`
	Frames int  `json:"frames"`
}

// Observation is the tracker output for one input pose.
type Observation struct {
	TrackID int
	Slot    int
	Pose    Pose
	// Fresh is set when the track was created by this update.
	Fresh bool
}

// Tracker owns the per-hand smoothed state of one try-on session. It is
// not safe for concurrent use; the session serializes access.
type Tracker struct {
	cfg      TrackerConfig
	smoother *Smoother
	tracks   map[int]*Track
	nextID   int
}

// NewTracker creates an empty Tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.MatchFactor <= 0 {
		cfg.MatchFactor = DefaultTrackerConfig().MatchFactor
	}
	return &Tracker{
		cfg:      cfg,
		smoother: New(cfg.Alphas),
		tracks:   make(map[int]*Track),
	}
}

// Update blends this frame's fitted poses into their tracks and returns
// the smoothed poses in input order. Tracks seen for the first time are
// initialized to the fitted pose without blending.
func (t *Tracker) Update(targets []Pose) []Observation {
	var assign []int
	if t.cfg.Mode == KeyBySlot {
		assign = make([]int, len(targets))
		for i := range targets {
			assign[i] = i
		}
	} else {
		assign = t.match(targets)
	}

	seen := make(map[int]bool, len(targets))
	out := make([]Observation, len(targets))

	for i, target := range targets {
		id := assign[i]
		if id < 0 {
			id = t.allocID()
		}
		seen[id] = true

		tr, ok := t.tracks[id]
		if !ok {
			tr = &Track{ID: id, Pose: target}
			t.tracks[id] = tr
		} else {
			tr.Pose = t.smoother.Blend(tr.Pose, target)
		}
		tr.Missed = 0
		tr.Frames++

		out[i] = Observation{TrackID: id, Slot: i, Pose: tr.Pose, Fresh: !ok}
	}

	for id, tr := range t.tracks {
		if seen[id] {
			continue
		}
		tr.Missed++
		if t.cfg.MaxMissed >= 0 && tr.Missed > t.cfg.MaxMissed {
			delete(t.tracks, id)
		}
	}

	return out
}

// Tracks returns a snapshot of live tracks ordered by ID.
func (t *Tracker) Tracks() []Track {
	out := make([]Track, 0, len(t.tracks))
	for _, tr := range t.tracks {
		out = append(out, *tr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live tracks.
func (t *Tracker) Len() int {
	return len(t.tracks)
}

// Reset drops every track.
func (t *Tracker) Reset() {
	t.tracks = make(map[int]*Track)
	t.nextID = 0
}

func (t *Tracker) allocID() int {
	for {
		id := t.nextID
		t.nextID++
		if _, taken := t.tracks[id]; !taken {
			return id
		}
	}
}

// match greedily pairs poses with tracks by center distance, closest pairs
// first. Unmatched poses get -1.
func (t *Tracker) match(targets []Pose) []int {
	type pair struct {
		target, track int
		dist          float64
	}

	var pairs []pair
	for i, p := range targets {
		for id, tr := range t.tracks {
			d := math.Hypot(p.X-tr.Pose.X, p.Y-tr.Pose.Y)
			limit := t.cfg.MatchFactor * math.Max(p.Width, tr.Pose.Width)
			if d <= limit {
				pairs = append(pairs, pair{target: i, track: id, dist: d})
			}
		}
	}

	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].dist != pairs[b].dist {
			return pairs[a].dist < pairs[b].dist
		}
		if pairs[a].target != pairs[b].target {
			return pairs[a].target < pairs[b].target
		}
		return pairs[a].track < pairs[b].track
	})

	assign := make([]int, len(targets))
	for i := range assign {
		assign[i] = -1
	}
	used := make(map[int]bool)
	for _, p := range pairs {
		if assign[p.target] >= 0 || used[p.track] {
			continue
		}
		assign[p.target] = p.track
		used[p.track] = true
	}
	return assign
}

package session

import (
	"errors"
	"path/filepath"
	"time"
)

// Recording is one participant's expanded archive.
type Recording struct {
	Index   int
	Archive string
	Dir     string
	Format  string
	// Tracks is captured once at discovery and never rescanned.
	Tracks []string

	mixed      string
	mixElapsed time.Duration
}

// MixedPath returns the mixed track, or "" before a successful mix.
func (r *Recording) MixedPath() string {
	return r.mixed
}

var errMixedAlreadySet = errors.New("mixed path already set")

func (r *Recording) setMixed(path string, elapsed time.Duration) error {
	if r.mixed != "" {
		return errMixedAlreadySet
	}
	r.mixed = path
	r.mixElapsed = elapsed
	return nil
}

// Session is the ordered set of recordings for one named run.
type Session struct {
	Name       string
	Format     string
	Output     string
	RawDir     string
	Recordings []*Recording
}

// Dir is the directory holding every recording of the session.
func (s *Session) Dir() string {
	return filepath.Join(s.RawDir, s.Name)
}

// MixedPaths lists mixed tracks in session order.
func (s *Session) MixedPaths() []string {
	paths := make([]string, 0, len(s.Recordings))
	for _, rec := range s.Recordings {
		paths = append(paths, rec.mixed)
	}
	return paths
}

// RecordingSummary is the per-recording part of a Result.
type RecordingSummary struct {
	Index      int           `json:"index"`
	Archive    string        `json:"archive"`
	Dir        string        `json:"dir"`
	Tracks     int           `json:"tracks"`
	Mixed      string        `json:"mixed,omitempty"`
	MixElapsed time.Duration `json:"mix_elapsed"`
}

// Result describes a finished run.
type Result struct {
	RunID      string             `json:"run_id"`
	Session    string             `json:"session"`
	State      string             `json:"state"`
	Output     string             `json:"output,omitempty"`
	Mode       string             `json:"mode,omitempty"`
	Elapsed    time.Duration      `json:"elapsed"`
	Recordings []RecordingSummary `json:"recordings"`
}

func summarize(s *Session) []RecordingSummary {
	if s == nil {
		return nil
	}
	out := make([]RecordingSummary, 0, len(s.Recordings))
	for _, rec := range s.Recordings {
		out = append(out, RecordingSummary{
			Index:      rec.Index,
			Archive:    rec.Archive,
			Dir:        rec.Dir,
			Tracks:     len(rec.Tracks),
			Mixed:      rec.mixed,
			MixElapsed: rec.mixElapsed,
		})
	}
	return out
}

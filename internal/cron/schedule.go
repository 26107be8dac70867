package cron

import (
	"context"
	"time"
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry binds a job to its cadence.
type Entry struct {
	Job   Job
	Every time.Duration
}

// schedule tracks when each entry is next due. Every entry is due on the
// first check so a fresh worker catches up immediately.
type schedule struct {
	entries []Entry
	next    map[string]time.Time
}

func newSchedule(entries []Entry) *schedule {
	s := &schedule{next: make(map[string]time.Time, len(entries))}
	for _, e := range entries {
		if e.Job == nil || e.Every <= 0 {
			continue
		}
		s.entries = append(s.entries, e)
	}
	return s
}

// due returns the entries whose time has come and pushes each one's next
// run out by its cadence.
func (s *schedule) due(now time.Time) []Entry {
	var out []Entry
	for _, e := range s.entries {
		name := e.Job.Name()
		if next, ok := s.next[name]; ok && now.Before(next) {
			continue
		}
		s.next[name] = now.Add(e.Every)
		out = append(out, e)
	}
	return out
}

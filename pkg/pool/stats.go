package pool

import "time"

// Stats is a point-in-time view of a pool's accounting.
type Stats struct {
	Name        string    `json:"name"`
	Capacity    int       `json:"capacity"`
	Idle        int       `json:"idle"`
	Outstanding int64     `json:"outstanding"`
	FailCount   uint64    `json:"fail_count"`
	LastFail    time.Time `json:"last_fail"`
}

// Saturated reports whether the pool has ever fallen back to creating an instance.
func (s Stats) Saturated() bool {
	return s.FailCount > 0
}

// Stats captures the pool's current accounting. Fields are read independently
// and may not form a consistent cut under concurrent use.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Name:        p.name,
		Capacity:    p.capacity,
		Idle:        p.Size(),
		Outstanding: p.Outstanding(),
		FailCount:   p.FailCount(),
		LastFail:    p.LastFail(),
	}
}

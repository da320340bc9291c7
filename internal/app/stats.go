package app

import (
	"sync/atomic"
	"time"
)

// Stats tracks relay counters.
// All counters use atomic operations so handlers never contend on a lock.
type Stats struct {
	startTime time.Time

	ActiveConnections atomic.Int64
	TotalConnections  atomic.Int64
	Registrations     atomic.Int64

	OffersAccepted atomic.Int64
	OffersRejected atomic.Int64 // target busy
	CallsEnded     atomic.Int64

	Forwarded  atomic.Int64 // unicast messages queued to a peer
	Dropped    atomic.Int64 // inbound messages discarded without effect
	SendFailed atomic.Int64 // outbound frames skipped (closed or backpressure)
	Broadcasts atomic.Int64
}

func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

type StatsSnapshot struct {
	Uptime            string `json:"uptime"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	ActiveConnections int64  `json:"active_connections"`
	TotalConnections  int64  `json:"total_connections"`
	RegisteredUsers   int    `json:"registered_users"`
	Registrations     int64  `json:"registrations"`
	OffersAccepted    int64  `json:"offers_accepted"`
	OffersRejected    int64  `json:"offers_rejected"`
	CallsEnded        int64  `json:"calls_ended"`
	Forwarded         int64  `json:"forwarded"`
	Dropped           int64  `json:"dropped"`
	SendFailed        int64  `json:"send_failed"`
	Broadcasts        int64  `json:"broadcasts"`
}

// Snapshot returns a point-in-time view. registered is supplied by the caller
// since the registry, not Stats, owns membership.
func (s *Stats) Snapshot(registered int) StatsSnapshot {
	uptime := time.Since(s.startTime)
	return StatsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		ActiveConnections: s.ActiveConnections.Load(),
		TotalConnections:  s.TotalConnections.Load(),
		RegisteredUsers:   registered,
		Registrations:     s.Registrations.Load(),
		OffersAccepted:    s.OffersAccepted.Load(),
		OffersRejected:    s.OffersRejected.Load(),
		CallsEnded:        s.CallsEnded.Load(),
		Forwarded:         s.Forwarded.Load(),
		Dropped:           s.Dropped.Load(),
		SendFailed:        s.SendFailed.Load(),
		Broadcasts:        s.Broadcasts.Load(),
	}
}

package app

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/videochat/internal/core"
)

// PublishResult reports delivery stats/backpressure for one fan-out.
type PublishResult struct {
	SendTo  int
	Dropped []core.SignalConnection
}

// Broadcaster is the outbound side of the relay: unicast forwarding and
// userlist fan-out. Sends never block; a frame that cannot be queued is skipped.
type Broadcaster struct {
	Registry *Registry
	Policy   Policy
	Stats    *Stats

	// publishMu orders fan-outs so a newer snapshot is never queued
	// ahead of an older one on any connection.
	publishMu sync.Mutex
}

func NewBroadcaster(reg *Registry, policy Policy, stats *Stats) *Broadcaster {
	if policy == nil {
		policy = SkipPolicy{}
	}
	if stats == nil {
		stats = NewStats()
	}
	return &Broadcaster{Registry: reg, Policy: policy, Stats: stats}
}

// Publish pushes the current userlist to every registered connection.
// The snapshot and the queueing happen under one lock; TrySend never blocks.
func (b *Broadcaster) Publish() PublishResult {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	users, conns := b.Registry.SnapshotWithRecipients()
	frame, err := core.Encode(core.NewUserList(users))
	if err != nil {
		log.Error().Err(err).Str("module", "app.presence").Msg("encode userlist")
		return PublishResult{}
	}
	b.Stats.Broadcasts.Add(1)

	res := PublishResult{}
	for _, c := range conns {
		if err := b.deliver(c, frame); err != nil {
			res.Dropped = append(res.Dropped, c)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "app.presence").Int("users", len(users)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("userlist published")
	return res
}

// Send encodes v and queues it on conn.
func (b *Broadcaster) Send(conn core.SignalConnection, v any) error {
	frame, err := core.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.presence").Msg("encode message")
		return err
	}
	return b.deliver(conn, frame)
}

func (b *Broadcaster) deliver(conn core.SignalConnection, frame core.Frame) error {
	err := conn.TrySend(frame)
	if err == nil {
		return nil
	}
	b.Stats.SendFailed.Add(1)
	if errors.Is(err, core.ErrBackpressure) && b.Policy.OnBackPressure(conn) == CloseConn {
		log.Warn().Str("module", "app.presence").Str("conn", string(conn.ID())).Msg("closing slow consumer")
		conn.Close()
	}
	log.Debug().Err(err).Str("module", "app.presence").Str("conn", string(conn.ID())).Msg("send skipped")
	return err
}

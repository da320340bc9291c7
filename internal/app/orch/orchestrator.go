// Package orch routes inbound signaling messages and owns the call-state transitions.
package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/videochat/internal/app"
	"github.com/dkeye/videochat/internal/core"
)

type Orchestrator struct {
	Registry *app.Registry
	Outbox   *app.Broadcaster
	Stats    *app.Stats
}

func New(reg *app.Registry, outbox *app.Broadcaster, stats *app.Stats) *Orchestrator {
	return &Orchestrator{Registry: reg, Outbox: outbox, Stats: stats}
}

// Dispatch applies one inbound message that arrived on conn.
// Every failure mode is silent towards the client.
func (o *Orchestrator) Dispatch(conn core.SignalConnection, msg core.Inbound) {
	switch msg.Type {
	case core.TypeRegister:
		o.Register(conn, msg)
	case core.TypeOffer:
		o.Offer(conn, msg)
	case core.TypeAnswer:
		o.Answer(conn, msg)
	case core.TypeICECandidate:
		o.ICECandidate(conn, msg)
	case core.TypeEndCall:
		o.EndCall(conn, msg)
	case core.TypeChat:
		o.Chat(conn, msg)
	default:
		o.drop(conn, msg, "unknown type")
	}
}

// Connect records a newly accepted connection. Users appear only on register.
func (o *Orchestrator) Connect(conn core.SignalConnection) {
	o.Stats.ActiveConnections.Add(1)
	o.Stats.TotalConnections.Add(1)
	log.Debug().Str("module", "orch").Str("conn", string(conn.ID())).Msg("connected")
}

// Disconnect removes every user owned by conn and republishes presence.
// A call partner of a removed user is not notified and stays busy.
func (o *Orchestrator) Disconnect(conn core.SignalConnection) {
	o.Stats.ActiveConnections.Add(-1)
	removed := o.Registry.RemoveConn(conn)
	if len(removed) == 0 {
		return
	}
	log.Info().Str("module", "orch").Str("conn", string(conn.ID())).Int("users", len(removed)).Msg("disconnected")
	o.Outbox.Publish()
}

func (o *Orchestrator) drop(conn core.SignalConnection, msg core.Inbound, reason string) {
	o.Stats.Dropped.Add(1)
	log.Debug().
		Str("module", "orch").
		Str("conn", string(conn.ID())).
		Str("type", string(msg.Type)).
		Str("to", string(msg.To)).
		Str("reason", reason).
		Msg("message dropped")
}

func (o *Orchestrator) forward(target core.SignalConnection, v any) {
	if err := o.Outbox.Send(target, v); err != nil {
		return
	}
	o.Stats.Forwarded.Add(1)
}

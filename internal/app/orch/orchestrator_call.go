package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/videochat/internal/app"
	"github.com/dkeye/videochat/internal/core"
	"github.com/dkeye/videochat/internal/domain"
)

// Register binds a user to conn. Registering again on the same connection
// adds another entry; the same id from another connection replaces it.
func (o *Orchestrator) Register(conn core.SignalConnection, msg core.Inbound) {
	u := domain.NewUser(msg.UserID.UserID(), msg.Name, msg.Avatar, msg.Flag)
	o.Registry.Register(u, conn)
	o.Stats.Registrations.Add(1)
	o.Outbox.Publish()
}

// Offer is the only call transition that can be rejected: a busy target
// answers the sender with busy and nothing else happens.
func (o *Orchestrator) Offer(conn core.SignalConnection, msg core.Inbound) {
	to := msg.To.UserID()
	from, target, outcome := o.Registry.BeginCall(conn, to)
	switch outcome {
	case app.CallNoSender:
		o.drop(conn, msg, "unregistered sender")
	case app.CallNoTarget:
		o.drop(conn, msg, "unknown target")
	case app.CallTargetBusy:
		o.Stats.OffersRejected.Add(1)
		log.Info().Str("module", "orch").Str("from", string(from.ID)).Str("to", string(to)).Msg("offer rejected, target busy")
		_ = o.Outbox.Send(conn, core.NewBusy(to))
	case app.CallAccepted:
		o.Stats.OffersAccepted.Add(1)
		o.Outbox.Publish()
		o.forward(target, core.NewOffer(from.ID, msg.SDP))
	}
}

// EndCall clears both participants even when the target is gone.
func (o *Orchestrator) EndCall(conn core.SignalConnection, msg core.Inbound) {
	from, target, ok := o.Registry.EndCall(conn, msg.To.UserID())
	if !ok {
		o.drop(conn, msg, "unregistered sender")
		return
	}
	o.Stats.CallsEnded.Add(1)
	if target != nil {
		o.forward(target, core.NewCallEnded(from.ID))
	}
	o.Outbox.Publish()
}

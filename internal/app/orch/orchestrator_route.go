package orch

import (
	"github.com/dkeye/videochat/internal/core"
	"github.com/dkeye/videochat/internal/domain"
)

// Answer, ICECandidate and Chat assume the call already exists:
// they never touch busy state and never trigger a presence update.

func (o *Orchestrator) Answer(conn core.SignalConnection, msg core.Inbound) {
	if from, target, ok := o.route(conn, msg); ok {
		o.forward(target, core.NewAnswer(from.ID, msg.SDP))
	}
}

func (o *Orchestrator) ICECandidate(conn core.SignalConnection, msg core.Inbound) {
	if from, target, ok := o.route(conn, msg); ok {
		o.forward(target, core.NewICECandidate(from.ID, msg.Candidate))
	}
}

func (o *Orchestrator) Chat(conn core.SignalConnection, msg core.Inbound) {
	if from, target, ok := o.route(conn, msg); ok {
		o.forward(target, core.NewChat(from, msg.Message))
	}
}

func (o *Orchestrator) route(conn core.SignalConnection, msg core.Inbound) (domain.User, core.SignalConnection, bool) {
	from, target, registered := o.Registry.Route(conn, msg.To.UserID())
	switch {
	case !registered:
		o.drop(conn, msg, "unregistered sender")
		return domain.User{}, nil, false
	case target == nil:
		o.drop(conn, msg, "unknown target")
		return domain.User{}, nil, false
	}
	return from, target, true
}

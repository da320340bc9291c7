package app

import (
	"fmt"

	"github.com/dkeye/videochat/internal/core"
)

type BackpressureAction int

const (
	// DropFrame skips the frame and keeps the connection.
	DropFrame BackpressureAction = iota
	// CloseConn disconnects the slow consumer; its close event cleans up the registry.
	CloseConn
)

type Policy interface {
	OnBackPressure(conn core.SignalConnection) BackpressureAction
}

type SkipPolicy struct{}

func (SkipPolicy) OnBackPressure(core.SignalConnection) BackpressureAction { return DropFrame }

type ClosePolicy struct{}

func (ClosePolicy) OnBackPressure(core.SignalConnection) BackpressureAction { return CloseConn }

// PolicyFor maps the slow_consumer config value to a Policy.
func PolicyFor(name string) (Policy, error) {
	switch name {
	case "", "skip":
		return SkipPolicy{}, nil
	case "close":
		return ClosePolicy{}, nil
	}
	return nil, fmt.Errorf("unknown slow consumer policy %q", name)
}

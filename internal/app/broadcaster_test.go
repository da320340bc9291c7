package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/videochat/internal/core"
	"github.com/dkeye/videochat/internal/core/coretest"
	"github.com/dkeye/videochat/internal/domain"
)

func TestPublishReachesEveryConnection(t *testing.T) {
	reg := NewRegistry()
	stats := NewStats()
	b := NewBroadcaster(reg, nil, stats)
	ca, cb := coretest.NewConn("ca"), coretest.NewConn("cb")
	reg.Register(domain.NewUser("a", "Ann", "", ""), ca)
	reg.Register(domain.NewUser("b", "Bob", "", ""), cb)
	reg.SetBusy("b", true)

	res := b.Publish()
	assert.Equal(t, 2, res.SendTo)
	assert.Empty(t, res.Dropped)
	assert.EqualValues(t, 1, stats.Broadcasts.Load())

	msg, ok := cb.Last("userlist")
	require.True(t, ok)
	users := msg["users"].([]any)
	require.Len(t, users, 2)
	assert.Equal(t, map[string]any{"id": "a", "name": "Ann", "avatar": "", "flag": "", "busy": false}, users[0])
	assert.Equal(t, true, users[1].(map[string]any)["busy"])
}

func TestPublishSkipsClosedConnection(t *testing.T) {
	reg := NewRegistry()
	b := NewBroadcaster(reg, SkipPolicy{}, nil)
	ca, cb := coretest.NewConn("ca"), coretest.NewConn("cb")
	reg.Register(domain.NewUser("a", "", "", ""), ca)
	reg.Register(domain.NewUser("b", "", "", ""), cb)
	cb.Close()

	res := b.Publish()
	assert.Equal(t, 1, res.SendTo)
	require.Len(t, res.Dropped, 1)
	assert.Same(t, cb, res.Dropped[0])
	assert.Equal(t, 2, reg.Len(), "a skipped send has no state consequence")
}

func TestBackpressurePolicy(t *testing.T) {
	reg := NewRegistry()
	slow := coretest.NewConn("slow")
	reg.Register(domain.NewUser("s", "", "", ""), slow)
	slow.SetFull(true)

	NewBroadcaster(reg, SkipPolicy{}, nil).Publish()
	assert.False(t, slow.Closed())

	err := NewBroadcaster(reg, ClosePolicy{}, nil).Send(slow, core.NewBusy("x"))
	assert.ErrorIs(t, err, core.ErrBackpressure)
	assert.True(t, slow.Closed())
}

func TestPolicyFor(t *testing.T) {
	p, err := PolicyFor("")
	require.NoError(t, err)
	assert.IsType(t, SkipPolicy{}, p)
	p, err = PolicyFor("close")
	require.NoError(t, err)
	assert.IsType(t, ClosePolicy{}, p)
	_, err = PolicyFor("kick")
	assert.Error(t, err)
}

func TestStatsSnapshot(t *testing.T) {
	s := NewStats()
	s.OffersAccepted.Add(2)
	s.Dropped.Add(1)
	snap := s.Snapshot(3)
	assert.EqualValues(t, 2, snap.OffersAccepted)
	assert.EqualValues(t, 1, snap.Dropped)
	assert.Equal(t, 3, snap.RegisteredUsers)
}

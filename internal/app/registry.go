package app

import (
	"cmp"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/videochat/internal/core"
	"github.com/dkeye/videochat/internal/domain"
)

type CallOutcome int

const (
	// CallNoSender means the connection has no registered user.
	CallNoSender CallOutcome = iota
	// CallNoTarget means the addressed user is not registered.
	CallNoTarget
	// CallTargetBusy means the target is already in a call; nothing changed.
	CallTargetBusy
	// CallAccepted means both users are now busy.
	CallAccepted
)

func (o CallOutcome) String() string {
	switch o {
	case CallNoSender:
		return "no_sender"
	case CallNoTarget:
		return "no_target"
	case CallTargetBusy:
		return "target_busy"
	case CallAccepted:
		return "accepted"
	}
	return "unknown"
}

type userEntry struct {
	user domain.User
	conn core.SignalConnection
	// seq is assigned on first insertion of the id and survives replacement,
	// so snapshots keep first-registration order.
	seq uint64
}

// Registry maps user ids to their live connection, presence and busy flag.
// byConn is a secondary index kept in step with users under the same lock.
type Registry struct {
	mu     sync.RWMutex
	users  map[domain.UserID]*userEntry
	byConn map[core.SignalConnection]map[domain.UserID]struct{}
	seq    uint64
}

func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[domain.UserID]*userEntry),
		byConn: make(map[core.SignalConnection]map[domain.UserID]struct{}),
	}
}

// Register inserts or replaces the entry for u.ID and binds it to conn.
// A connection that previously held the id is not closed, only unbound.
func (r *Registry) Register(u domain.User, conn core.SignalConnection) {
	u.Busy = false
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.users[u.ID]; ok {
		r.unindexLocked(u.ID, e.conn)
		e.user = u
		e.conn = conn
	} else {
		r.seq++
		r.users[u.ID] = &userEntry{user: u, conn: conn, seq: r.seq}
	}
	r.indexLocked(u.ID, conn)
	log.Info().Str("module", "app.registry").Str("user", string(u.ID)).Str("conn", string(conn.ID())).Msg("registered user")
}

func (r *Registry) Lookup(id domain.UserID) (domain.User, core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.users[id]
	if !ok {
		return domain.User{}, nil, false
	}
	return e.user, e.conn, true
}

// LookupByConn returns the user registered on conn. When conn registered
// several ids, the earliest registered one wins.
func (r *Registry) LookupByConn(conn core.SignalConnection) (domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.ownerLocked(conn)
	if !ok {
		return domain.User{}, false
	}
	return e.user, true
}

// Remove deletes the entry for id. The connection lifecycle goes through
// RemoveConn; Remove is the by-id half of the registry contract.
func (r *Registry) Remove(id domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

// RemoveConn deletes every entry owned by conn and returns the removed ids
// in registration order.
func (r *Registry) RemoveConn(conn core.SignalConnection) []domain.UserID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.connIDsLocked(conn)
	for _, id := range ids {
		r.removeLocked(id)
	}
	return ids
}

func (r *Registry) SetBusy(id domain.UserID, busy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.users[id]; ok {
		e.user.Busy = busy
	}
}

// Route resolves the sender on conn and the connection of user to.
// registered is false when conn has no user; target is nil when to is unknown.
func (r *Registry) Route(conn core.SignalConnection, to domain.UserID) (from domain.User, target core.SignalConnection, registered bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sender, ok := r.ownerLocked(conn)
	if !ok {
		return domain.User{}, nil, false
	}
	if t, ok := r.users[to]; ok {
		target = t.conn
	}
	return sender.user, target, true
}

// BeginCall is the offer check-and-set: if the target is idle both the
// sender and the target become busy in one critical section.
func (r *Registry) BeginCall(conn core.SignalConnection, to domain.UserID) (from domain.User, target core.SignalConnection, outcome CallOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sender, ok := r.ownerLocked(conn)
	if !ok {
		return domain.User{}, nil, CallNoSender
	}
	t, ok := r.users[to]
	if !ok {
		return sender.user, nil, CallNoTarget
	}
	if t.user.Busy {
		return sender.user, nil, CallTargetBusy
	}
	sender.user.Busy = true
	t.user.Busy = true
	log.Info().Str("module", "app.registry").Str("from", string(sender.user.ID)).Str("to", string(to)).Msg("call started")
	return sender.user, t.conn, CallAccepted
}

// EndCall clears the busy flag of the sender and, if registered, of the target.
// target is nil when the addressed user does not exist.
func (r *Registry) EndCall(conn core.SignalConnection, to domain.UserID) (from domain.User, target core.SignalConnection, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sender, found := r.ownerLocked(conn)
	if !found {
		return domain.User{}, nil, false
	}
	if t, found := r.users[to]; found {
		t.user.Busy = false
		target = t.conn
	}
	sender.user.Busy = false
	log.Info().Str("module", "app.registry").Str("from", string(sender.user.ID)).Str("to", string(to)).Bool("target_found", target != nil).Msg("call ended")
	return sender.user, target, true
}

// Snapshot returns the presence rows in registration order.
func (r *Registry) Snapshot() []domain.Presence {
	users, _ := r.SnapshotWithRecipients()
	return users
}

// Recipients returns every distinct live connection in registration order.
func (r *Registry) Recipients() []core.SignalConnection {
	_, conns := r.SnapshotWithRecipients()
	return conns
}

// SnapshotWithRecipients takes the presence rows and the connections to
// deliver them to from the same point in time.
func (r *Registry) SnapshotWithRecipients() ([]domain.Presence, []core.SignalConnection) {
	r.mu.RLock()
	entries := make([]*userEntry, 0, len(r.users))
	for _, e := range r.users {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b *userEntry) int { return cmp.Compare(a.seq, b.seq) })

	users := make([]domain.Presence, 0, len(entries))
	conns := make([]core.SignalConnection, 0, len(entries))
	seen := make(map[core.SignalConnection]struct{}, len(entries))
	for _, e := range entries {
		users = append(users, e.user.Presence())
		if _, dup := seen[e.conn]; dup {
			continue
		}
		seen[e.conn] = struct{}{}
		conns = append(conns, e.conn)
	}
	r.mu.RUnlock()
	return users, conns
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *Registry) ownerLocked(conn core.SignalConnection) (*userEntry, bool) {
	var owner *userEntry
	for id := range r.byConn[conn] {
		e := r.users[id]
		if owner == nil || e.seq < owner.seq {
			owner = e
		}
	}
	return owner, owner != nil
}

func (r *Registry) connIDsLocked(conn core.SignalConnection) []domain.UserID {
	set := r.byConn[conn]
	ids := make([]domain.UserID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b domain.UserID) int {
		return cmp.Compare(r.users[a].seq, r.users[b].seq)
	})
	return ids
}

func (r *Registry) removeLocked(id domain.UserID) {
	e, ok := r.users[id]
	if !ok {
		return
	}
	r.unindexLocked(id, e.conn)
	delete(r.users, id)
	log.Info().Str("module", "app.registry").Str("user", string(id)).Str("conn", string(e.conn.ID())).Msg("removed user")
}

func (r *Registry) indexLocked(id domain.UserID, conn core.SignalConnection) {
	set, ok := r.byConn[conn]
	if !ok {
		set = make(map[domain.UserID]struct{})
		r.byConn[conn] = set
	}
	set[id] = struct{}{}
}

func (r *Registry) unindexLocked(id domain.UserID, conn core.SignalConnection) {
	set, ok := r.byConn[conn]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.byConn, conn)
	}
}

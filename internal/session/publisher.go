package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"alumni/internal/identity"
	"alumni/internal/platform/metrics"
)

type entry struct {
	state     State
	principal identity.Principal
	expiresAt time.Time
}

// Publisher holds the latest State per session id. Every resolution attempt is tagged
// with a sequence number and results older than the latest attempt are discarded.
type Publisher struct {
	mu       sync.Mutex
	seq      uint64
	entries  map[string]*entry
	recorder metrics.Recorder
	now      func() time.Time
}

// NewPublisher creates an empty publisher.
func NewPublisher(recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Publisher{
		entries:  make(map[string]*entry),
		recorder: recorder,
		now:      time.Now,
	}
}

// Begin marks sid as resolving and returns the attempt's sequence number.
func (p *Publisher) Begin(sid string, principal identity.Principal, expiresAt time.Time) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	e, ok := p.entries[sid]
	if !ok {
		e = &entry{}
		p.entries[sid] = e
	}
	e.principal = principal
	if !expiresAt.IsZero() {
		e.expiresAt = expiresAt
	}
	e.state = State{Status: StatusResolving, Session: e.state.Session, Seq: p.seq, UpdatedAt: p.now()}
	return p.seq
}

// Publish stores session for sid unless a newer attempt exists. It reports whether the result was kept.
func (p *Publisher) Publish(sid string, seq uint64, session Session) bool {
	return p.settle(sid, seq, State{Status: StatusResolved, Session: &session})
}

// Fail records a resolution failure for sid unless a newer attempt exists.
func (p *Publisher) Fail(sid string, seq uint64, err error) bool {
	return p.settle(sid, seq, State{Status: StatusFailed, Err: err})
}

func (p *Publisher) settle(sid string, seq uint64, next State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[sid]
	if !ok || seq < e.state.Seq {
		p.recorder.RecordStaleDrop()
		return false
	}
	next.Seq = seq
	next.UpdatedAt = p.now()
	e.state = next
	return true
}

// SignOut publishes a nil session for sid, superseding any in-flight attempt.
func (p *Publisher) SignOut(sid string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	e, ok := p.entries[sid]
	if !ok {
		e = &entry{}
		p.entries[sid] = e
	}
	e.state = State{Status: StatusResolved, Seq: p.seq, UpdatedAt: p.now()}
}

// SignOutPrincipal signs out every session belonging to principalID.
func (p *Publisher) SignOutPrincipal(principalID uuid.UUID) []string {
	sids := p.SessionsOf(principalID)
	for _, sid := range sids {
		p.SignOut(sid)
	}
	return sids
}

// State returns the published state for sid.
func (p *Publisher) State(sid string) (State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[sid]
	if !ok {
		return State{}, false
	}
	return copyState(e.state), true
}

// Principal returns the principal bound to sid.
func (p *Publisher) Principal(sid string) (identity.Principal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[sid]
	if !ok {
		return identity.Principal{}, false
	}
	return e.principal, true
}

// SessionsOf lists the live (signed-in, resolving or failed) session ids of principalID.
func (p *Publisher) SessionsOf(principalID uuid.UUID) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sids []string
	for sid, e := range p.entries {
		if e.principal.ID != principalID {
			continue
		}
		if e.state.Status == StatusResolved && e.state.Session == nil {
			continue
		}
		sids = append(sids, sid)
	}
	return sids
}

// Patch applies fn to every session of principalID that carries a Session, including ones being
// re-resolved, without re-reading the profile store.
func (p *Publisher) Patch(principalID uuid.UUID, fn func(*Session)) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	patched := 0
	for _, e := range p.entries {
		if e.principal.ID != principalID || e.state.Session == nil {
			continue
		}
		next := *e.state.Session
		fn(&next)
		e.state.Session = &next
		e.state.UpdatedAt = p.now()
		patched++
	}
	return patched
}

// Prune drops entries whose token has expired and sign-out tombstones older than retain.
func (p *Publisher) Prune(retain time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	removed := 0
	for sid, e := range p.entries {
		expired := !e.expiresAt.IsZero() && now.After(e.expiresAt)
		tombstone := e.state.Status == StatusResolved && e.state.Session == nil && now.Sub(e.state.UpdatedAt) > retain
		if expired || tombstone {
			delete(p.entries, sid)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked session ids.
func (p *Publisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func copyState(s State) State {
	if s.Session != nil {
		cp := *s.Session
		s.Session = &cp
	}
	return s
}

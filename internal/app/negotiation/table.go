package negotiation

import (
	"sort"
	"sync"

	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/rs/zerolog/log"
)

type pairKey struct {
	local, remote domain.UserID
}

// Table holds every live link. Operations on it are atomic, so one message
// moves both directions of a pair together.
type Table struct {
	mu    sync.Mutex
	links map[pairKey]*Link
}

func NewTable() *Table {
	return &Table{links: make(map[pairKey]*Link)}
}

// Offer records from offering to to. The returned candidates were sent by from
// before to had the offer and must be delivered to to right after it.
// A finished or closed pair starts over, which is how renegotiation works.
func (t *Table) Offer(from, to domain.UserID) ([]domain.IceCandidate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fl := t.link(from, to)
	tl := t.link(to, from)
	if !restartable(fl.state) {
		return nil, invalid("send offer", fl.state)
	}
	if !restartable(tl.state) {
		return nil, invalid("receive offer", tl.state)
	}
	if fl.state != New {
		fl = t.reset(from, to)
	}
	if tl.state != New {
		tl = t.reset(to, from)
	}
	if err := fl.SendOffer(); err != nil {
		return nil, err
	}
	return tl.ReceiveOffer()
}

// Answer records from answering to's offer. It fails without changing state
// unless to is waiting for exactly this answer. The returned candidates go to
// to after the answer.
func (t *Table) Answer(from, to domain.UserID) ([]domain.IceCandidate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	offerer, ok := t.links[pairKey{to, from}]
	if !ok {
		return nil, invalid("receive answer", New)
	}
	answerer, ok := t.links[pairKey{from, to}]
	if !ok {
		return nil, invalid("send answer", New)
	}
	if offerer.state != HaveLocalOffer {
		return nil, invalid("receive answer", offerer.state)
	}
	if err := answerer.SendAnswer(); err != nil {
		return nil, err
	}
	return offerer.ReceiveAnswer()
}

// Candidate reports whether c, sent by from, can be delivered to to now. A
// false result with nil error means it was queued.
func (t *Table) Candidate(from, to domain.UserID, c domain.IceCandidate) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.link(to, from).AddCandidate(c)
}

// AwaitingAnswer lists the users with an outstanding offer to answerer.
func (t *Table) AwaitingAnswer(answerer domain.UserID) []domain.UserID {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.UserID
	for k, l := range t.links {
		if k.remote == answerer && l.state == HaveLocalOffer {
			out = append(out, k.local)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// State returns the state of local's link to remote. Unknown pairs are New.
func (t *Table) State(local, remote domain.UserID) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if l, ok := t.links[pairKey{local, remote}]; ok {
		return l.state
	}
	return New
}

// Pending is the number of candidates local holds back from remote.
func (t *Table) Pending(local, remote domain.UserID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if l, ok := t.links[pairKey{local, remote}]; ok {
		return l.Pending()
	}
	return 0
}

// CloseUser closes and forgets every link involving user.
func (t *Table) CloseUser(user domain.UserID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	closed, dropped := 0, 0
	for k, l := range t.links {
		if k.local != user && k.remote != user {
			continue
		}
		dropped += l.Close()
		delete(t.links, k)
		closed++
	}
	if closed > 0 {
		log.Debug().Str("module", "app.negotiation").Str("user", string(user)).Int("links", closed).Int("dropped_candidates", dropped).Msg("links closed")
	}
	return closed
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.links)
}

func (t *Table) link(local, remote domain.UserID) *Link {
	k := pairKey{local, remote}
	l, ok := t.links[k]
	if !ok {
		l = NewLink(local, remote)
		t.links[k] = l
	}
	return l
}

func (t *Table) reset(local, remote domain.UserID) *Link {
	l := NewLink(local, remote)
	t.links[pairKey{local, remote}] = l
	return l
}

func restartable(s State) bool {
	return s == New || s == Stable || s == Closed
}

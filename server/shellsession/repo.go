package shellsession

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-account-shell/session"
)

// Shell is one browser's account shell. It is identified by an opaque cookie
// and owns exactly one session controller.
type Shell struct {
	ID         string
	Controller *session.Controller
	CreatedAt  time.Time

	mu       sync.Mutex
	lastSeen time.Time
	pending  []session.Effect
	notices  []session.Effect
}

func NewShell(id string, now time.Time) *Shell {
	return &Shell{ID: id, CreatedAt: now, lastSeen: now}
}

// Touch records activity.
func (s *Shell) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Shell) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// AddOutcome queues effects produced while no request was in flight.
// Notices are kept apart so they survive the redirect that applies them.
func (s *Shell) AddOutcome(o session.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range o.Effects {
		if e.Kind == session.EffectNotify {
			s.notices = append(s.notices, e)
			continue
		}
		s.pending = append(s.pending, e)
	}
}

// TakePending returns and clears the queued redirects and navigations.
func (s *Shell) TakePending() []session.Effect {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pending
	s.pending = nil
	return pending
}

// TakeNotices returns and clears the queued notices.
func (s *Shell) TakeNotices() []session.Effect {
	s.mu.Lock()
	defer s.mu.Unlock()
	notices := s.notices
	s.notices = nil
	return notices
}

type Repo interface {
	Upsert(shell *Shell) error
	Get(shellID string) (*Shell, error)
	Delete(shellID string) error
	// IdleSince lists shells last seen before cutoff
	IdleSince(cutoff time.Time) []*Shell
	All() []*Shell
}

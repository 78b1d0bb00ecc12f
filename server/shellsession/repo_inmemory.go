package shellsession

import (
	"fmt"
	"sync"
	"time"

	shellerrors "github.com/jrsteele09/go-account-shell/internal/errors"
)

var _ Repo = (*InMemoryShellRepo)(nil)

// InMemoryShellRepo is an in-memory implementation of Repo
type InMemoryShellRepo struct {
	mu     sync.RWMutex
	shells map[string]*Shell // shellID -> Shell
}

// NewInMemoryShellRepo creates a new in-memory shell repository
func NewInMemoryShellRepo() *InMemoryShellRepo {
	return &InMemoryShellRepo{
		shells: make(map[string]*Shell),
	}
}

// Upsert creates or replaces a shell
func (r *InMemoryShellRepo) Upsert(shell *Shell) error {
	if shell == nil || shell.ID == "" {
		return fmt.Errorf("shellID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.shells[shell.ID] = shell
	return nil
}

// Get retrieves a shell by ID
func (r *InMemoryShellRepo) Get(shellID string) (*Shell, error) {
	if shellID == "" {
		return nil, fmt.Errorf("shellID is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	shell, ok := r.shells[shellID]
	if !ok {
		return nil, shellerrors.ErrSessionNotFound
	}
	return shell, nil
}

// Delete removes a shell
func (r *InMemoryShellRepo) Delete(shellID string) error {
	if shellID == "" {
		return fmt.Errorf("shellID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.shells, shellID) // Already gone is not an error
	return nil
}

func (r *InMemoryShellRepo) IdleSince(cutoff time.Time) []*Shell {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var idle []*Shell
	for _, shell := range r.shells {
		if shell.LastSeen().Before(cutoff) {
			idle = append(idle, shell)
		}
	}
	return idle
}

func (r *InMemoryShellRepo) All() []*Shell {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Shell, 0, len(r.shells))
	for _, shell := range r.shells {
		all = append(all, shell)
	}
	return all
}

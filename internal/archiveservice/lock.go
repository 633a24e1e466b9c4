package archiveservice

import (
	"fmt"
	"sync"

	"github.com/gofrs/flock"

	"github.com/starford/tankobon/internal/apperr"
)

// writeLock serializes archive rewrites within the process and, through an
// advisory file lock, with other tankobon processes on the same library.
type writeLock struct {
	mu   sync.Mutex
	file *flock.Flock // nil disables cross-process locking
}

func newWriteLock(path string) *writeLock {
	l := &writeLock{}
	if path != "" {
		l.file = flock.New(path)
	}
	return l
}

// acquire takes the lock without waiting. A held lock yields ErrBusy.
func (l *writeLock) acquire() (release func(), err error) {
	if !l.mu.TryLock() {
		return nil, apperr.ErrBusy
	}
	if l.file != nil {
		ok, err := l.file.TryLock()
		if err != nil {
			l.mu.Unlock()
			return nil, fmt.Errorf("archiveservice: acquire lock: %w", err)
		}
		if !ok {
			l.mu.Unlock()
			return nil, apperr.ErrBusy
		}
	}
	return func() {
		if l.file != nil {
			_ = l.file.Unlock()
		}
		l.mu.Unlock()
	}, nil
}

package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/poiesic/docqa/core"
)

const defaultPollInterval = 10 * time.Millisecond

var errWouldBlock = errors.New("would block")

// Locker grants exclusive write access to index paths. Within a process
// a per-path mutex orders writers; across processes an advisory lock on
// "<path>.lock" does.
type Locker struct {
	mu           sync.Mutex
	paths        map[string]*pathLock
	pollInterval time.Duration
}

type pathLock struct {
	sem  chan struct{}
	refs int
}

var sharedLocker = NewLocker()

// SharedLocker returns the process-wide Locker. Components that write
// index files should use it unless a test needs isolation.
func SharedLocker() *Locker {
	return sharedLocker
}

// NewLocker creates a Locker with its own in-process lock table.
func NewLocker() *Locker {
	return &Locker{
		paths:        make(map[string]*pathLock),
		pollInterval: defaultPollInterval,
	}
}

func lockPath(path string) string {
	return path + ".lock"
}

// Lock blocks until the caller holds the write lock for path or ctx is done.
// The returned function releases the lock and must be called exactly once.
func (l *Locker) Lock(ctx context.Context, path string) (func() error, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}

	pl := l.acquireRef(key)
	select {
	case pl.sem <- struct{}{}:
	case <-ctx.Done():
		l.releaseRef(key, pl)
		return nil, ctx.Err()
	}

	f, err := l.lockFile(ctx, path)
	if err != nil {
		<-pl.sem
		l.releaseRef(key, pl)
		return nil, err
	}

	var once sync.Once
	return func() error {
		var unlockErr error
		once.Do(func() {
			unlockErr = unlockFile(f)
			if cerr := f.Close(); unlockErr == nil {
				unlockErr = cerr
			}
			<-pl.sem
			l.releaseRef(key, pl)
		})
		return unlockErr
	}, nil
}

func (l *Locker) acquireRef(key string) *pathLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl, ok := l.paths[key]
	if !ok {
		pl = &pathLock{sem: make(chan struct{}, 1)}
		l.paths[key] = pl
	}
	pl.refs++
	return pl
}

func (l *Locker) releaseRef(key string, pl *pathLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.paths, key)
	}
}

func (l *Locker) lockFile(ctx context.Context, path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexIO, err)
	}
	f, err := os.OpenFile(lockPath(path), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexIO, err)
	}
	for {
		err := tryLockExclusive(f)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, errWouldBlock) {
			f.Close()
			return nil, fmt.Errorf("%w: lock %s: %w", core.ErrIndexIO, path, err)
		}
		timer := time.NewTimer(l.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			f.Close()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

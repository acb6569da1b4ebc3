package tokenoracle

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"
)

// A scoped lock file closes the race between two configuration runs doing
// the read-decide-fetch-write sequence at the same time on one node. Locks
// left behind by a crashed run are taken over once they look stale.

const (
	lockRetryInterval = 50 * time.Millisecond
	lockStaleAfter    = 30 * time.Second
)

type fileLock struct {
	path string
}

// acquireLock takes the lock at path, waiting until it is free, stale, or
// the context expires. If the lock file cannot be created for any reason
// other than contention, locking degrades to unlocked operation with a log
// line rather than failing the token decision.
func acquireLock(ctx context.Context, path string) (*fileLock, error) {
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return &fileLock{path: path}, nil
		}
		if !os.IsExist(err) {
			log.Printf("tokenoracle: cannot create lock %s, proceeding unlocked: %v", path, err)
			return nil, nil
		}

		// Lock is held. Steal it if the holder looks dead. Takeover goes
		// through a rename so at most one waiter wins the stale file; the
		// losers see ENOENT and fall back to the create loop. Best effort:
		// a holder refreshing between the stat and the rename can still
		// lose its lock.
		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			stale := fmt.Sprintf("%s.stale.%d", path, os.Getpid())
			if os.Rename(path, stale) == nil {
				os.Remove(stale)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for lock %s: %w", path, ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}
}

// release removes the lock file. Safe to call on a nil lock.
func (l *fileLock) release() {
	if l == nil {
		return
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		log.Printf("tokenoracle: failed to release lock %s: %v", l.path, err)
	}
}

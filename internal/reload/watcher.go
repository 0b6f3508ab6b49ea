// Package reload notices when the configuration file changes on disk.
package reload

import (
	"context"
	"crypto/sha256"
	"os"
	"time"
)

const defaultPollInterval = 5 * time.Second

// Watcher polls a file and reports when its content changes. Rewriting
// the file with identical bytes is not a change.
type Watcher struct {
	path     string
	interval time.Duration
	changes  chan string
}

// NewWatcher watches path every interval (5s when zero).
func NewWatcher(path string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Watcher{
		path:     path,
		interval: interval,
		changes:  make(chan string, 1),
	}
}

// Changes delivers the watched path after each change. Changes that
// happen while one is pending are coalesced.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Run polls until ctx is done. A file that is missing or unreadable is
// skipped until it reappears.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last, _ := w.digest()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur, ok := w.digest()
			if !ok || cur == last {
				continue
			}
			last = cur
			select {
			case w.changes <- w.path:
			default:
			}
		}
	}
}

func (w *Watcher) digest() ([sha256.Size]byte, bool) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return [sha256.Size]byte{}, false
	}
	return sha256.Sum256(data), true
}

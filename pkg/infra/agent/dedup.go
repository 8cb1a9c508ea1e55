package agent

import (
	"sync"
	"time"
)

// dedupStore remembers dispatched dedup keys for a TTL so a webhook
// redelivery does not trigger a second agent run. State is in-memory
// only; a restart forgets old keys, which at worst re-runs a task.
type dedupStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func newDedupStore(ttl time.Duration) *dedupStore {
	return &dedupStore{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// markIfNew records the key and returns true if it was not already
// present within TTL. Expired entries are pruned on the way in.
func (d *dedupStore) markIfNew(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, at := range d.seen {
		if now.Sub(at) > d.ttl {
			delete(d.seen, k)
		}
	}

	if at, ok := d.seen[key]; ok && now.Sub(at) <= d.ttl {
		return false
	}
	d.seen[key] = now
	return true
}

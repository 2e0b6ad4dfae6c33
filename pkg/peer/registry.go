package peer

import (
	"sort"
	"sync"
	"time"
)

type Upserter interface {
	Upsert(p Info)
}

type SnapshotReader interface {
	Snapshot() Peers
}

type entry struct {
	info Info
	seen time.Time
}

// Registry holds the last announcement of every known peer.
// A zero ttl keeps peers until the process exits.
type Registry struct {
	lock  sync.Mutex
	peers map[Key]entry
	ttl   time.Duration
	now   func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		peers: make(map[Key]entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Upsert inserts p or replaces the known entry for its key.
// Files are replaced wholesale, never merged.
func (r *Registry) Upsert(p Info) {
	c := p.clone()
	r.lock.Lock()
	defer r.lock.Unlock()
	now := r.now()
	r.prune(now)
	r.peers[c.Key()] = entry{info: c, seen: now}
}

// Snapshot returns copies of all live entries ordered by address and port.
func (r *Registry) Snapshot() Peers {
	r.lock.Lock()
	now := r.now()
	peers := make(Peers, 0, len(r.peers))
	for _, e := range r.peers {
		if r.expired(e, now) {
			continue
		}
		peers = append(peers, e.info.clone())
	}
	r.lock.Unlock()

	sort.Slice(peers, func(i, j int) bool {
		if peers[i].Address != peers[j].Address {
			return peers[i].Address < peers[j].Address
		}
		return peers[i].Port < peers[j].Port
	})
	return peers
}

// Find resolves filename to the first peer sharing it.
func (r *Registry) Find(filename string) (Info, int64, bool) {
	return r.Snapshot().FindFile(filename)
}

func (r *Registry) Len() int {
	return len(r.Snapshot())
}

func (r *Registry) expired(e entry, now time.Time) bool {
	return r.ttl > 0 && now.Sub(e.seen) > r.ttl
}

func (r *Registry) prune(now time.Time) {
	if r.ttl <= 0 {
		return
	}
	for key, e := range r.peers {
		if r.expired(e, now) {
			delete(r.peers, key)
		}
	}
}

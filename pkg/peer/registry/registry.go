// Package registry is the in-process peer table of the host: an insertion-ordered
// list of peers guarded by a reader/writer lock, plus the global message queues.
// It implements peer.Registry for the exporter.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Borislavv/fd-metrics/pkg/peer"
	"github.com/Borislavv/fd-metrics/pkg/queue"
	"github.com/rs/zerolog/log"
)

const defaultLockPollInterval = time.Millisecond

// Limits configures queue ceilings, zero means unlimited.
type Limits struct {
	LocalDelivery int `yaml:"local_delivery"`
	TotalReceived int `yaml:"total_received"`
	TotalSending  int `yaml:"total_sending"`
	PeerEvents    int `yaml:"peer_events"`
	PeerSending   int `yaml:"peer_sending"`
}

type Registry struct {
	mu     sync.RWMutex
	peers  []*Node
	byID   map[string]*Node
	limits Limits

	local    *queue.Queue
	received *queue.Queue
	sending  *queue.Queue

	pollInterval time.Duration
}

func New(limits Limits) *Registry {
	return &Registry{
		byID:         make(map[string]*Node),
		limits:       limits,
		local:        queue.New(limits.LocalDelivery),
		received:     queue.New(limits.TotalReceived),
		sending:      queue.New(limits.TotalSending),
		pollInterval: defaultLockPollInterval,
	}
}

// RLock acquires the read side of the peer list lock, giving up when ctx is done.
func (r *Registry) RLock(ctx context.Context) error {
	if r.mu.TryRLock() {
		return nil
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", peer.ErrLockTimeout, ctx.Err())
		case <-ticker.C:
			if r.mu.TryRLock() {
				return nil
			}
		}
	}
}

func (r *Registry) RUnlock() {
	r.mu.RUnlock()
}

// Range walks the peers front to back. The caller must hold the read lock.
func (r *Registry) Range(fn func(p peer.Peer) bool) {
	for _, n := range r.peers {
		if !fn(n) {
			return
		}
	}
}

func (r *Registry) Stat(q peer.Queue, p peer.Peer) (peer.QueueStat, error) {
	if !q.IsPerPeer() {
		if gq := r.Queue(q); gq != nil {
			return gq.Stat(), nil
		}
		return peer.QueueStat{}, fmt.Errorf("%w: %d", peer.ErrUnknownQueue, q)
	}

	n, ok := p.(*Node)
	if !ok || n == nil {
		return peer.QueueStat{}, fmt.Errorf("%w: %s for foreign peer", peer.ErrNoStat, q)
	}
	return n.Queue(q).Stat(), nil
}

// Queue returns a global queue, or nil for per-peer families.
func (r *Registry) Queue(q peer.Queue) *queue.Queue {
	switch q {
	case peer.LocalDelivery:
		return r.local
	case peer.TotalReceived:
		return r.received
	case peer.TotalSending:
		return r.sending
	default:
		return nil
	}
}

// Add appends a peer in state new. An empty identity is accepted and never indexed.
func (r *Registry) Add(identity string, apps ...peer.Application) (*Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if identity != "" {
		if _, exists := r.byID[identity]; exists {
			return nil, fmt.Errorf("%w: %s", peer.ErrDuplicate, identity)
		}
	}

	n := newNode(identity, apps, r.limits)
	r.peers = append(r.peers, n)
	if identity != "" {
		r.byID[identity] = n
	}

	log.Debug().Msgf("[registry] peer %q added (total=%d)", identity, len(r.peers))
	return n, nil
}

func (r *Registry) Remove(identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[identity]
	if !ok {
		return fmt.Errorf("%w: %s", peer.ErrNotFound, identity)
	}
	delete(r.byID, identity)

	for i, candidate := range r.peers {
		if candidate == n {
			r.peers = append(r.peers[:i:i], r.peers[i+1:]...)
			break
		}
	}

	log.Debug().Msgf("[registry] peer %q removed (total=%d)", identity, len(r.peers))
	return nil
}

func (r *Registry) SetState(identity string, s peer.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[identity]
	if !ok {
		return fmt.Errorf("%w: %s", peer.ErrNotFound, identity)
	}
	n.state.Store(int32(s))
	return nil
}

func (r *Registry) SetApplications(identity string, apps ...peer.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[identity]
	if !ok {
		return fmt.Errorf("%w: %s", peer.ErrNotFound, identity)
	}
	n.apps = append([]peer.Application(nil), apps...)
	return nil
}

func (r *Registry) Lookup(identity string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.byID[identity]
	return n, ok
}

// Identities returns the indexed identities in list order.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.peers))
	for _, n := range r.peers {
		if n.identity != "" {
			ids = append(ids, n.identity)
		}
	}
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Exclusive runs fn under the write lock, as the host state machine does for compound updates.
func (r *Registry) Exclusive(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

package registry

import (
	"sync/atomic"

	"github.com/Borislavv/fd-metrics/pkg/peer"
	"github.com/Borislavv/fd-metrics/pkg/queue"
)

// Node is one peer of the registry.
type Node struct {
	identity string
	state    atomic.Int32
	apps     []peer.Application // replaced under the registry write lock
	events   *queue.Queue
	sending  *queue.Queue
}

func newNode(identity string, apps []peer.Application, limits Limits) *Node {
	return &Node{
		identity: identity,
		apps:     append([]peer.Application(nil), apps...),
		events:   queue.New(limits.PeerEvents),
		sending:  queue.New(limits.PeerSending),
	}
}

func (n *Node) Identity() string { return n.identity }

func (n *Node) State() peer.State { return peer.State(n.state.Load()) }

// Applications is only stable while the registry read lock is held.
func (n *Node) Applications() []peer.Application { return n.apps }

// Queue returns the per-peer queue of family q, or nil for global families.
func (n *Node) Queue(q peer.Queue) *queue.Queue {
	switch q {
	case peer.PeerEvents:
		return n.events
	case peer.PeerSending:
		return n.sending
	default:
		return nil
	}
}

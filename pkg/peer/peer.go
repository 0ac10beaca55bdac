package peer

import "context"

// UnknownIdentity is the label value used for peers without a Diameter identity.
const UnknownIdentity = "unknown"

// NoLimit is the QueueStat.Limit value of a queue without a configured ceiling.
const NoLimit int64 = 0

// Application is one supported-application marker advertised by a peer.
type Application struct {
	ID   uint32 `yaml:"id"`
	Auth bool   `yaml:"auth"`
	Acct bool   `yaml:"acct"`
}

// Peer is a read-only view of one entry of the host's peer list.
// Implementations must be safe to read while the registry read lock is held.
type Peer interface {
	Identity() string
	State() State
	Applications() []Application
}

// Queue identifies a queue statistics family.
type Queue uint8

const (
	LocalDelivery Queue = iota
	TotalReceived
	TotalSending
	// PeerEvents is the per-peer inbound event queue, its Total counts received messages.
	PeerEvents
	// PeerSending is the per-peer outbound queue, its Total counts sent messages.
	PeerSending
)

// GlobalQueues lists the process-wide queue families in exposition order.
var GlobalQueues = [...]Queue{LocalDelivery, TotalReceived, TotalSending}

func (q Queue) String() string {
	switch q {
	case LocalDelivery:
		return "local_delivery"
	case TotalReceived:
		return "total_received"
	case TotalSending:
		return "total_sending"
	case PeerEvents:
		return "psm"
	case PeerSending:
		return "tosend"
	default:
		return "unknown"
	}
}

// IsPerPeer reports whether the family is scoped to a single peer.
func (q Queue) IsPerPeer() bool {
	return q == PeerEvents || q == PeerSending
}

// QueueStat is a point-in-time reading of a queue.
// Current never exceeds Highest and Total never decreases.
type QueueStat struct {
	Current int64
	Limit   int64
	Highest int64
	Total   int64
}

// Registry is the boundary between the exporter and the host's peer table.
//
// Range must only be called between a successful RLock and the matching RUnlock.
// Stat for a per-peer family expects a Peer obtained from Range; global families
// ignore the peer argument and do not require the lock.
type Registry interface {
	RLock(ctx context.Context) error
	RUnlock()
	Range(fn func(p Peer) bool)
	Stat(q Queue, p Peer) (QueueStat, error)
}

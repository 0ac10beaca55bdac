package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/Borislavv/fd-metrics/pkg/codec"
	"github.com/Borislavv/fd-metrics/pkg/peer"
	"github.com/Borislavv/fd-metrics/pkg/prometheus/metrics/keyword"
	"github.com/rs/zerolog/log"
)

// DefaultLockTimeout bounds the wait for the peer list read lock.
const DefaultLockTimeout = time.Second

const lockErrorComment = "Error: could not lock peer list"

// Collector walks a peer.Registry and turns what it sees into a Snapshot.
//
// A collection takes the registry read lock twice: once for the peer pass and once
// for the per-peer queue pass. A peer added or removed between the two passes can
// show up in one section and not in the other. When the first lock fails the
// second pass is not attempted.
type Collector struct {
	lockTimeout time.Duration
	meter       Meter
}

func NewCollector(lockTimeout time.Duration, meter Meter) *Collector {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	if meter == nil {
		meter = NopMeter{}
	}
	return &Collector{lockTimeout: lockTimeout, meter: meter}
}

func (c *Collector) Collect(ctx context.Context, reg peer.Registry) *Snapshot {
	s := newSnapshot()

	if err := c.locked(ctx, reg, func() { c.collectPeers(reg, s) }); err != nil {
		log.Warn().Err(err).Msg("[metrics] peer sections skipped: could not lock peer list")
		c.meter.IncScrapeError("peer_lock")
		s.state.fail(lockErrorComment)
		c.collectGlobalQueues(reg, s)
		return s
	}

	c.collectGlobalQueues(reg, s)

	if err := c.locked(ctx, reg, func() { c.collectPeerQueues(reg, s) }); err != nil {
		log.Warn().Err(err).Msg("[metrics] peer queue section skipped: could not lock peer list")
		c.meter.IncScrapeError("peer_queue_lock")
		s.psm.fail(lockErrorComment)
	}

	return s
}

// locked runs fn under the registry read lock and releases it on every exit path.
func (c *Collector) locked(ctx context.Context, reg peer.Registry, fn func()) error {
	lockCtx, cancel := context.WithTimeout(ctx, c.lockTimeout)
	defer cancel()

	if err := reg.RLock(lockCtx); err != nil {
		return err
	}
	defer reg.RUnlock()

	fn()
	return nil
}

func (c *Collector) collectPeers(reg peer.Registry, s *Snapshot) {
	reg.Range(func(p peer.Peer) bool {
		id := identity(p)
		byPeer := Label{Name: keyword.LabelPeer, Value: id}

		s.state.add(int64(codec.EncodeState(p.State())), byPeer)

		if st, ok := c.stat(reg, peer.PeerEvents, p, s.received.Name, id); ok {
			s.received.add(st.Total, byPeer)
		}
		if st, ok := c.stat(reg, peer.PeerSending, p, s.sent.Name, id); ok {
			s.sent.add(st.Total, byPeer)
		}

		for _, app := range p.Applications() {
			support := codec.EncodeAppSupport(app.Auth, app.Acct)
			if support == 0 {
				continue
			}
			s.apps.add(int64(support), byPeer, Label{
				Name:  keyword.LabelAppID,
				Value: strconv.FormatUint(uint64(app.ID), 10),
			})
		}
		return true
	})
}

func (c *Collector) collectGlobalQueues(reg peer.Registry, s *Snapshot) {
	for _, q := range peer.GlobalQueues {
		name := q.String()
		if st, ok := c.stat(reg, q, nil, keyword.QueuePrefix+"*", name); ok {
			s.queues.add(st, Label{Name: keyword.LabelQueue, Value: name})
		}
	}
}

func (c *Collector) collectPeerQueues(reg peer.Registry, s *Snapshot) {
	reg.Range(func(p peer.Peer) bool {
		id := identity(p)
		byPeer := Label{Name: keyword.LabelPeer, Value: id}

		if st, ok := c.stat(reg, peer.PeerEvents, p, keyword.PeerPSMQueuePrefix+"*", id); ok {
			s.psm.add(st, byPeer)
		}
		if st, ok := c.stat(reg, peer.PeerSending, p, keyword.PeerToSendQueuePrefix+"*", id); ok {
			s.tosend.add(st, byPeer)
		}
		return true
	})
}

// stat reads one statistic, a failure drops only the series it would have produced.
func (c *Collector) stat(reg peer.Registry, q peer.Queue, p peer.Peer, family, subject string) (peer.QueueStat, bool) {
	st, err := reg.Stat(q, p)
	if err != nil {
		log.Warn().Err(err).Msgf("[metrics] %s{%s} skipped: %s statistics unavailable", family, subject, q)
		c.meter.IncScrapeError("stat")
		return peer.QueueStat{}, false
	}
	return st, true
}

func identity(p peer.Peer) string {
	if id := p.Identity(); id != "" {
		return id
	}
	return peer.UnknownIdentity
}

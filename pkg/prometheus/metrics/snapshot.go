package metrics

import (
	"github.com/Borislavv/fd-metrics/pkg/codec"
	"github.com/Borislavv/fd-metrics/pkg/peer"
	"github.com/Borislavv/fd-metrics/pkg/prometheus/metrics/keyword"
)

type Type string

const (
	Gauge   Type = "gauge"
	Counter Type = "counter"
)

type Label struct {
	Name  string
	Value string
}

// Series is one labelled sample of a family.
type Series struct {
	Labels []Label
	Value  int64
}

// Family is a metric name with its description, type and samples.
// Errors are rendered as comment lines right after the family header.
type Family struct {
	Name   string
	Help   string
	Type   Type
	Errors []string
	Series []Series
}

func (f *Family) add(value int64, labels ...Label) {
	f.Series = append(f.Series, Series{Labels: labels, Value: value})
}

func (f *Family) fail(msg string) {
	f.Errors = append(f.Errors, msg)
}

// queueShape is the current/limit/highest/total quadruple of one queue family.
type queueShape [4]*Family

func newQueueShape(prefix, subject string) queueShape {
	return queueShape{
		{Name: prefix + keyword.Current, Type: Gauge, Help: "Current number of items in the " + subject + "."},
		{Name: prefix + keyword.Limit, Type: Gauge, Help: "Configured limit of the " + subject + " (0 means no limit)."},
		{Name: prefix + keyword.Highest, Type: Gauge, Help: "Highest number of items ever observed in the " + subject + "."},
		{Name: prefix + keyword.Total, Type: Counter, Help: "Total number of items processed through the " + subject + "."},
	}
}

func (s queueShape) add(st peer.QueueStat, labels ...Label) {
	s[0].add(st.Current, labels...)
	s[1].add(st.Limit, labels...)
	s[2].add(st.Highest, labels...)
	s[3].add(st.Total, labels...)
}

func (s queueShape) fail(msg string) {
	s[0].fail(msg)
}

// Snapshot is the result of one collection, families are kept in exposition order.
type Snapshot struct {
	state    *Family
	received *Family
	sent     *Family
	apps     *Family
	queues   queueShape
	psm      queueShape
	tosend   queueShape
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		state: &Family{Name: keyword.PeerState, Type: Gauge, Help: codec.StateHelp()},
		received: &Family{
			Name: keyword.PeerMessagesReceived, Type: Counter,
			Help: "Total number of messages received from the peer.",
		},
		sent: &Family{
			Name: keyword.PeerMessagesSent, Type: Counter,
			Help: "Total number of messages sent to the peer.",
		},
		apps: &Family{
			Name: keyword.PeerApplicationSupport, Type: Gauge,
			Help: "Applications supported by the peer: 1=Auth, 2=Acct, 3=Both.",
		},
		queues: newQueueShape(keyword.QueuePrefix, "global queue"),
		psm:    newQueueShape(keyword.PeerPSMQueuePrefix, "peer state machine event queue"),
		tosend: newQueueShape(keyword.PeerToSendQueuePrefix, "peer outgoing message queue"),
	}
}

// Families returns every family in the fixed exposition order:
// peer families first, then global queue shapes, then per-peer queue shapes.
func (s *Snapshot) Families() []*Family {
	families := make([]*Family, 0, 16)
	families = append(families, s.state, s.received, s.sent, s.apps)
	families = append(families, s.queues[:]...)
	families = append(families, s.psm[:]...)
	families = append(families, s.tosend[:]...)
	return families
}

// Family returns a family by name.
func (s *Snapshot) Family(name string) (*Family, bool) {
	for _, f := range s.Families() {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

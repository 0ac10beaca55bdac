package mock

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Borislavv/fd-metrics/pkg/peer"
	"github.com/Borislavv/fd-metrics/pkg/peer/registry"
	"github.com/Borislavv/fd-metrics/pkg/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const reportInterval = 30 * time.Second

// Simulator plays the host's state machine against a registry: state changes,
// message traffic through the queues and peer churn.
type Simulator struct {
	prefix  string
	reg     *registry.Registry
	limiter *rate.Limiter
	rnd     *rand.Rand
	seq     atomic.Uint64
	steps   atomic.Int64
}

// NewSimulator paces mutations at opsPerSec; a non-positive rate means unlimited.
func NewSimulator(reg *registry.Registry, opsPerSec float64, seed uint64) *Simulator {
	limit := rate.Inf
	if opsPerSec > 0 {
		limit = rate.Limit(opsPerSec)
	}
	return &Simulator{
		prefix:  "sim" + strconv.FormatUint(seed, 10) + "-",
		reg:     reg,
		limiter: rate.NewLimiter(limit, 1),
		rnd:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Run mutates the registry until ctx is done.
func (s *Simulator) Run(ctx context.Context) {
	report := utils.NewTicker(ctx, reportInterval)

	log.Info().Msgf("[mock] simulator started (rate=%v/s)", s.limiter.Limit())
	defer log.Info().Msgf("[mock] simulator stopped after %d mutations", s.steps.Load())

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-report:
			log.Debug().Msgf("[mock] %d mutations applied, %d peers", s.steps.Load(), s.reg.Len())
		default:
		}
		s.Step()
	}
}

// Step applies one random mutation. It must not be called concurrently on the same Simulator.
func (s *Simulator) Step() {
	defer s.steps.Add(1)

	ids := s.reg.Identities()
	if len(ids) == 0 {
		s.addPeer()
		return
	}
	id := ids[s.rnd.IntN(len(ids))]

	var err error
	switch op := s.rnd.IntN(10); {
	case op < 3:
		err = s.reg.SetState(id, peer.State(s.rnd.IntN(int(peer.StateZombie)+1)))
	case op < 6:
		s.receive(id)
	case op < 8:
		s.send(id)
	case op < 9:
		err = s.reg.SetApplications(id, s.randomApps()...)
	default:
		err = s.reg.Remove(id)
		s.addPeer()
	}

	if err != nil && !errors.Is(err, peer.ErrNotFound) {
		log.Warn().Err(err).Msgf("[mock] mutation of %s failed", id)
	}
}

func (s *Simulator) Steps() int64 { return s.steps.Load() }

func (s *Simulator) addPeer() {
	id := s.prefix + strconv.FormatUint(s.seq.Add(1), 10) + ".example.com"
	if _, err := s.reg.Add(id, s.randomApps()...); err != nil {
		log.Warn().Err(err).Msgf("[mock] adding %s failed", id)
	}
}

// receive pushes an inbound message through the peer's event queue and the global
// received queue, delivering some of them locally.
func (s *Simulator) receive(id string) {
	n, ok := s.reg.Lookup(id)
	if !ok {
		return
	}
	msg := s.seq.Add(1)

	events, received, local := n.Queue(peer.PeerEvents), s.reg.Queue(peer.TotalReceived), s.reg.Queue(peer.LocalDelivery)
	if events.Post(msg) != nil || received.Post(msg) != nil {
		return
	}
	if s.rnd.IntN(3) > 0 {
		events.Take()
		received.Take()
		if local.Post(msg) == nil && s.rnd.IntN(2) == 0 {
			local.Take()
		}
	}
}

func (s *Simulator) send(id string) {
	n, ok := s.reg.Lookup(id)
	if !ok {
		return
	}
	msg := s.seq.Add(1)

	tosend, sending := n.Queue(peer.PeerSending), s.reg.Queue(peer.TotalSending)
	if tosend.Post(msg) != nil || sending.Post(msg) != nil {
		return
	}
	if s.rnd.IntN(3) > 0 {
		tosend.Take()
		sending.Take()
	}
}

func (s *Simulator) randomApps() []peer.Application {
	apps := make([]peer.Application, 0, 2)
	for i := s.rnd.IntN(3); i > 0; i-- {
		apps = append(apps, peer.Application{
			ID:   applications[s.rnd.IntN(len(applications))],
			Auth: s.rnd.IntN(2) == 0,
			Acct: s.rnd.IntN(2) == 0,
		})
	}
	return apps
}

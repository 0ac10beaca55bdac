package liveness

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Service is anything which is able to report its own health.
type Service interface {
	IsAlive(ctx context.Context) bool
}

type Prober interface {
	Watch(services ...Service)
	IsAlive() bool
	Close()
}

// Probe polls the watched services once per timeout, each check bounded by the same timeout.
// The probe is alive while every service reported alive on the last round.
type Probe struct {
	timeout time.Duration
	alive   atomic.Bool

	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc
}

func NewProbe(timeout time.Duration) *Probe {
	ctx, cancel := context.WithCancel(context.Background())
	return &Probe{timeout: timeout, ctx: ctx, cancel: cancel}
}

func (p *Probe) Watch(services ...Service) {
	p.check(services)
	go func() {
		t := time.NewTicker(p.timeout)
		defer t.Stop()
		for {
			select {
			case <-p.ctx.Done():
				return
			case <-t.C:
				p.check(services)
			}
		}
	}()
}

func (p *Probe) check(services []Service) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	alive := true
	for _, svc := range services {
		if !svc.IsAlive(ctx) {
			alive = false
			break
		}
	}
	if p.alive.Swap(alive) != alive {
		log.Info().Msgf("[liveness] probe switched to alive=%t", alive)
	}
}

func (p *Probe) IsAlive() bool {
	return p.alive.Load()
}

func (p *Probe) Close() {
	p.once.Do(p.cancel)
}

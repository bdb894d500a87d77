package checkin

import (
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/robfig/cron/v3"
)

// Sweeper periodically evicts idle sessions
type Sweeper struct {
	cron     *cron.Cron
	registry *Registry
	idle     time.Duration
}

// NewSweeper schedules a sweep of registry on spec (cron with seconds)
func NewSweeper(registry *Registry, spec string, idle time.Duration) (*Sweeper, error) {
	s := &Sweeper{
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		registry: registry,
		idle:     idle,
	}
	if _, err := s.cron.AddFunc(spec, s.Run); err != nil {
		return nil, err
	}
	return s, nil
}

// Run evicts the sessions idle for longer than the session TTL
func (s *Sweeper) Run() {
	evicted := s.registry.Sweep(s.idle)
	if len(evicted) > 0 {
		log.Info("[Checkin:Sweep] Evicted %d idle sessions, %d live", len(evicted), s.registry.Len())
	}
}

// Start starts the scheduler
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running sweep
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

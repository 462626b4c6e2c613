package transport

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// PublisherConfig sizes the background push pool.
type PublisherConfig struct {
	Workers        int
	Buffer         int
	PushTimeout    time.Duration
	HandoffTimeout time.Duration
}

// DefaultPublisherConfig is used for zero-valued fields.
var DefaultPublisherConfig = PublisherConfig{
	Workers:        4,
	Buffer:         256,
	PushTimeout:    10 * time.Second,
	HandoffTimeout: 15 * time.Millisecond,
}

type pushJob struct {
	event Event
	data  []byte
}

// Publisher pushes events to a single target on a best-effort basis. Push
// failures are logged and counted and never returned to the caller.
type Publisher struct {
	transport Transport
	target    Target
	log       *log.Logger
	cfg       PublisherConfig
	outcomes  *prometheus.CounterVec

	jobs   chan pushJob
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// PublisherOption customises a Publisher.
type PublisherOption func(*Publisher)

// WithPublisherConfig overrides the pool sizing.
func WithPublisherConfig(cfg PublisherConfig) PublisherOption {
	return func(p *Publisher) { p.cfg = cfg }
}

// WithRegisterer registers the push outcome counter on reg.
func WithRegisterer(reg prometheus.Registerer) PublisherOption {
	return func(p *Publisher) {
		if err := reg.Register(p.outcomes); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				p.outcomes = are.ExistingCollector.(*prometheus.CounterVec)
			}
		}
	}
}

// NewPublisher starts the worker pool. Callers must Close it on shutdown.
func NewPublisher(t Transport, target Target, logger *log.Logger, opts ...PublisherOption) *Publisher {
	if logger == nil {
		panic("transport.NewPublisher: logger is nil")
	}
	p := &Publisher{
		transport: t,
		target:    target,
		log:       logger,
		cfg:       DefaultPublisherConfig,
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blinders",
			Subsystem: "transport",
			Name:      "push_total",
			Help:      "Side-channel pushes by target and outcome.",
		}, []string{"target", "outcome"}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cfg = withDefaults(p.cfg)

	p.jobs = make(chan pushJob, p.cfg.Buffer)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.log.Debugf("publisher started, target: %s, workers: %d, buffer: %d", target, p.cfg.Workers, p.cfg.Buffer)
	return p
}

func withDefaults(cfg PublisherConfig) PublisherConfig {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultPublisherConfig.Workers
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = DefaultPublisherConfig.PushTimeout
	}
	if cfg.HandoffTimeout < 0 {
		cfg.HandoffTimeout = 0
	}
	return cfg
}

// Publish hands ev to the pool. When the pool is saturated or closed the push
// runs inline, still without surfacing its outcome.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	data, err := sonic.Marshal(ev)
	if err != nil {
		p.fail(ev, err)
		return
	}
	job := pushJob{event: ev, data: data}
	if p.handoff(job) {
		return
	}
	p.log.WithField("event_id", ev.ID).Debug("publisher saturated, pushing inline")
	p.push(context.WithoutCancel(ctx), job)
}

// Close stops accepting work and waits for queued pushes to finish. Events
// published afterwards are pushed inline.
func (p *Publisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Publisher) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.push(context.Background(), job)
	}
}

func (p *Publisher) push(ctx context.Context, job pushJob) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PushTimeout)
	defer cancel()
	if err := p.transport.Push(ctx, p.target, job.data); err != nil {
		p.fail(job.event, err)
		return
	}
	p.outcomes.WithLabelValues(string(p.target), "ok").Inc()
}

func (p *Publisher) fail(ev Event, err error) {
	p.outcomes.WithLabelValues(string(p.target), "failed").Inc()
	p.log.WithFields(log.Fields{
		"target":     p.target,
		"event_id":   ev.ID,
		"event_type": ev.Type,
	}).WithError(err).Error("side-channel push failed")
}

// handoff queues job for a worker, waiting at most HandoffTimeout for a free
// slot. The read lock keeps Close from closing jobs under a pending send.
func (p *Publisher) handoff(job pushJob) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.jobs <- job:
		return true
	default:
	}
	if p.cfg.HandoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(p.cfg.HandoffTimeout)
	defer timer.Stop()
	select {
	case p.jobs <- job:
		return true
	case <-timer.C:
		return false
	}
}

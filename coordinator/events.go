package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/turnflow/circuitbreaker"
	"github.com/BaSui01/turnflow/internal/metrics"
	"github.com/BaSui01/turnflow/types"
)

// Listener receives turn events. Events from one conversation arrive in
// ledger application order; a slow or failing listener is isolated behind
// its own circuit breaker and never blocks ledger progress.
type Listener interface {
	Name() string
	OnTurnEvent(ctx context.Context, ev types.TurnEvent) error
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc struct {
	ListenerName string
	Fn           func(ctx context.Context, ev types.TurnEvent) error
}

func (l ListenerFunc) Name() string { return l.ListenerName }

func (l ListenerFunc) OnTurnEvent(ctx context.Context, ev types.TurnEvent) error {
	return l.Fn(ctx, ev)
}

// dispatcher fans events out to listeners. Each listener gets its own
// breaker so one failing collaborator does not take down the others.
type dispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
	breakers  map[string]*circuitbreaker.Breaker
	collector *metrics.Collector
	logger    *zap.Logger
	timeout   time.Duration
}

func newDispatcher(collector *metrics.Collector, logger *zap.Logger) *dispatcher {
	return &dispatcher{
		breakers:  make(map[string]*circuitbreaker.Breaker),
		collector: collector,
		logger:    logger.With(zap.String("component", "event_dispatcher")),
		timeout:   5 * time.Second,
	}
}

// Add registers a listener with a dedicated circuit breaker.
func (d *dispatcher) Add(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := l.Name()
	d.listeners = append(d.listeners, l)
	if _, ok := d.breakers[name]; !ok {
		cfg := circuitbreaker.DefaultConfig()
		cfg.Timeout = d.timeout
		cfg.OnStateChange = func(from, to circuitbreaker.State) {
			d.logger.Warn("listener breaker state changed",
				zap.String("listener", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if d.collector != nil {
				d.collector.RecordBreakerState(name, int(to))
			}
		}
		d.breakers[name] = circuitbreaker.New(cfg, d.logger)
	}
}

// Publish delivers one event to every listener and waits for all of them,
// so events keep their ledger order from each listener's point of view.
// Delivery failures are recorded, never returned to the ledger path.
func (d *dispatcher) Publish(ctx context.Context, ev types.TurnEvent) {
	d.mu.RLock()
	listeners := append([]Listener(nil), d.listeners...)
	d.mu.RUnlock()

	if d.collector != nil {
		d.collector.RecordEvent(string(ev.Type))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range listeners {
		l := l
		g.Go(func() error {
			d.mu.RLock()
			breaker := d.breakers[l.Name()]
			d.mu.RUnlock()

			err := breaker.Call(gctx, func(callCtx context.Context) error {
				return l.OnTurnEvent(callCtx, ev)
			})
			if err != nil {
				d.logger.Warn("listener notification failed",
					zap.String("listener", l.Name()),
					zap.String("event", string(ev.Type)),
					zap.Uint64("sequence", ev.Sequence),
					zap.Error(err),
				)
				if d.collector != nil {
					d.collector.RecordListenerFailure(l.Name())
				}
			}
			// Failures are isolated per listener.
			return nil
		})
	}
	_ = g.Wait()
}

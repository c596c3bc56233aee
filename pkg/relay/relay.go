// Package relay rebroadcasts cross-module messages between mounted
// elements. Two event types are intercepted on every mounted element:
// a request-type and a response-type message. On receipt the relay
// inspects the payload's declared target tag and rebroadcasts a
// derived event to every mounted element whose tag matches,
// case-insensitively.
//
// This is structural fan-out, not pub-sub: every mounted element is
// always an eligible receiver, matching is tag equality only.
package relay

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openmosaic/openmosaic/pkg/orchestrator"
)

// defaultBuffer is the relay's internal event buffer size.
const defaultBuffer = 256

// Relay fans out intercepted events to matching mounted elements. It
// implements orchestrator.EventRelay.
type Relay struct {
	metrics orchestrator.Metrics
	log     zerolog.Logger

	mu       sync.RWMutex
	elements []orchestrator.Element

	buffer chan orchestrator.RelayEvent
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a relay and starts its dispatch loop.
func New(metrics orchestrator.Metrics, logger zerolog.Logger) *Relay {
	if metrics == nil {
		metrics = orchestrator.NopMetrics{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		metrics: metrics,
		log:     logger.With().Str("component", "event-relay").Logger(),
		buffer:  make(chan orchestrator.RelayEvent, defaultBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}

	r.wg.Add(1)
	go r.dispatch()
	return r
}

// Attach subscribes the relay to the element's event stream and makes
// the element eligible to receive relayed events. Attach is called by
// the mount manager exactly once per mounted element.
func (r *Relay) Attach(el orchestrator.Element) {
	r.mu.Lock()
	r.elements = append(r.elements, el)
	r.mu.Unlock()

	r.wg.Add(1)
	go r.listen(el)
}

// listen drains one element's event stream into the relay buffer.
func (r *Relay) listen(el orchestrator.Element) {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case ev, ok := <-el.Events():
			if !ok {
				return
			}
			if ev.Type != orchestrator.RelayEventRequest && ev.Type != orchestrator.RelayEventResponse {
				continue
			}
			if ev.Source == "" {
				ev.Source = el.TagName()
			}
			select {
			case r.buffer <- ev:
			default:
				r.log.Warn().
					Str("source", ev.Source).
					Str("type", string(ev.Type)).
					Msg("relay buffer full, event dropped")
			}
		}
	}
}

// dispatch delivers buffered events in publish order.
func (r *Relay) dispatch() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case ev := <-r.buffer:
			r.deliver(ev)
		}
	}
}

// deliver rebroadcasts one event to every attached element whose tag
// matches the event's declared target.
func (r *Relay) deliver(ev orchestrator.RelayEvent) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Target == "" {
		r.log.Debug().
			Str("source", ev.Source).
			Str("type", string(ev.Type)).
			Msg("event carries no target, dropped")
		return
	}

	derived := ev.Relayed()

	r.mu.RLock()
	receivers := make([]orchestrator.Element, 0, len(r.elements))
	for _, el := range r.elements {
		if ev.Matches(el.TagName()) {
			receivers = append(receivers, el)
		}
	}
	r.mu.RUnlock()

	for _, el := range receivers {
		if err := el.Deliver(derived); err != nil {
			r.log.Warn().Err(err).
				Str("target", el.TagName()).
				Str("event_id", derived.ID).
				Msg("event delivery failed")
		}
	}

	r.metrics.RecordRelayEvent(string(ev.Type), len(receivers))
	r.log.Debug().
		Str("event_id", derived.ID).
		Str("source", ev.Source).
		Str("target", ev.Target).
		Int("receivers", len(receivers)).
		Msg("event relayed")
}

// Close stops the dispatch loop and all element listeners.
func (r *Relay) Close() {
	r.cancel()
	r.wg.Wait()
}

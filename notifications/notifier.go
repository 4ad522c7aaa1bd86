package notifications

import (
	"context"
	"sync"
)

// Notifier accepts events after the state change they describe has committed.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// AsyncNotifier dispatches each event on its own goroutine, detached from
// the caller's cancellation. No retries and no ordering between events.
type AsyncNotifier struct {
	relay *Relay
	wg    sync.WaitGroup
}

func NewAsyncNotifier(relay *Relay) *AsyncNotifier {
	return &AsyncNotifier{relay: relay}
}

func (n *AsyncNotifier) Notify(ctx context.Context, ev Event) {
	if n == nil || n.relay == nil || !n.relay.Enabled() {
		return
	}
	detached := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.relay.Dispatch(detached, ev)
	}()
}

// Wait blocks until in-flight deliveries finish. Used on shutdown.
func (n *AsyncNotifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}

package channel

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/flemzord/majlis/pkg/message"
)

// Dispatcher routes outbound messages to the channel named by msg.Channel.
// Router replies and discussion utterances both leave through it.
type Dispatcher struct {
	mu       sync.RWMutex
	channels map[string]Channel

	onDeliver func(channel string, err error)
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDeliveryHook sets a function called after every Send that reached a
// channel, with the channel name and the delivery error.
func WithDeliveryHook(fn func(channel string, err error)) DispatcherOption {
	return func(d *Dispatcher) { d.onDeliver = fn }
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{channels: make(map[string]Channel)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds ch under its module ID, the name inbound messages carry.
func (d *Dispatcher) Register(ch Channel) error {
	name := string(ch.ModuleInfo().ID)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.channels[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, name)
	}
	d.channels[name] = ch
	return nil
}

// Get returns the channel registered under name.
func (d *Dispatcher) Get(name string) (Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ch, ok := d.channels[name]
	return ch, ok
}

// Send delivers msg through its channel.
func (d *Dispatcher) Send(ctx context.Context, msg message.OutboundMessage) error {
	if msg.IsEmpty() {
		return ErrEmptyMessage
	}
	ch, ok := d.Get(msg.Channel)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoChannel, msg.Channel)
	}
	err := ch.Send(ctx, msg)
	if d.onDeliver != nil {
		d.onDeliver(msg.Channel, err)
	}
	if err != nil {
		return fmt.Errorf("channel: sending to %s: %w", msg.Channel, err)
	}
	return nil
}

// Channels returns the registered channel names in order.
func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Sorted(maps.Keys(d.channels))
}

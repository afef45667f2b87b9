package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Channel names carried on the update stream.
const (
	ChannelProgress             = "progress"
	ChannelResourceChange       = "resources/change"
	ChannelResourcesListChanged = "resources/list_changed"
	ChannelPromptsListChanged   = "prompts/list_changed"
	ChannelToolsListChanged     = "tools/list_changed"
	ChannelSamplingRequest      = "sampling/request"
	ChannelSamplingResponse     = "sampling/response"
	ChannelRootsListChanged     = "roots/list_changed"
)

// subscriberBuffer is how many events a slow subscriber may lag before events
// are dropped for it.
const subscriberBuffer = 64

// Publisher publishes named events to whoever is listening.
type Publisher interface {
	Publish(channel string, payload any)
}

// Event is one encoded update.
type Event struct {
	Channel string
	Data    json.RawMessage
}

// Broadcaster fans events out to the subscribers connected at publish time.
// Delivery is best effort: a subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	logger *slog.Logger
}

// New creates an empty broadcaster.
func New(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Broadcaster{
		subs:   make(map[uint64]chan Event),
		logger: logger,
	}
}

// Publish encodes payload and delivers it to every current subscriber without
// blocking.
func (b *Broadcaster) Publish(channel string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("encoding update", "channel", channel, "error", err)
		return
	}
	ev := Event{Channel: channel, Data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("dropping update for slow subscriber", "channel", channel, "subscriber", id)
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func removes it and
// closes the channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of connected subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

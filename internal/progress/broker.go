package progress

import (
	"log/slog"
	"sync"
)

// subscriberBuffer bounds each subscriber's backlog. A slow reader loses
// events rather than blocking the generation pipeline.
const subscriberBuffer = 32

// Broker fans events out to live subscribers per topic. Delivery is
// at-most-once with no backlog: a subscriber joining after an event was
// published never receives it. Within one topic delivery order matches
// publish order.
type Broker struct {
	mu     sync.Mutex
	topics map[string]map[*Subscription]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{topics: make(map[string]map[*Subscription]struct{})}
}

// Subscription is one live subscriber on a topic. Events arrive on C.
type Subscription struct {
	C      chan Event
	topic  string
	broker *Broker
	once   sync.Once
}

// Close detaches the subscription from the broker and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.C)
	})
}

// Subscribe registers a live subscriber on a topic.
func (b *Broker) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		C:      make(chan Event, subscriberBuffer),
		topic:  topic,
		broker: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[sub.topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, sub.topic)
	}
}

// Publish delivers the event to every current subscriber of the topic and
// returns immediately. Subscribers whose buffer is full are skipped.
func (b *Broker) Publish(topic string, event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	for sub := range subs {
		select {
		case sub.C <- event:
		default:
			slog.Debug("progress subscriber buffer full, dropping event",
				"topic", topic,
				"stage", event.Stage)
		}
	}
}

// SubscriberCount reports how many live subscribers a topic has.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

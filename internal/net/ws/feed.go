// Package ws streams routed events to websocket subscribers.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"spellcast/server/logging"
	"spellcast/server/logging/sinks"
)

var ErrFeedClosed = errors.New("ws: feed closed")

const defaultSubscriberBuffer = 64

// Feed is a logging sink that fans every event out to the connected
// subscribers. A subscriber whose buffer is full is disconnected rather than
// slowing the router down.
type Feed struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	buffer      int
	closed      bool
	dropped     uint64
	delivered   uint64
}

type FeedStats struct {
	Subscribers int    `json:"subscribers"`
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
}

func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Feed{
		subscribers: make(map[*subscriber]struct{}),
		buffer:      buffer,
	}
}

type subscriber struct {
	category string
	prefix   string
	send     chan []byte
	done     chan struct{}
	once     sync.Once
}

func (s *subscriber) wants(event logging.Event) bool {
	if s.category != "" && event.Category != s.category {
		return false
	}
	if s.prefix != "" && !strings.HasPrefix(string(event.Type), s.prefix) {
		return false
	}
	return true
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// Filter narrows a subscription. Empty fields match everything.
type Filter struct {
	Category   string
	TypePrefix string
}

func (f *Feed) subscribe(filter Filter) (*subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrFeedClosed
	}
	sub := &subscriber{
		category: filter.Category,
		prefix:   filter.TypePrefix,
		send:     make(chan []byte, f.buffer),
		done:     make(chan struct{}),
	}
	f.subscribers[sub] = struct{}{}
	return sub, nil
}

func (f *Feed) unsubscribe(sub *subscriber) {
	f.mu.Lock()
	delete(f.subscribers, sub)
	f.mu.Unlock()
	sub.stop()
}

func (f *Feed) Write(event logging.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFeedClosed
	}
	if len(f.subscribers) == 0 {
		return nil
	}
	data, err := json.Marshal(sinks.Wire(event))
	if err != nil {
		return err
	}
	for sub := range f.subscribers {
		if !sub.wants(event) {
			continue
		}
		select {
		case sub.send <- data:
			f.delivered++
		default:
			f.dropped++
			delete(f.subscribers, sub)
			sub.stop()
		}
	}
	return nil
}

func (f *Feed) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	for sub := range f.subscribers {
		delete(f.subscribers, sub)
		sub.stop()
	}
	return nil
}

func (f *Feed) Stats() FeedStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FeedStats{
		Subscribers: len(f.subscribers),
		Delivered:   f.delivered,
		Dropped:     f.dropped,
	}
}

var _ logging.Sink = (*Feed)(nil)

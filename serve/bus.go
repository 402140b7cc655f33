/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package serve

import (
	"sync"
	"time"
)

// busQueueLimit is the bounded deque length.
const busQueueLimit = 30

// Bus is the single producer-side broadcast queue. Publishers
// never block on subscribers; each subscriber's channel holds only the
// latest undelivered head, so a slow reader drops intermediate messages
// but is guaranteed the most recent one once it catches up.
type Bus struct {
	mu          sync.Mutex
	messages    []Message // newest at index 0, bounded to busQueueLimit
	subs        map[int]chan Message
	nextSubID   int
	settleDelay time.Duration
	timer       *time.Timer
}

// NewBus creates a Bus with the given settle delay (configuration key
// compile-wait-time, default 10ms — see Config.WithDefaults).
func NewBus(settleDelay time.Duration) *Bus {
	return &Bus{
		subs:        make(map[int]chan Message),
		settleDelay: settleDelay,
	}
}

// Publish prepends m to the queue, truncating the tail to busQueueLimit,
// then (re)starts the settle-delay timer. Rapid publications inside one
// settle window coalesce into a single delivery of the latest head.
func (b *Bus) Publish(m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.messages = append([]Message{m}, b.messages...)
	if len(b.messages) > busQueueLimit {
		b.messages = b.messages[:busQueueLimit]
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.settleDelay, b.deliverHead)
}

func (b *Bus) deliverHead() {
	b.mu.Lock()
	if len(b.messages) == 0 {
		b.mu.Unlock()
		return
	}
	head := b.messages[0]
	chans := make([]chan Message, 0, len(b.subs))
	for _, ch := range b.subs {
		chans = append(chans, ch)
	}
	b.mu.Unlock()

	for _, ch := range chans {
		deliverLatest(ch, head)
	}
}

// deliverLatest replaces whatever is pending on ch with m, so the
// channel always holds only the newest undelivered message.
func deliverLatest(ch chan Message, m Message) {
	select {
	case ch <- m:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- m:
	default:
	}
}

// Subscribe registers a new subscriber and returns its id and delivery
// channel. Messages published before Subscribe returns are never
// delivered to it (fire-and-forget).
func (b *Bus) Subscribe() (int, <-chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSubID
	b.nextSubID++
	ch := make(chan Message, 1)
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber registered via Subscribe.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// SubscriberCount reports the number of currently subscribed Sessions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

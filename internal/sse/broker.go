// Package sse streams collection changes and storage notices to browser
// clients as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types sent to clients besides the per-note kinds.
const (
	TypeCollectionChanged = "collection.changed"
	TypeStorageNotice     = "storage.notice"
)

const (
	clientBuffer = 64
	keepAlive    = 15 * time.Second
)

// Event is a single SSE message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// hub is the state owned by the broker loop.
type hub struct {
	clients map[chan []byte]struct{}
	seq     uint64

	// collection.changed is sent at most once per window; a change inside
	// the window is announced when it closes.
	window      time.Duration
	lastChanged time.Time
	trailing    *time.Timer
}

func (h *hub) send(event Event) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return
	}
	h.seq++
	frame := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", h.seq, event.Type, payload))
	for ch := range h.clients {
		select {
		case ch <- frame:
		default: // client too slow, frame dropped
		}
	}
}

func (h *hub) collectionChanged(now time.Time, due chan<- struct{}) {
	if wait := h.window - now.Sub(h.lastChanged); wait > 0 {
		if h.trailing == nil {
			h.trailing = time.AfterFunc(wait, func() {
				select {
				case due <- struct{}{}:
				default:
				}
			})
		}
		return
	}
	h.lastChanged = now
	h.send(Event{Type: TypeCollectionChanged, Data: map[string]string{}})
}

// Broker fans events out to subscribed clients. A single goroutine owns the
// hub; callers hand it operations over ops.
type Broker struct {
	ops     chan func(*hub)
	due     chan struct{}
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that emits collection.changed at most once per
// throttle interval.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = time.Second
	}
	b := &Broker{
		ops:     make(chan func(*hub), 256),
		due:     make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go b.loop(&hub{clients: make(map[chan []byte]struct{}), window: throttle})
	return b
}

func (b *Broker) loop(h *hub) {
	defer close(b.stopped)
	for {
		select {
		case <-b.stopCh:
			if h.trailing != nil {
				h.trailing.Stop()
			}
			for ch := range h.clients {
				close(ch)
			}
			return
		case op := <-b.ops:
			op(h)
		case <-b.due:
			h.trailing = nil
			h.lastChanged = time.Now()
			h.send(Event{Type: TypeCollectionChanged, Data: map[string]string{}})
		}
	}
}

// do runs op on the loop. It reports false once the broker is closed.
func (b *Broker) do(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.stopped:
		return false
	}
}

// Close stops the loop and closes every client channel. Safe to call twice.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The channel is closed when the client is
// unsubscribed or the broker stops.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	added := make(chan struct{})
	if !b.do(func(h *hub) { h.clients[ch] = struct{}{}; close(added) }) {
		close(ch)
		return ch
	}
	select {
	case <-added:
	case <-b.stopped:
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	done := make(chan struct{})
	ok := b.do(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
		close(done)
	})
	if !ok {
		return
	}
	select {
	case <-done:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !b.do(func(h *hub) { resp <- len(h.clients) }) {
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	b.do(func(h *hub) { h.send(event) })
}

// PublishChange sends a note mutation followed by a throttled
// collection.changed. Its signature matches notes.EventFunc.
func (b *Broker) PublishChange(kind string, ids []int64) {
	if ids == nil {
		ids = []int64{}
	}
	b.do(func(h *hub) {
		h.send(Event{Type: kind, Data: map[string][]int64{"ids": ids}})
		h.collectionChanged(time.Now(), b.due)
	})
}

// PublishNotice tells clients that a storage operation failed and the
// session is running from memory. Its signature matches notes.NoticeFunc.
func (b *Broker) PublishNotice(err error) {
	if err == nil {
		return
	}
	b.Publish(Event{Type: TypeStorageNotice, Data: map[string]string{"error": err.Error()}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
		}
		flusher.Flush()
	}
}

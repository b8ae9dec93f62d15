package repositories

import (
	"log/slog"
	"sync"

	"clinic-relay/domain/chat"
	"clinic-relay/domain/event"
)

// Feed is the storage change-feed: repositories publish a notification after
// each committed insert or update, and clients subscribe per table with an
// optional room filter. Delivery is best-effort; a subscriber that cannot
// keep up loses notifications and is expected to heal through the periodic
// resync policy.
type Feed struct {
	mu     sync.RWMutex
	log    *slog.Logger
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	table  event.Table
	roomID chat.RoomID // empty matches every room
	ch     chan event.FeedEvent
}

// Subscription is a live change-feed registration. Cancel releases it.
type Subscription struct {
	C      <-chan event.FeedEvent
	cancel func()
}

func (s *Subscription) Cancel() {
	s.cancel()
}

func NewFeed(log *slog.Logger) *Feed {
	return &Feed{
		log:  log,
		subs: make(map[int]*subscriber),
	}
}

// Subscribe registers for change events on one table, optionally filtered to
// a single room.
func (f *Feed) Subscribe(table event.Table, roomID chat.RoomID, buffer int) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++

	sub := &subscriber{
		table:  table,
		roomID: roomID,
		ch:     make(chan event.FeedEvent, buffer),
	}
	f.subs[id] = sub

	return &Subscription{
		C: sub.ch,
		cancel: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if s, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(s.ch)
			}
		},
	}
}

// Publish fans the event out to matching subscribers without blocking.
func (f *Feed) Publish(e event.FeedEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, sub := range f.subs {
		if sub.table != e.FeedTable() {
			continue
		}
		if sub.roomID != "" && sub.roomID != e.Room() {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			f.log.Debug("Change-feed subscriber full, notification lost",
				"table", e.FeedTable(), "room", e.Room())
		}
	}
}

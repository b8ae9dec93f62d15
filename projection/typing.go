package projection

import (
	"sync"
	"time"

	"clinic-relay/domain/chat"
)

// typingState tracks the transient per-room typing indicator. Each typing
// event restarts the clearance timer (cancel-and-reschedule, not accumulate).
type typingState struct {
	mu      sync.Mutex
	timeout time.Duration
	active  map[chat.RoomID]bool
	timers  map[chat.RoomID]*time.Timer
	gens    map[chat.RoomID]uint64
	onClear func(chat.RoomID)
}

func newTypingState(timeout time.Duration, onClear func(chat.RoomID)) *typingState {
	return &typingState{
		timeout: timeout,
		active:  make(map[chat.RoomID]bool),
		timers:  make(map[chat.RoomID]*time.Timer),
		gens:    make(map[chat.RoomID]uint64),
		onClear: onClear,
	}
}

// touch marks the room as typing and restarts its clearance timer. The
// generation counter invalidates an expiry that already fired but has not
// taken the lock yet.
func (t *typingState) touch(roomID chat.RoomID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active[roomID] = true

	if timer, ok := t.timers[roomID]; ok {
		timer.Stop()
	}
	t.gens[roomID]++
	gen := t.gens[roomID]
	t.timers[roomID] = time.AfterFunc(t.timeout, func() {
		t.clear(roomID, gen)
	})
}

// clear runs from the expiry callback. Stop is a no-op once the callback has
// fired, so a refresh can overtake it between the firing and the lock
// acquisition here; a superseded expiry must leave the rescheduled indicator
// untouched.
func (t *typingState) clear(roomID chat.RoomID, gen uint64) {
	t.mu.Lock()
	if t.gens[roomID] != gen {
		t.mu.Unlock()
		return
	}
	delete(t.active, roomID)
	delete(t.timers, roomID)
	t.mu.Unlock()

	if t.onClear != nil {
		t.onClear(roomID)
	}
}

func (t *typingState) isActive(roomID chat.RoomID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[roomID]
}

// stopAll cancels every pending timer, for shutdown.
func (t *typingState) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for roomID, timer := range t.timers {
		timer.Stop()
		t.gens[roomID]++
		delete(t.timers, roomID)
		delete(t.active, roomID)
	}
}

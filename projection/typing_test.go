package projection

import (
	"sync"
	"testing"
	"time"

	"clinic-relay/domain/chat"

	"github.com/stretchr/testify/require"
)

func TestTypingState_ClearsAfterTimeout(t *testing.T) {
	req := require.New(t)

	var mu sync.Mutex
	var cleared []chat.RoomID
	state := newTypingState(60*time.Millisecond, func(roomID chat.RoomID) {
		mu.Lock()
		defer mu.Unlock()
		cleared = append(cleared, roomID)
	})
	defer state.stopAll()

	// Given a typing event at t=0
	state.touch("room-1")
	req.True(state.isActive("room-1"))

	// Then the indicator clears once the timeout elapses
	req.Eventually(func() bool { return !state.isActive("room-1") },
		2*time.Second, 5*time.Millisecond)
	mu.Lock()
	req.Equal([]chat.RoomID{"room-1"}, cleared)
	mu.Unlock()
}

func TestTypingState_RefreshReschedulesInsteadOfAccumulating(t *testing.T) {
	req := require.New(t)

	cleared := make(chan chat.RoomID, 4)
	state := newTypingState(90*time.Millisecond, func(roomID chat.RoomID) {
		cleared <- roomID
	})
	defer state.stopAll()

	// Given typing events at t=0 and a refresh before the first timeout
	state.touch("room-1")
	time.Sleep(60 * time.Millisecond)
	state.touch("room-1")

	// Then the indicator is still active right after the original deadline
	time.Sleep(50 * time.Millisecond)
	req.True(state.isActive("room-1"))
	req.Empty(cleared)

	// And exactly one clearance fires, at the rescheduled deadline
	select {
	case roomID := <-cleared:
		req.Equal(chat.RoomID("room-1"), roomID)
	case <-time.After(2 * time.Second):
		t.Fatal("Typing indicator never cleared")
	}
	req.False(state.isActive("room-1"))
	req.Empty(cleared)
}

func TestTypingState_StaleExpiryDoesNotClearRefresh(t *testing.T) {
	req := require.New(t)

	cleared := make(chan chat.RoomID, 4)
	state := newTypingState(20*time.Millisecond, func(roomID chat.RoomID) {
		cleared <- roomID
	})
	defer state.stopAll()

	// Given an indicator whose timer has fired but whose callback is held
	// off the lock past a refresh that bumped the generation
	state.touch("room-1")
	state.mu.Lock()
	time.Sleep(50 * time.Millisecond)
	state.active["room-1"] = true
	state.gens["room-1"]++
	state.timers["room-1"] = time.NewTimer(time.Hour)
	state.mu.Unlock()

	// Then the stale expiry must not clear the refreshed indicator
	time.Sleep(30 * time.Millisecond)
	req.True(state.isActive("room-1"))
	select {
	case roomID := <-cleared:
		t.Fatalf("Stale expiry cleared room %s", roomID)
	default:
	}
}

func TestTypingState_RoomsAreIndependent(t *testing.T) {
	req := require.New(t)

	state := newTypingState(50*time.Millisecond, nil)
	defer state.stopAll()

	state.touch("room-1")
	req.True(state.isActive("room-1"))
	req.False(state.isActive("room-2"))
}

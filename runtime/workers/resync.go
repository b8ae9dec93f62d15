package workers

import (
	"context"
	"log/slog"
	"time"

	"clinic-relay/domain"
	"clinic-relay/domain/chat"
	"clinic-relay/domain/event"
	"clinic-relay/projection"
	"clinic-relay/services"

	"github.com/samber/lo"
)

// ResyncWorker periodically reloads rooms and the open room's messages from
// storage and merges them into the local view. Push channels can miss
// updates (reconnects, dropped frames); the poll heals whatever they missed.
// Merging is idempotent, so re-reading already-known data is harmless.
type ResyncWorker struct {
	log      *slog.Logger
	self     domain.Participant
	interval time.Duration
	engine   *projection.Engine
	chat     services.IChatService
}

func NewResyncWorker(log *slog.Logger, self domain.Participant, interval time.Duration,
	engine *projection.Engine, chatService services.IChatService) *ResyncWorker {
	return &ResyncWorker{
		log:      log,
		self:     self,
		interval: interval,
		engine:   engine,
		chat:     chatService,
	}
}

func (w *ResyncWorker) Run(ctx context.Context) error {
	w.log.Info("Starting resync worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// First pass immediately, so the view is populated at startup.
	w.resync()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.resync()
		}
	}
}

func (w *ResyncWorker) resync() {
	rooms, err := w.chat.LoadRooms(w.self.ID)
	if err != nil {
		w.log.Warn("Room resync failed", "error", err)
	} else {
		for _, room := range rooms {
			w.engine.ApplyFeedEvent(event.RoomChanged{
				Kind:   event.ChangeUpdate,
				Update: roomSnapshot(room),
			})
		}
	}

	open := w.engine.OpenRoomID()
	if open == "" {
		return
	}

	messages, err := w.chat.LoadMessages(open)
	if err != nil {
		w.log.Warn("Message resync failed", "room_id", open, "error", err)
		return
	}
	w.engine.ApplyResync(open, messages)
}

// roomSnapshot turns a full room row into an update touching every field.
func roomSnapshot(room chat.Room) chat.RoomUpdate {
	return chat.RoomUpdate{
		ID:              room.ID,
		DoctorID:        lo.ToPtr(room.DoctorID),
		PatientID:       lo.ToPtr(room.PatientID),
		LastMessage:     lo.ToPtr(room.LastMessage),
		LastMessageTime: lo.ToPtr(room.LastMessageTime),
		UnreadDoctor:    lo.ToPtr(room.UnreadDoctor),
		UnreadPatient:   lo.ToPtr(room.UnreadPatient),
	}
}

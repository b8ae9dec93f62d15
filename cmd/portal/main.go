package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"clinic-relay/client"
	"clinic-relay/domain"
	"clinic-relay/domain/chat"
	"clinic-relay/domain/event"
	"clinic-relay/projection"
	"clinic-relay/repositories"
	"clinic-relay/runtime/workers"
	"clinic-relay/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the portal application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Portal error: %v\n", err)
	}
	os.Exit(code)
}

// run hosts the headless doctor portal: local storage, the sync engine, a
// relay connection, and a line-based console.
func run() (int, error) {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	self := domain.Participant{ID: config.ParticipantID, Role: domain.Role(config.Role)}

	// 2. Local chat storage and its change feed
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() { _ = db.Close() }()

	feed := repositories.NewFeed(log)
	messageRepository := repositories.NewMessageRepository(db, log, feed, nil)
	roomRepository := repositories.NewRoomRepository(db, log, feed)
	profileRepository := repositories.NewProfileRepository(db)
	chatService := services.NewChatService(messageRepository, roomRepository)

	// 3. Sync engine fed by all three channels
	listener := newConsoleListener(self)
	engine := projection.NewEngine(log, self, config.TypingTimeout,
		listener, chatService, profileRepository)
	defer engine.Stop()

	// 4. Relay connection
	relayClient, err := client.Dial(log, config.RelayAddr, self, config.ConnectionBufferSize)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = relayClient.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	roomsSub := feed.Subscribe(event.TableRooms, "", config.FeedBufferSize)
	defer roomsSub.Cancel()
	messagesSub := feed.Subscribe(event.TableMessages, "", config.FeedBufferSize)
	defer messagesSub.Cancel()

	sup := workers.NewSupervisor(log)
	sup.Add(
		workers.NewRelayPumpWorker(log, relayClient.Frames(), engine),
		workers.NewFeedPumpWorker(log, roomsSub, engine),
		workers.NewFeedPumpWorker(log, messagesSub, engine),
		workers.NewResyncWorker(log, self, config.ResyncInterval, engine, chatService),
	)
	go sup.Run(ctx)
	defer sup.Stop()

	color.Greenln(">>> Connected to relay. /rooms to list, /open <room> to chat, Ctrl+C to quit.")

	// 5. Console loop
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return exitOK, nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/rooms":
			printRooms(engine)
		case strings.HasPrefix(line, "/open "):
			roomID := chat.RoomID(strings.TrimSpace(strings.TrimPrefix(line, "/open ")))
			engine.OpenRoom(roomID)
			printMessages(engine, roomID)
		case line == "/typing":
			emitTyping(relayClient, engine, self)
		default:
			sendMessage(relayClient, engine, chatService, self, line)
		}
	}
	return exitOK, nil
}

func printRooms(engine *projection.Engine) {
	for _, room := range engine.Rooms() {
		name := room.PatientID
		if profile, ok := engine.Patient(room.PatientID); ok {
			name = profile.Name
		}
		unread := ""
		if n := room.UnreadDoctor; n > 0 {
			unread = color.Red.Sprintf(" (%d unread)", n)
		}
		color.Printf("%s  %s  %s%s\n",
			color.Cyan.Sprint(room.ID), name, room.LastMessage, unread)
	}
}

func printMessages(engine *projection.Engine, roomID chat.RoomID) {
	for _, m := range engine.Messages(roomID) {
		color.Printf("[%s] %s: %s\n",
			m.CreatedAt.Format(time.TimeOnly), m.SenderID, m.Content)
	}
}

func emitTyping(relayClient *client.Client, engine *projection.Engine, self domain.Participant) {
	roomID := engine.OpenRoomID()
	room, ok := engine.Room(roomID)
	if !ok {
		color.Yellowln("No open room")
		return
	}
	_ = relayClient.Emit(event.NameTyping, event.ChatTyping{
		RoomID:      string(roomID),
		RecipientID: room.PatientID,
		SenderID:    self.ID,
	})
}

// sendMessage runs the full optimistic send: local temp insert, relay push,
// storage write, then temp-to-canonical confirmation or rollback.
func sendMessage(relayClient *client.Client, engine *projection.Engine,
	chatService services.IChatService, self domain.Participant, content string) {
	roomID := engine.OpenRoomID()
	room, ok := engine.Room(roomID)
	if !ok {
		color.Yellowln("No open room, use /open <room> first")
		return
	}

	cmd := chat.SendMessageCommand{
		RoomID:      roomID,
		SenderID:    self.ID,
		SenderRole:  self.Role,
		RecipientID: room.PatientID,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}

	temp := engine.AppendLocal(cmd)

	_ = relayClient.Emit(event.NameMessage, event.ChatMessage{
		RoomID:      string(cmd.RoomID),
		Message:     cmd.Content,
		SenderID:    cmd.SenderID,
		RecipientID: cmd.RecipientID,
		Timestamp:   cmd.CreatedAt,
	})

	stored, err := chatService.SendMessage(cmd)
	if err != nil {
		engine.DiscardMessage(roomID, temp.ID)
		color.Redln("Send failed, message discarded:", err)
		return
	}
	engine.ConfirmMessage(roomID, temp.ID, stored)
}

// consoleListener renders engine updates on the terminal.
type consoleListener struct {
	self domain.Participant
}

func newConsoleListener(self domain.Participant) *consoleListener {
	return &consoleListener{self: self}
}

func (c *consoleListener) RoomChanged(chat.RoomID)     {}
func (c *consoleListener) MessagesChanged(chat.RoomID) {}

func (c *consoleListener) TypingChanged(roomID chat.RoomID, active bool) {
	if active {
		color.Grayln("... typing")
	}
}

func (c *consoleListener) IncomingMessage(roomID chat.RoomID, message chat.Message) {
	color.Printf("%s %s: %s\n",
		color.Magenta.Sprintf("[%s]", roomID), message.SenderID, message.Content)
}

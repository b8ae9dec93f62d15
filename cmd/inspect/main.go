package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

// Dumps the chat keyspace (rooms, messages, profiles) as a table. Opens the
// store read-only so it can run next to a live portal.
func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, room:, doctor:, patient:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Room", "Timestamp", "Sender", "Content"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			err := item.Value(func(v []byte) error {
				table.Append(rowFor(key, v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Scan failed: ", err)
	}

	table.Render()
}

func rowFor(key string, val []byte) []string {
	var decoded struct {
		RoomID    string    `json:"chat_room_id"`
		SenderID  string    `json:"sender_id"`
		Message   string    `json:"message"`
		CreatedAt time.Time `json:"created_at"`
		Name      string    `json:"name"`
	}
	if err := json.Unmarshal(val, &decoded); err != nil {
		return []string{key, "-", "-", "-", fmt.Sprintf("%d raw bytes", len(val))}
	}

	content := decoded.Message
	if content == "" {
		content = decoded.Name
	}
	if len(content) > 60 {
		content = content[:60] + "..."
	}

	timestamp := "-"
	if !decoded.CreatedAt.IsZero() {
		timestamp = decoded.CreatedAt.Format(time.RFC822)
	}

	room := decoded.RoomID
	if room == "" {
		if parts := strings.Split(key, ":"); len(parts) > 1 {
			room = parts[1]
		}
	}

	return []string{key, room, timestamp, decoded.SenderID, content}
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)
	return badger.Open(opts)
}

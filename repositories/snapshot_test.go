package repositories

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSnapshotRepository_Identities(t *testing.T) {
	req := require.New(t)
	repo := NewSnapshotRepository(openTestDB(t), slog.Default(), 0)

	record := IdentityRecord{
		Username:     "alice",
		DisplayName:  "Alice",
		PasswordHash: "$argon2id$...",
		IsAdmin:      true,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	req.NoError(repo.SaveIdentity(record))

	// Upsert: saving again replaces, not duplicates.
	record.DisplayName = "Alice (admin)"
	req.NoError(repo.SaveIdentity(record))

	records, err := repo.LoadIdentities()
	req.NoError(err)
	req.Len(records, 1)
	req.Equal("Alice (admin)", records[0].DisplayName)
}

func TestSnapshotRepository_Rooms_RoundTrip(t *testing.T) {
	req := require.New(t)
	repo := NewSnapshotRepository(openTestDB(t), slog.Default(), 0)

	room := RoomRecord{
		ID:      "general",
		Name:    "General",
		Members: []string{"alice", "bob"},
		Messages: []MessageRecord{
			{ID: "m1", Author: "alice", Text: "hello", RoomID: "general",
				Reactions: map[string][]string{"👍": {"bob"}}},
		},
	}
	req.NoError(repo.SaveRooms([]RoomRecord{room}))

	records, err := repo.LoadRooms()
	req.NoError(err)
	req.Len(records, 1)
	req.Equal(room.Members, records[0].Members)
	req.Equal(room.Messages[0].Reactions, records[0].Messages[0].Reactions)
}

func TestSnapshotRepository_History_Capped_At_Write_Time(t *testing.T) {
	req := require.New(t)
	limit := 100
	repo := NewSnapshotRepository(openTestDB(t), slog.Default(), limit)

	var messages []MessageRecord
	for i := 0; i < 150; i++ {
		messages = append(messages, MessageRecord{
			ID: fmt.Sprintf("m%03d", i), Text: fmt.Sprintf("msg %d", i), RoomID: "general",
		})
	}
	req.NoError(repo.SaveRooms([]RoomRecord{{ID: "general", Name: "General", Messages: messages}}))

	records, err := repo.LoadRooms()
	req.NoError(err)
	req.Len(records[0].Messages, limit)
	// The newest entries survive, the oldest are dropped.
	req.Equal("m050", records[0].Messages[0].ID)
	req.Equal("m149", records[0].Messages[limit-1].ID)
}

func TestSnapshotRepository_SaveRooms_Drops_Deleted(t *testing.T) {
	req := require.New(t)
	repo := NewSnapshotRepository(openTestDB(t), slog.Default(), 0)

	req.NoError(repo.SaveRooms([]RoomRecord{
		{ID: "general", Name: "General"},
		{ID: "team", Name: "Team"},
	}))

	// Next snapshot no longer contains "team": its key must go away.
	req.NoError(repo.SaveRooms([]RoomRecord{{ID: "general", Name: "General"}}))

	records, err := repo.LoadRooms()
	req.NoError(err)
	req.Len(records, 1)
	req.Equal("general", records[0].ID)
}

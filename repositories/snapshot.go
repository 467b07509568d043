//go:generate go run go.uber.org/mock/mockgen -source=snapshot.go -destination=../mocks/mock_snapshot_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	identityPrefix = "user:"
	roomPrefix     = "room:"
)

// DefaultHistoryLimit caps how many messages of each room survive a
// snapshot. The live in-memory log is never truncated; only what gets
// persisted is bounded.
const DefaultHistoryLimit = 100

type ISnapshotRepository interface {
	SaveIdentity(record IdentityRecord) error
	LoadIdentities() ([]IdentityRecord, error)
	SaveRooms(records []RoomRecord) error
	LoadRooms() ([]RoomRecord, error)
}

// IdentityRecord is the persisted form of an account.
type IdentityRecord struct {
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"passwordHash"`
	IsAdmin      bool      `json:"isAdmin"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// MessageRecord is the persisted form of one log entry.
type MessageRecord struct {
	ID          string              `json:"id"`
	Author      string              `json:"author,omitempty"`
	DisplayName string              `json:"displayName,omitempty"`
	Text        string              `json:"text,omitempty"`
	ImageURL    string              `json:"imageUrl,omitempty"`
	RoomID      string              `json:"roomId"`
	IsAdmin     bool                `json:"isAdmin,omitempty"`
	System      bool                `json:"system,omitempty"`
	At          time.Time           `json:"at"`
	Reactions   map[string][]string `json:"reactions,omitempty"`
}

// RoomRecord is the persisted form of a room, history already capped.
type RoomRecord struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Creator      string          `json:"creator"`
	CreatedAt    time.Time       `json:"createdAt"`
	PasswordHash string          `json:"passwordHash,omitempty"`
	Members      []string        `json:"members"`
	Messages     []MessageRecord `json:"messages"`
}

// SnapshotRepository persists identities and room snapshots in
// BadgerDB as JSON values. Identities are written through on every
// change; rooms are written in bulk by the snapshot worker.
type SnapshotRepository struct {
	db           *badger.DB
	log          *slog.Logger
	historyLimit int
}

func NewSnapshotRepository(db *badger.DB, log *slog.Logger, historyLimit int) *SnapshotRepository {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &SnapshotRepository{db: db, log: log, historyLimit: historyLimit}
}

// SaveIdentity upserts one identity under "user:{username}".
func (r *SnapshotRepository) SaveIdentity(record IdentityRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(identityPrefix+record.Username), data)
	})
}

func (r *SnapshotRepository) LoadIdentities() ([]IdentityRecord, error) {
	var records []IdentityRecord
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, identityPrefix, func(value []byte) error {
			var rec IdentityRecord
			if err := json.Unmarshal(value, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	return records, err
}

// SaveRooms replaces the whole persisted room set in one transaction:
// every current room is written with its history capped to the newest
// historyLimit entries, and keys of since-deleted rooms are dropped.
func (r *SnapshotRepository) SaveRooms(records []RoomRecord) error {
	keep := make(map[string]struct{}, len(records))
	for _, rec := range records {
		keep[rec.ID] = struct{}{}
	}

	return r.db.Update(func(txn *badger.Txn) error {
		var stale [][]byte
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(roomPrefix)})
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			id := strings.TrimPrefix(string(key), roomPrefix)
			if _, ok := keep[id]; !ok {
				stale = append(stale, key)
			}
		}
		it.Close()
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		for _, rec := range records {
			rec.Messages = capHistory(rec.Messages, r.historyLimit)
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal room %s: %w", rec.ID, err)
			}
			if err := txn.Set([]byte(roomPrefix+rec.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SnapshotRepository) LoadRooms() ([]RoomRecord, error) {
	var records []RoomRecord
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, roomPrefix, func(value []byte) error {
			var rec RoomRecord
			if err := json.Unmarshal(value, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	return records, err
}

func capHistory(messages []MessageRecord, limit int) []MessageRecord {
	if len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}

func scanPrefix(txn *badger.Txn, prefix string, fn func(value []byte) error) error {
	options := badger.DefaultIteratorOptions
	options.Prefix = []byte(prefix)
	it := txn.NewIterator(options)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"parley/domain"
	"parley/identity"
	"parley/repositories"
	"parley/rooms"
)

// SnapshotWorker persists a point-in-time copy of all rooms and
// identities on a fixed interval and once more on shutdown. Copies are
// taken under per-room locks; serialization and disk writes happen
// here, off the foreground message path. A failed write is logged and
// retried on the next tick.
type SnapshotWorker struct {
	log        *slog.Logger
	rooms      *rooms.Store
	identities *identity.Store
	repo       repositories.ISnapshotRepository
	interval   time.Duration
}

func NewSnapshotWorker(log *slog.Logger, roomStore *rooms.Store, identityStore *identity.Store,
	repo repositories.ISnapshotRepository, interval time.Duration) *SnapshotWorker {
	return &SnapshotWorker{
		log:        log,
		rooms:      roomStore,
		identities: identityStore,
		repo:       repo,
		interval:   interval,
	}
}

func (w *SnapshotWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final flush so a clean shutdown loses nothing.
			w.Persist()
			return nil
		case <-ticker.C:
			w.Persist()
		}
	}
}

// Persist writes the current state. Best-effort: errors are logged,
// the in-memory state stays authoritative either way.
func (w *SnapshotWorker) Persist() {
	copies := w.rooms.SnapshotAll()
	records := lo.Map(copies, func(c domain.RoomCopy, _ int) repositories.RoomRecord {
		return toRoomRecord(c)
	})
	if err := w.repo.SaveRooms(records); err != nil {
		w.log.Warn("room snapshot failed, retrying next interval", "error", err)
	}

	for _, id := range w.identities.All() {
		record := repositories.IdentityRecord{
			Username:     id.Username,
			DisplayName:  id.DisplayName,
			PasswordHash: id.PasswordHash,
			IsAdmin:      id.IsAdmin,
			AvatarURL:    id.AvatarURL,
			CreatedAt:    id.CreatedAt,
		}
		if err := w.repo.SaveIdentity(record); err != nil {
			w.log.Warn("identity snapshot failed", "username", id.Username, "error", err)
		}
	}
}

func toRoomRecord(c domain.RoomCopy) repositories.RoomRecord {
	return repositories.RoomRecord{
		ID:           c.ID,
		Name:         c.Name,
		Creator:      c.Creator,
		CreatedAt:    c.CreatedAt,
		PasswordHash: c.PasswordHash,
		Members:      c.Members,
		Messages: lo.Map(c.Messages, func(m domain.Message, _ int) repositories.MessageRecord {
			return toMessageRecord(m)
		}),
	}
}

func toMessageRecord(m domain.Message) repositories.MessageRecord {
	return repositories.MessageRecord{
		ID:          m.ID.String(),
		Author:      m.Author,
		DisplayName: m.DisplayName,
		Text:        m.Text,
		ImageURL:    m.ImageURL,
		RoomID:      m.RoomID,
		IsAdmin:     m.IsAdmin,
		System:      m.System,
		At:          m.CreatedAt,
		Reactions:   m.Reactions,
	}
}

// FromRoomRecord rebuilds a domain copy from its persisted form.
// Used by startup restore in cmd.
func FromRoomRecord(rec repositories.RoomRecord) domain.RoomCopy {
	return domain.RoomCopy{
		ID:           rec.ID,
		Name:         rec.Name,
		Creator:      rec.Creator,
		CreatedAt:    rec.CreatedAt,
		PasswordHash: rec.PasswordHash,
		Members:      rec.Members,
		Messages: lo.Map(rec.Messages, func(m repositories.MessageRecord, _ int) domain.Message {
			return fromMessageRecord(m)
		}),
	}
}

func fromMessageRecord(rec repositories.MessageRecord) domain.Message {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		id = uuid.New()
	}
	reactions := domain.ReactionMap(rec.Reactions)
	if reactions == nil {
		reactions = domain.ReactionMap{}
	}
	return domain.Message{
		ID:          id,
		Author:      rec.Author,
		DisplayName: rec.DisplayName,
		Text:        rec.Text,
		ImageURL:    rec.ImageURL,
		RoomID:      rec.RoomID,
		IsAdmin:     rec.IsAdmin,
		System:      rec.System,
		CreatedAt:   rec.At,
		Reactions:   reactions,
	}
}

package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"parley/errors"
)

func identityFor(username string, admin bool) Identity {
	id := Identity{Username: username, DisplayName: username}
	if admin {
		id.Promote()
	}
	return id
}

func TestRoom_Append_And_History(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", "Test", "alice", "")

	sent := room.Append(NewMessage("r1", identityFor("alice", false), "hello", ""))
	req.Equal("alice", sent.Author)
	req.Equal("hello", sent.Text)
	req.NotEqual(uuid.Nil, sent.ID)

	history := room.History()
	req.Len(history, 1)
	req.Equal(sent.ID, history[0].ID)

	// History returns copies: mutating the copy must not leak back.
	history[0].Reactions.Add("👍", "mallory")
	req.Empty(room.History()[0].Reactions)
}

func TestRoom_Membership_Is_Monotonic(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", "Test", "alice", "some-hash")

	req.False(room.IsMember("bob"))
	room.AddMember("bob")
	req.True(room.IsMember("bob"))

	// Repeated joins have no duplicate effect.
	room.AddMember("bob")
	req.Len(room.Members(), 1)
}

func TestRoom_Delete_Authorization(t *testing.T) {
	room := NewRoom("r1", "Test", "alice", "")
	msg := room.Append(NewMessage("r1", identityFor("alice", false), "mine", ""))

	t.Run("author deletes own message", func(t *testing.T) {
		req := require.New(t)
		deletedBy, err := room.Delete(msg.ID, identityFor("alice", false))
		req.NoError(err)
		req.Equal(DeletedByAuthor, deletedBy)
		req.Empty(room.History())
	})

	t.Run("admin deletes someone else's message", func(t *testing.T) {
		req := require.New(t)
		msg := room.Append(NewMessage("r1", identityFor("alice", false), "hers", ""))
		deletedBy, err := room.Delete(msg.ID, identityFor("root", true))
		req.NoError(err)
		req.Equal(DeletedByAdmin, deletedBy)
	})

	t.Run("non-author non-admin is forbidden", func(t *testing.T) {
		req := require.New(t)
		msg := room.Append(NewMessage("r1", identityFor("alice", false), "hers", ""))
		_, err := room.Delete(msg.ID, identityFor("bob", false))
		req.ErrorIs(err, errors.ErrForbidden)
		req.Len(room.History(), 1)
	})

	t.Run("unknown message id", func(t *testing.T) {
		req := require.New(t)
		_, err := room.Delete(uuid.New(), identityFor("alice", false))
		req.ErrorIs(err, errors.ErrNotFound)
	})
}

func TestRoom_SystemNotice_Not_Author_Deletable(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", "Test", "alice", "")
	notice := room.AppendNotice("alice joined the room")
	req.True(notice.System)
	req.Empty(notice.Author)

	_, err := room.Delete(notice.ID, identityFor("alice", false))
	req.ErrorIs(err, errors.ErrForbidden)

	// An admin can still clean notices up.
	deletedBy, err := room.Delete(notice.ID, identityFor("root", true))
	req.NoError(err)
	req.Equal(DeletedByAdmin, deletedBy)
}

func TestReactions_RoundTrip(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", "Test", "alice", "")
	msg := room.Append(NewMessage("r1", identityFor("alice", false), "react to me", ""))

	after, err := room.AddReaction(msg.ID, "👍", "bob")
	req.NoError(err)
	req.Equal(ReactionMap{"👍": {"bob"}}, after)

	// Add then remove by the same user/emoji returns to the prior state.
	after, err = room.RemoveReaction(msg.ID, "👍", "bob")
	req.NoError(err)
	req.Empty(after)
}

func TestReactions_No_Empty_Sets(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", "Test", "alice", "")
	msg := room.Append(NewMessage("r1", identityFor("alice", false), "x", ""))

	_, err := room.AddReaction(msg.ID, "🎉", "bob")
	req.NoError(err)
	_, err = room.AddReaction(msg.ID, "🎉", "clara")
	req.NoError(err)

	after, err := room.RemoveReaction(msg.ID, "🎉", "bob")
	req.NoError(err)
	req.Equal(ReactionMap{"🎉": {"clara"}}, after)

	after, err = room.RemoveReaction(msg.ID, "🎉", "clara")
	req.NoError(err)
	for emoji, users := range after {
		req.NotEmptyf(users, "emoji %s has an empty reactor set", emoji)
	}
	req.NotContains(after, "🎉")
}

func TestReactions_Add_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", "Test", "alice", "")
	msg := room.Append(NewMessage("r1", identityFor("alice", false), "x", ""))

	_, err := room.AddReaction(msg.ID, "👍", "bob")
	req.NoError(err)
	after, err := room.AddReaction(msg.ID, "👍", "bob")
	req.NoError(err)
	req.Equal(ReactionMap{"👍": {"bob"}}, after)
}

func TestRoom_Copy_Is_Point_In_Time(t *testing.T) {
	req := require.New(t)
	room := NewRoom("r1", "Test", "alice", "hash")
	room.AddMember("alice")
	room.Append(NewMessage("r1", identityFor("alice", false), "before", ""))

	snapshot := room.Copy()
	room.Append(NewMessage("r1", identityFor("alice", false), "after", ""))

	req.Len(snapshot.Messages, 1)
	req.Equal("before", snapshot.Messages[0].Text)
	req.Equal([]string{"alice"}, snapshot.Members)
	req.Equal("hash", snapshot.PasswordHash)

	restored := Restore(snapshot)
	req.True(restored.IsMember("alice"))
	req.Len(restored.History(), 1)
}

func TestIdentity_Promote_Marker_Once(t *testing.T) {
	req := require.New(t)
	id := Identity{Username: "alice", DisplayName: "Alice"}
	id.Promote()
	req.True(id.IsAdmin)
	req.Equal("Alice"+AdminMarker, id.DisplayName)

	id.Promote()
	req.Equal("Alice"+AdminMarker, id.DisplayName)
}

package reactions

import (
	"testing"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, msg, emoji, user string) models.ReactionRecord {
	return models.ReactionRecord{
		Document:  models.Document{ID: id},
		MessageID: msg,
		Emoji:     emoji,
		UserID:    user,
	}
}

func TestStandardizeGroupsRecords(t *testing.T) {
	got, err := Standardize([]models.ReactionRecord{
		record("r1", "m1", "👍", "A"),
		record("r2", "m1", "👍", "B"),
		record("r3", "m1", "🎉", "A"),
		record("r4", "m2", "👍", "C"),
	})
	require.NoError(t, err)

	require.Len(t, got["m1"], 2)
	assert.Equal(t, "👍", got["m1"][0].Emoji)
	assert.Equal(t, []string{"A", "B"}, got["m1"][0].UserIDs)
	assert.Equal(t, map[string]string{"A": "r1", "B": "r2"}, got["m1"][0].RecordIDs)
	assert.Len(t, got["m2"], 1)
}

func TestStandardizeSkipsInvalidRecords(t *testing.T) {
	got, err := Standardize([]models.ReactionRecord{
		record("r1", "m1", "👍", "A"),
		record("r2", "", "👍", "B"),
		record("r3", "m1", "", "B"),
	})

	assert.ErrorIs(t, err, errors.ErrBadRequest)
	assert.Equal(t, []string{"A"}, got["m1"][0].UserIDs)
}

func TestFromEmbedded(t *testing.T) {
	groups := FromEmbedded([]models.EmbeddedReaction{
		{Emoji: "👍", UserIDs: []string{"A", "A"}},
		{Emoji: "", UserIDs: []string{"B"}},
		{Emoji: "👍", UserIDs: []string{"B"}},
	})

	require.Len(t, groups, 1)
	assert.Equal(t, []string{"A", "B"}, groups[0].UserIDs)
}

func TestApplyUnionsUsers(t *testing.T) {
	s := NewStore()

	_, err := s.ApplyRecord(record("r1", "m1", "👍", "A"))
	require.NoError(t, err)
	_, err = s.Apply("m1", Group{Emoji: "👍", UserIDs: []string{"B", "A"}})
	require.NoError(t, err)

	groups := s.ForMessage("m1")
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"A", "B"}, groups[0].UserIDs)

	rec, ok := s.RecordID("m1", "👍", "A")
	assert.True(t, ok)
	assert.Equal(t, "r1", rec)
}

func TestApplySameReactionTwiceIsNoop(t *testing.T) {
	s := NewStore()
	notified := 0
	s.Subscribe(func(Change) { notified++ })

	changed, _ := s.ApplyRecord(record("r1", "m1", "👍", "A"))
	assert.True(t, changed)
	changed, _ = s.ApplyRecord(record("r1", "m1", "👍", "A"))
	assert.False(t, changed)
	assert.Equal(t, 1, notified)
}

func TestRemoveSingleUserKeepsOthers(t *testing.T) {
	s := NewStore()
	_, _ = s.Apply("m1", Group{Emoji: "👍", UserIDs: []string{"A"}})
	_, _ = s.Apply("m1", Group{Emoji: "👍", UserIDs: []string{"B"}})

	changed, err := s.Remove("m1", "👍", "A")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"B"}, s.ForMessage("m1")[0].UserIDs)
	assert.False(t, s.HasReacted("m1", "👍", "A"))
	assert.True(t, s.HasReacted("m1", "👍", "B"))

	_, _ = s.Remove("m1", "👍", "B")
	assert.Empty(t, s.ForMessage("m1"))
	assert.Equal(t, 0, s.Len())
}

func TestRemoveWithoutUserClearsEmoji(t *testing.T) {
	s := NewStore()
	_, _ = s.Apply("m1", Group{Emoji: "👍", UserIDs: []string{"A", "B"}})
	_, _ = s.Apply("m1", Group{Emoji: "🎉", UserIDs: []string{"A"}})

	_, _ = s.Remove("m1", "👍", "")

	groups := s.ForMessage("m1")
	require.Len(t, groups, 1)
	assert.Equal(t, "🎉", groups[0].Emoji)
}

func TestRemoveUnknownUserIsNoop(t *testing.T) {
	s := NewStore()
	_, _ = s.Apply("m1", Group{Emoji: "👍", UserIDs: []string{"A"}})

	changed, err := s.Remove("m1", "👍", "Z")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, []string{"A"}, s.ForMessage("m1")[0].UserIDs)
}

func TestInvalidInputRejected(t *testing.T) {
	s := NewStore()

	_, err := s.Apply("", Group{Emoji: "👍", UserIDs: []string{"A"}})
	assert.ErrorIs(t, err, errors.ErrBadRequest)
	_, err = s.Apply("m1", Group{UserIDs: []string{"A"}})
	assert.ErrorIs(t, err, errors.ErrBadRequest)
	_, err = s.Apply("m1", Group{Emoji: "👍"})
	assert.ErrorIs(t, err, errors.ErrBadRequest)
	_, err = s.Remove("m1", "", "A")
	assert.ErrorIs(t, err, errors.ErrBadRequest)
	_, err = s.ApplyRecord(models.ReactionRecord{Emoji: "👍", UserID: "A"})
	assert.ErrorIs(t, err, errors.ErrBadRequest)

	assert.Equal(t, 0, s.Len())
}

func TestRemoveRecord(t *testing.T) {
	s := NewStore()
	_, _ = s.ApplyRecord(record("r1", "m1", "👍", "A"))
	_, _ = s.ApplyRecord(record("r2", "m1", "👍", "B"))

	msgID, ok := s.RemoveRecord("r1")
	assert.True(t, ok)
	assert.Equal(t, "m1", msgID)
	assert.Equal(t, []string{"B"}, s.ForMessage("m1")[0].UserIDs)

	_, ok = s.RemoveRecord("r1")
	assert.False(t, ok)
}

func TestSetAndClear(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.SetMessageReactions("m1", []Group{{Emoji: "👍", UserIDs: []string{"A"}}}))
	require.NoError(t, s.SetMessageReactions("m2", []Group{{Emoji: "🎉", UserIDs: []string{"B"}}}))

	s.ClearMessage("m1")
	assert.Empty(t, s.ForMessage("m1"))
	assert.Len(t, s.ForMessage("m2"), 1)

	s.ClearAll()
	assert.Equal(t, 0, s.Len())
}

func TestForMessageReturnsCopies(t *testing.T) {
	s := NewStore()
	_, _ = s.ApplyRecord(record("r1", "m1", "👍", "A"))

	groups := s.ForMessage("m1")
	groups[0].UserIDs[0] = "tampered"
	groups[0].RecordIDs["A"] = "tampered"

	again := s.ForMessage("m1")
	assert.Equal(t, "A", again[0].UserIDs[0])
	assert.Equal(t, "r1", again[0].RecordIDs["A"])
}

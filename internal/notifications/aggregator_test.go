package notifications

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/chattie/chattie/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id, channel string, mentions ...string) models.Message {
	return models.Message{
		Document:  models.Document{ID: id},
		ChannelID: channel,
		Content:   "hello " + id,
		Mentions:  mentions,
	}
}

func TestUnreadCounts(t *testing.T) {
	a := NewAggregator(0)

	a.OnMessageCreated(msg("m1", "general"))
	a.OnMessageCreated(msg("m2", "general"))
	a.OnMessageCreated(msg("m3", "random"))

	assert.Equal(t, 2, a.Unread("general"))
	assert.Equal(t, 3, a.TotalUnread())
	assert.Equal(t, []string{"general", "random"}, a.UnreadChannels())

	a.MarkChannelAsRead("general")
	assert.Equal(t, 0, a.Unread("general"))
	assert.Equal(t, 1, a.TotalUnread())
}

func TestActiveChannelNotCounted(t *testing.T) {
	a := NewAggregator(0)
	a.OnMessageCreated(msg("m1", "general"))

	a.SetActiveChannel("general")
	assert.Equal(t, 0, a.Unread("general"))

	a.OnMessageCreated(msg("m2", "general"))
	assert.Equal(t, 0, a.Unread("general"))
	assert.Equal(t, "general", a.ActiveChannel())
}

func TestMentionsNewestFirstAndBounded(t *testing.T) {
	a := NewAggregator(3)
	for i := 0; i < 5; i++ {
		a.OnMessageCreated(msg(fmt.Sprintf("m%d", i), "general", "u1"))
	}
	a.OnMessageCreated(msg("plain", "general"))

	mentions := a.Mentions()
	require.Len(t, mentions, 3)
	assert.Equal(t, "m4", mentions[0].ID)
	assert.Equal(t, "m2", mentions[2].ID)
}

func TestActivityIsBoundedAndFrozen(t *testing.T) {
	a := NewAggregator(DefaultLimit)

	for i := 0; i < 60; i++ {
		require.NoError(t, a.RecordActivity(ActivityReaction, "create", map[string]int{"n": i}))
	}

	feed := a.RecentActivity()
	require.Len(t, feed, DefaultLimit)
	assert.Equal(t, ActivityReaction, feed[0].Kind)
	assert.JSONEq(t, `{"n":59}`, string(feed[0].Payload))

	orig := msg("m1", "general")
	require.NoError(t, a.RecordActivity(ActivityMessage, "create", orig))
	orig.Content = "edited later"

	var stored models.Message
	require.NoError(t, json.Unmarshal(a.RecentActivity()[0].Payload, &stored))
	assert.Equal(t, "hello m1", stored.Content)
}

func TestRecordActivityRejectsUnencodable(t *testing.T) {
	a := NewAggregator(0)
	assert.Error(t, a.RecordActivity(ActivityChannel, "create", make(chan int)))
	assert.Empty(t, a.RecentActivity())
}

func TestSnapshotAndReset(t *testing.T) {
	a := NewAggregator(0)
	changes := 0
	a.Subscribe(func() { changes++ })

	a.OnMessageCreated(msg("m1", "general", "u1"))
	_ = a.RecordActivity(ActivityChannel, "create", map[string]string{"id": "c1"})

	snap := a.Snapshot()
	assert.Equal(t, 1, snap.TotalUnread)
	assert.Len(t, snap.Mentions, 1)
	assert.Len(t, snap.RecentActivity, 1)

	snap.Unread["general"] = 99
	assert.Equal(t, 1, a.Unread("general"))

	a.Reset()
	assert.Equal(t, 0, a.TotalUnread())
	assert.Empty(t, a.Mentions())
	assert.Equal(t, 3, changes)
}

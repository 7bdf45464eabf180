package session

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/chattie/chattie/internal/backend"
	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/common/pagination"
	"github.com/chattie/chattie/internal/messages"
	"github.com/chattie/chattie/internal/models"
	"github.com/chattie/chattie/internal/reactions"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LocalIDPrefix marks documents that exist only locally until the backend
// confirms them.
const LocalIDPrefix = "local-"

// reactionQueryBatch bounds the ids sent in one reactions list query.
const reactionQueryBatch = 100

func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// optimistic applies a local change, then asks the backend to confirm it.
// When confirmation fails the compensating undo runs and the error is
// returned to the caller.
func (s *Session) optimistic(ctx context.Context, action string, apply, undo func(), confirm func(context.Context) error) error {
	apply()
	if err := confirm(ctx); err != nil {
		undo()
		s.logger.Warn("reverted optimistic change",
			zap.String("action", action),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Session) requireWorkspace() (string, error) {
	id := s.stores.Workspaces.CurrentID()
	if id == "" {
		return "", errors.BadRequest("no workspace is open")
	}
	return id, nil
}

// OpenChannel marks channelID as the viewed channel and loads the newest
// pages of its history concurrently, merging them into the message store
// along with their reactions.
func (s *Session) OpenChannel(ctx context.Context, channelID string) (pagination.PageInfo, error) {
	if _, ok := s.stores.Channels.Get(channelID); !ok {
		return pagination.PageInfo{}, errors.NotFound("channel " + channelID + " not found")
	}
	s.stores.Notifications.SetActiveChannel(channelID)

	pages := pagination.Pages(s.cfg.HistoryPages, backend.MessagePageSize)
	results := make([]backend.MessagePage, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range pages {
		g.Go(func() error {
			page, err := s.backend.LoadMessages(gctx, channelID, p.Offset)
			if err != nil {
				return err
			}
			results[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return pagination.PageInfo{}, err
	}

	var loaded []models.Message
	total := 0
	for _, page := range results {
		loaded = append(loaded, page.Messages...)
		total = max(total, page.Total)
	}
	s.stores.Messages.InitializeForWorkspace(loaded, false)

	if err := s.loadReactions(ctx, loaded); err != nil {
		s.logger.Warn("failed to load reactions",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
	}

	return pagination.NewPageInfo(0, len(loaded), total), nil
}

// loadReactions seeds the reaction store for msgs. Per-user records win;
// messages without any fall back to their embedded list.
func (s *Session) loadReactions(ctx context.Context, msgs []models.Message) error {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}

	var records []models.ReactionRecord
	for batch := range slices.Chunk(ids, reactionQueryBatch) {
		got, err := s.backend.ListReactions(ctx, batch)
		if err != nil {
			return err
		}
		records = append(records, got...)
	}

	grouped, err := reactions.Standardize(records)
	if err != nil {
		s.logger.Debug("skipped invalid reaction records", zap.Error(err))
	}
	for _, m := range msgs {
		groups, ok := grouped[m.ID]
		if !ok {
			groups = reactions.FromEmbedded(m.Reactions)
		}
		if len(groups) == 0 {
			continue
		}
		if err := s.stores.Reactions.SetMessageReactions(m.ID, groups); err != nil {
			return err
		}
	}
	return nil
}

// SendMessage shows the message immediately under a local id and swaps in
// the stored copy once the backend accepts it.
func (s *Session) SendMessage(ctx context.Context, channelID, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, errors.BadRequest("message content is empty")
	}
	workspaceID, err := s.requireWorkspace()
	if err != nil {
		return models.Message{}, err
	}

	now := time.Now().UTC()
	local := models.Message{
		Document:    models.Document{ID: LocalIDPrefix + uuid.NewString(), CreatedAt: now, UpdatedAt: now},
		ChannelID:   channelID,
		WorkspaceID: workspaceID,
		SenderType:  models.SenderUser,
		SenderID:    s.cfg.UserID,
		SenderName:  s.UserName(),
		Content:     content,
	}

	var stored models.Message
	err = s.optimistic(ctx, "send_message",
		func() { s.stores.Messages.AddMessage(local) },
		func() { s.stores.Messages.DeleteMessage(local.ID) },
		func(ctx context.Context) error {
			var err error
			stored, err = s.backend.CreateMessage(ctx, content, channelID, workspaceID)
			return err
		},
	)
	if err != nil {
		return models.Message{}, err
	}

	s.stores.Messages.DeleteMessage(local.ID)
	s.stores.Messages.AddMessage(stored)
	return stored, nil
}

func (s *Session) DeleteMessage(ctx context.Context, messageID string) error {
	msg, ok := s.stores.Messages.Get(messageID)
	if !ok {
		return errors.NotFound("message " + messageID + " not found")
	}
	groups := s.stores.Reactions.ForMessage(messageID)

	return s.optimistic(ctx, "delete_message",
		func() {
			s.stores.Messages.DeleteMessage(messageID)
			s.stores.Reactions.ClearMessage(messageID)
		},
		func() {
			s.stores.Messages.AddMessage(msg)
			if len(groups) > 0 {
				_ = s.stores.Reactions.SetMessageReactions(messageID, groups)
			}
		},
		func(ctx context.Context) error {
			return s.backend.DeleteMessage(ctx, messageID)
		},
	)
}

// ToggleReaction adds the viewer's emoji reaction to a message, or removes
// it when already present. It reports whether the reaction is now set.
func (s *Session) ToggleReaction(ctx context.Context, messageID, emoji string) (bool, error) {
	if emoji == "" {
		return false, errors.BadRequest("emoji is required")
	}
	msg, ok := s.stores.Messages.Get(messageID)
	if !ok {
		return false, errors.NotFound("message " + messageID + " not found")
	}
	user := s.cfg.UserID

	add := func(recordID string) {
		g := reactions.Group{Emoji: emoji, UserIDs: []string{user}}
		if recordID != "" {
			g.RecordIDs = map[string]string{user: recordID}
		}
		_, _ = s.stores.Reactions.Apply(messageID, g)
		_, _ = s.stores.Messages.UpdateReaction(messageID, emoji, user)
	}
	remove := func() {
		_, _ = s.stores.Reactions.Remove(messageID, emoji, user)
		_, _ = s.stores.Messages.RemoveReaction(messageID, emoji, user)
	}

	if s.stores.Reactions.HasReacted(messageID, emoji, user) {
		recordID, hasRecord := s.stores.Reactions.RecordID(messageID, emoji, user)
		err := s.optimistic(ctx, "remove_reaction", remove, func() { add(recordID) },
			func(ctx context.Context) error {
				if hasRecord {
					return s.backend.DeleteReaction(ctx, recordID)
				}
				return s.backend.ToggleMessageReaction(ctx, messageID, emoji, msg.ChannelID, true)
			},
		)
		return err != nil, err
	}

	var record models.ReactionRecord
	err := s.optimistic(ctx, "add_reaction", func() { add("") }, remove,
		func(ctx context.Context) error {
			var err error
			record, err = s.backend.CreateReaction(ctx, messageID, emoji, msg.ChannelID)
			return err
		},
	)
	if err != nil {
		return false, err
	}
	if record.ID != "" {
		if _, err := s.stores.Reactions.ApplyRecord(record); err != nil {
			s.logger.Debug("created reaction record is incomplete", zap.Error(err))
		}
	}
	return true, nil
}

// CreateChannel creates a channel in the open workspace. The channel shows
// up locally through its create event.
func (s *Session) CreateChannel(ctx context.Context, name string, typ models.ChannelType) (models.Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Channel{}, errors.BadRequest("channel name is required")
	}
	if typ != models.ChannelPublic && typ != models.ChannelPrivate {
		return models.Channel{}, errors.BadRequest("channel type must be public or private")
	}
	workspaceID, err := s.requireWorkspace()
	if err != nil {
		return models.Channel{}, err
	}
	return s.backend.CreateChannel(ctx, name, typ, workspaceID)
}

// CreateDirectMessage opens (or reuses) the DM channel with otherUserID and
// makes it available locally right away.
func (s *Session) CreateDirectMessage(ctx context.Context, otherUserID string) (models.Channel, error) {
	if otherUserID == "" || otherUserID == s.cfg.UserID {
		return models.Channel{}, errors.BadRequest("a different user is required")
	}
	ch, err := s.backend.CreateDirectMessage(ctx, otherUserID)
	if err != nil {
		return models.Channel{}, err
	}
	if ch.WorkspaceID == "" || ch.WorkspaceID == s.stores.Channels.WorkspaceID() {
		s.stores.Channels.AddChannel(ch)
	}
	return ch, nil
}

// StartThread opens a thread on messageID with content as its first reply.
func (s *Session) StartThread(ctx context.Context, messageID, content string) (backend.ThreadResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return backend.ThreadResult{}, errors.BadRequest("thread reply is empty")
	}
	if _, ok := s.stores.Messages.Get(messageID); !ok {
		return backend.ThreadResult{}, errors.NotFound("message " + messageID + " not found")
	}
	workspaceID, err := s.requireWorkspace()
	if err != nil {
		return backend.ThreadResult{}, err
	}

	res, err := s.backend.StartThread(ctx, messageID, workspaceID, content)
	if err != nil {
		return backend.ThreadResult{}, err
	}
	s.stores.Channels.AddChannel(res.Channel)
	s.stores.Messages.AddMessage(res.Message)

	threadID := res.Channel.ID
	s.stores.Messages.UpdateMessage(messageID, messages.Patch{ThreadID: &threadID})
	return res, nil
}

func (s *Session) SetStatus(ctx context.Context, base models.Status, custom *models.CustomStatus) error {
	return s.presence.UpdateStatus(ctx, base, custom)
}

func (s *Session) MarkChannelAsRead(channelID string) {
	s.stores.Notifications.MarkChannelAsRead(channelID)
}

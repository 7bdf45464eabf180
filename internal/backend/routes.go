package backend

import (
	"context"
	"net/http"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/models"
)

// MessagePageSize is the page size of the message load route.
const MessagePageSize = 50

type MessagePage struct {
	Messages []models.Message `json:"messages"`
	Total    int              `json:"total"`
}

type ThreadResult struct {
	Channel models.Channel `json:"channel"`
	Message models.Message `json:"message"`
}

type ReactionToggle struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

func (c *Client) post(ctx context.Context, path, limit string, body, out any) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		url:    c.app(path),
		body:   body,
		route:  "app" + path,
		limit:  limit,
	}, out)
}

func (c *Client) delete(ctx context.Context, path string, body any) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		url:    c.app(path),
		body:   body,
		route:  "app" + path,
	}, nil)
}

// LoadMessages fetches one page of a channel's history, newest first.
func (c *Client) LoadMessages(ctx context.Context, channelID string, offset int) (MessagePage, error) {
	if channelID == "" {
		return MessagePage{}, errors.BadRequest("channel id is required")
	}
	var page MessagePage
	err := c.post(ctx, "/message/load", "", map[string]any{
		"channelId": channelID,
		"offset":    offset,
	}, &page)
	return page, err
}

func (c *Client) CreateMessage(ctx context.Context, content, channelID, workspaceID string) (models.Message, error) {
	var out struct {
		Message models.Message `json:"message"`
	}
	err := c.post(ctx, "/message/create", "message", map[string]string{
		"content":     content,
		"channelId":   channelID,
		"workspaceId": workspaceID,
	}, &out)
	return out.Message, err
}

// ToggleMessageReaction flips the viewer's reaction inside the message
// document's embedded reaction list.
func (c *Client) ToggleMessageReaction(ctx context.Context, messageID, emoji, channelID string, remove bool) error {
	var out ReactionToggle
	return c.post(ctx, "/message/update", "message", map[string]any{
		"messageId": messageID,
		"emoji":     emoji,
		"channelId": channelID,
		"remove":    remove,
	}, &out)
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.delete(ctx, "/message/update", map[string]string{"messageId": messageID})
}

func (c *Client) CreateReaction(ctx context.Context, messageID, emoji, channelID string) (models.ReactionRecord, error) {
	var out struct {
		Reaction models.ReactionRecord `json:"reaction"`
	}
	err := c.post(ctx, "/reactions/create", "message", map[string]string{
		"messageId": messageID,
		"emoji":     emoji,
		"channelId": channelID,
	}, &out)
	return out.Reaction, err
}

func (c *Client) DeleteReaction(ctx context.Context, reactionID string) error {
	return c.post(ctx, "/reactions/update", "message", map[string]string{"reactionId": reactionID}, nil)
}

func (c *Client) CreateChannel(ctx context.Context, name string, typ models.ChannelType, workspaceID string) (models.Channel, error) {
	var out struct {
		Channel models.Channel `json:"channel"`
	}
	err := c.post(ctx, "/channel/create", "", map[string]string{
		"name":         name,
		"type":         string(typ),
		"workspace_id": workspaceID,
	}, &out)
	return out.Channel, err
}

func (c *Client) UpdateChannel(ctx context.Context, channelID, name string, typ models.ChannelType) (models.Channel, error) {
	var out struct {
		Channel models.Channel `json:"channel"`
	}
	err := c.post(ctx, "/channel/update", "", map[string]string{
		"channelId": channelID,
		"name":      name,
		"type":      string(typ),
	}, &out)
	return out.Channel, err
}

func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	return c.delete(ctx, "/channel/update", map[string]string{"channelId": channelID})
}

// CreateDirectMessage returns the existing DM channel with otherUserID or
// creates one.
func (c *Client) CreateDirectMessage(ctx context.Context, otherUserID string) (models.Channel, error) {
	var out struct {
		Channel models.Channel `json:"channel"`
	}
	err := c.post(ctx, "/dm/create", "", map[string]string{"otherUserId": otherUserID}, &out)
	return out.Channel, err
}

func (c *Client) StartThread(ctx context.Context, messageID, workspaceID, content string) (ThreadResult, error) {
	var out ThreadResult
	err := c.post(ctx, "/thread/add", "message", map[string]string{
		"messageId":   messageID,
		"workspaceId": workspaceID,
		"content":     content,
	}, &out)
	return out, err
}

func (c *Client) GetUser(ctx context.Context, userID string) (models.User, error) {
	if userID == "" {
		return models.User{}, errors.BadRequest("user id is required")
	}
	var user models.User
	err := c.post(ctx, "/user", "", map[string]string{"userId": userID}, &user)
	return user, err
}

func (c *Client) GetMembers(ctx context.Context, memberIDs []string) ([]models.Member, error) {
	var out struct {
		Members []models.Member `json:"members"`
	}
	err := c.post(ctx, "/members", "", map[string]any{"memberIds": memberIDs}, &out)
	return out.Members, err
}

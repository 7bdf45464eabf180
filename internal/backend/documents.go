package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/models"
)

const (
	CollectionMessages   = "messages"
	CollectionReactions  = "reactions"
	CollectionChannels   = "channels"
	CollectionWorkspaces = "workspaces"
	CollectionPresence   = "presence"

	listLimit = 100
)

// Query is one list filter in the backend's JSON query syntax.
type Query struct {
	Method    string `json:"method"`
	Attribute string `json:"attribute,omitempty"`
	Values    []any  `json:"values,omitempty"`
}

func Equal(attribute string, values ...string) Query {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Query{Method: "equal", Attribute: attribute, Values: vs}
}

func OrderDesc(attribute string) Query {
	return Query{Method: "orderDesc", Attribute: attribute}
}

func OrderAsc(attribute string) Query {
	return Query{Method: "orderAsc", Attribute: attribute}
}

func Limit(n int) Query {
	return Query{Method: "limit", Values: []any{n}}
}

func Offset(n int) Query {
	return Query{Method: "offset", Values: []any{n}}
}

func (q Query) String() string {
	b, _ := json.Marshal(q)
	return string(b)
}

type DocumentList[T any] struct {
	Total     int `json:"total"`
	Documents []T `json:"documents"`
}

func (c *Client) documentsURL(collection string) string {
	return c.baas("/databases/" + url.PathEscape(c.database) + "/collections/" + url.PathEscape(collection) + "/documents")
}

func (c *Client) documentURL(collection, id string) string {
	return c.documentsURL(collection) + "/" + url.PathEscape(id)
}

// ListDocuments runs a filtered list against collection.
func ListDocuments[T any](ctx context.Context, c *Client, collection string, queries ...Query) (DocumentList[T], error) {
	q := url.Values{}
	for _, query := range queries {
		q.Add("queries[]", query.String())
	}

	var out DocumentList[T]
	err := c.do(ctx, request{
		method: http.MethodGet,
		url:    c.documentsURL(collection),
		query:  q,
		route:  "documents.list." + collection,
	}, &out)
	return out, err
}

func (c *Client) GetDocument(ctx context.Context, collection, documentID string, out any) error {
	if documentID == "" {
		return errors.BadRequest("document id is required")
	}
	return c.do(ctx, request{
		method: http.MethodGet,
		url:    c.documentURL(collection, documentID),
		route:  "documents.get." + collection,
	}, out)
}

func (c *Client) CreateDocument(ctx context.Context, collection, documentID string, data, out any) error {
	if documentID == "" {
		return errors.BadRequest("document id is required")
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		url:    c.documentsURL(collection),
		body: map[string]any{
			"documentId": documentID,
			"data":       data,
		},
		route: "documents.create." + collection,
		limit: collection,
	}, out)
}

func (c *Client) UpdateDocument(ctx context.Context, collection, documentID string, data, out any) error {
	if documentID == "" {
		return errors.BadRequest("document id is required")
	}
	return c.do(ctx, request{
		method: http.MethodPatch,
		url:    c.documentURL(collection, documentID),
		body:   map[string]any{"data": data},
		route:  "documents.update." + collection,
		limit:  collection,
	}, out)
}

func (c *Client) DeleteDocument(ctx context.Context, collection, documentID string) error {
	if documentID == "" {
		return errors.BadRequest("document id is required")
	}
	return c.do(ctx, request{
		method: http.MethodDelete,
		url:    c.documentURL(collection, documentID),
		route:  "documents.delete." + collection,
	}, nil)
}

// ListChannels returns every channel of a workspace the user can read.
func (c *Client) ListChannels(ctx context.Context, workspaceID string) ([]models.Channel, error) {
	list, err := ListDocuments[models.Channel](ctx, c, CollectionChannels,
		Equal("workspace_id", workspaceID),
		Limit(listLimit),
	)
	if err != nil {
		return nil, err
	}
	return list.Documents, nil
}

// ListWorkspaces returns the workspaces the user's labels grant access to.
func (c *Client) ListWorkspaces(ctx context.Context) ([]models.Workspace, error) {
	list, err := ListDocuments[models.Workspace](ctx, c, CollectionWorkspaces, Limit(listLimit))
	if err != nil {
		return nil, err
	}
	return list.Documents, nil
}

func (c *Client) ListReactions(ctx context.Context, messageIDs []string) ([]models.ReactionRecord, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	list, err := ListDocuments[models.ReactionRecord](ctx, c, CollectionReactions,
		Equal("message_id", messageIDs...),
		Limit(listLimit),
	)
	if err != nil {
		return nil, err
	}
	return list.Documents, nil
}

func (c *Client) ListPresence(ctx context.Context, userIDs []string) ([]models.Presence, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	list, err := ListDocuments[models.Presence](ctx, c, CollectionPresence,
		Equal("userId", userIDs...),
		Limit(listLimit),
	)
	if err != nil {
		return nil, err
	}
	return list.Documents, nil
}

// AvatarURL is the public view URL of an uploaded avatar file.
func (c *Client) AvatarURL(fileID string) string {
	if fileID == "" {
		return ""
	}
	q := url.Values{}
	q.Set("project", c.project)
	return c.baas("/storage/buckets/"+url.PathEscape(c.avatarBucket)+"/files/"+url.PathEscape(fileID)+"/view") + "?" + q.Encode()
}

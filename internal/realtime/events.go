package realtime

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/models"
	"google.golang.org/grpc/codes"
)

type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

type Collection string

const (
	CollectionMessages   Collection = "messages"
	CollectionReactions  Collection = "reactions"
	CollectionChannels   Collection = "channels"
	CollectionWorkspaces Collection = "workspaces"
	CollectionPresence   Collection = "presence"
)

// Collections is the fixed set every stream subscribes to.
var Collections = []Collection{
	CollectionMessages,
	CollectionReactions,
	CollectionChannels,
	CollectionWorkspaces,
	CollectionPresence,
}

var (
	ErrUnknownKind       = stderrors.New("unknown event kind")
	ErrUnknownCollection = stderrors.New("unknown event collection")
)

// RawEvent is a change notification as delivered by the stream.
type RawEvent struct {
	Events    []string        `json:"events"`
	Channels  []string        `json:"channels"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type Event interface {
	Collection() Collection
	Action() Kind
}

type Meta struct {
	Kind Kind
	Name string
}

func (m Meta) Action() Kind { return m.Kind }

type MessageEvent struct {
	Meta
	Message models.Message
}

func (MessageEvent) Collection() Collection { return CollectionMessages }

type ReactionEvent struct {
	Meta
	Record models.ReactionRecord
}

func (ReactionEvent) Collection() Collection { return CollectionReactions }

type ChannelEvent struct {
	Meta
	Channel models.Channel
}

func (ChannelEvent) Collection() Collection { return CollectionChannels }

type WorkspaceEvent struct {
	Meta
	Workspace models.Workspace
}

func (WorkspaceEvent) Collection() Collection { return CollectionWorkspaces }

type PresenceEvent struct {
	Meta
	Presence models.Presence
}

func (PresenceEvent) Collection() Collection { return CollectionPresence }

// Classify extracts the collection and kind from the first event name, e.g.
// "databases.main.collections.messages.documents.m1.create".
func Classify(raw RawEvent) (Collection, Kind, error) {
	if len(raw.Events) == 0 {
		return "", "", errors.Malformed("event has no names")
	}
	segments := strings.Split(raw.Events[0], ".")
	if len(segments) < 4 {
		return "", "", errors.Malformed(fmt.Sprintf("event name %q is too short", raw.Events[0]))
	}

	collection := Collection(segments[3])
	kind := Kind(segments[len(segments)-1])
	switch kind {
	case KindCreate, KindUpdate, KindDelete:
	default:
		return collection, kind, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return collection, kind, nil
}

// ParseEvent decodes and validates raw into one of the typed events. Nothing
// is returned for a payload that fails validation.
func ParseEvent(raw RawEvent) (Event, error) {
	collection, kind, err := Classify(raw)
	if err != nil {
		return nil, err
	}
	meta := Meta{Kind: kind, Name: raw.Events[0]}

	switch collection {
	case CollectionMessages:
		var m models.Message
		if err := decode(raw.Payload, &m); err != nil {
			return nil, err
		}
		if m.ID == "" {
			return nil, errors.Malformed("message event without id")
		}
		if kind == KindCreate && m.ChannelID == "" {
			return nil, errors.Malformed("message event without channel")
		}
		return MessageEvent{Meta: meta, Message: m}, nil

	case CollectionReactions:
		var r models.ReactionRecord
		if err := decode(raw.Payload, &r); err != nil {
			return nil, err
		}
		if r.MessageID == "" || r.Emoji == "" {
			return nil, errors.Malformed("reaction event without message or emoji")
		}
		if kind != KindDelete && r.UserID == "" && len(r.UserIDs) == 0 {
			return nil, errors.Malformed("reaction event without user")
		}
		return ReactionEvent{Meta: meta, Record: r}, nil

	case CollectionChannels:
		var c models.Channel
		if err := decode(raw.Payload, &c); err != nil {
			return nil, err
		}
		if c.ID == "" {
			return nil, errors.Malformed("channel event without id")
		}
		return ChannelEvent{Meta: meta, Channel: c}, nil

	case CollectionWorkspaces:
		var w models.Workspace
		if err := decode(raw.Payload, &w); err != nil {
			return nil, err
		}
		if w.ID == "" {
			return nil, errors.Malformed("workspace event without id")
		}
		return WorkspaceEvent{Meta: meta, Workspace: w}, nil

	case CollectionPresence:
		var p models.Presence
		if err := decode(raw.Payload, &p); err != nil {
			return nil, err
		}
		if p.UserID == "" {
			return nil, errors.Malformed("presence event without user")
		}
		if kind != KindDelete && !p.BaseStatus.Valid() {
			return nil, errors.Malformed(fmt.Sprintf("presence event with status %q", p.BaseStatus))
		}
		return PresenceEvent{Meta: meta, Presence: p}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
}

func decode(payload json.RawMessage, dest any) error {
	if len(payload) == 0 {
		return errors.Malformed("event without payload")
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return errors.NewAppError(codes.InvalidArgument, "undecodable event payload", fmt.Errorf("%w: %w", errors.ErrMalformed, err))
	}
	return nil
}

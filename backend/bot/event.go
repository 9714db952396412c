package bot

import (
	"context"

	"github.com/mivchk/splus-bot/backend/model"
	"github.com/mivchk/splus-bot/backend/store"
)

type EventKind int

const (
	EventText EventKind = iota
	EventButton
	EventCommand
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventButton:
		return "button"
	case EventCommand:
		return "command"
	}
	return "unknown"
}

// Event is one inbound interaction. For commands Text holds the command
// name; for button presses Data holds the option payload and MessageID the
// message that carried the menu.
type Event struct {
	Kind      EventKind
	From      model.Identity
	Text      string
	Data      string
	MessageID string
}

type RenderKind int

const (
	// RenderSend posts a new message with optional inline options.
	RenderSend RenderKind = iota
	// RenderEdit replaces the text and options of the event's message.
	RenderEdit
	// RenderReplies posts a new message with persistent quick replies.
	RenderReplies
)

// Render is the outbound effect of handling one event.
type Render struct {
	Kind         RenderKind
	Text         string
	Options      []model.Option
	QuickReplies []string
	// DeleteSource removes the event's message before sending.
	DeleteSource bool
}

// Transport delivers renders to a user's chat.
type Transport interface {
	Send(ctx context.Context, userID int64, text string, options []model.Option) (string, error)
	Edit(ctx context.Context, userID int64, messageID, text string, options []model.Option) error
	Delete(ctx context.Context, userID int64, messageID string) error
	SendWithReplies(ctx context.Context, userID int64, text string, replies []string) (string, error)
}

// Members is the member repository used by the dispatcher.
type Members interface {
	Member(ctx context.Context, userID int64) (model.Member, error)
	CreateMember(ctx context.Context, m model.Member) error
	SetFlag(ctx context.Context, userID int64, flag store.Flag, value bool) error
	SetHandle(ctx context.Context, userID int64, handle string) error
	DeleteMember(ctx context.Context, userID int64) error
	RandomPeer(ctx context.Context, f store.PeerFilter) (model.Member, error)
}

// Reference is the read-only city and activity catalog.
type Reference interface {
	Cities(ctx context.Context) ([]model.City, error)
	Activities(ctx context.Context) ([]model.Activity, error)
	City(ctx context.Context, id int) (model.City, error)
	Activity(ctx context.Context, id int) (model.Activity, error)
}

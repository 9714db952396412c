package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mivchk/splus-bot/backend/session"
	"github.com/mivchk/splus-bot/backend/store"
)

const (
	CmdStart    = "start"
	CmdCancel   = "cancel"
	CmdMeetings = "meetings"
	CmdContacts = "contacts"
	CmdDelete   = "delete"
	CmdProfile  = "profile"
	CmdHelp     = "help"
)

// Commands lists every command name the dispatcher understands.
func Commands() []string {
	return []string{CmdStart, CmdCancel, CmdMeetings, CmdContacts, CmdDelete, CmdProfile, CmdHelp}
}

// commandName strips the leading slash and any "@bot" suffix.
func commandName(text string) string {
	name := strings.TrimPrefix(strings.TrimSpace(text), "/")
	if i := strings.IndexAny(name, "@ "); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

func (d *Dispatcher) command(ctx context.Context, ev Event, s session.Session) (Render, error) {
	name := commandName(ev.Text)
	switch name {
	case CmdCancel:
		return d.cancel(ctx, s)
	case CmdStart:
		return d.start(ctx, ev)
	}

	if s.Active() {
		return Render{}, rejected("flow_active")
	}
	switch name {
	case CmdMeetings:
		return d.toggleMeetings(ctx, ev)
	case CmdContacts:
		return d.toggleContacts(ctx, ev)
	case CmdDelete:
		return d.deleteProfile(ctx, ev)
	case CmdProfile:
		return d.profile(ctx, ev)
	}
	return Render{Kind: RenderSend, Text: msgIntro}, nil
}

// start begins registration for an unknown user. A registered user only
// gets a notice and a running flow is restarted from the first question.
func (d *Dispatcher) start(ctx context.Context, ev Event) (Render, error) {
	_, err := d.members.Member(ctx, ev.From.UserID)
	if err == nil {
		return Render{Kind: RenderReplies, Text: msgAlreadyRegistered, QuickReplies: quickReplies()}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return Render{}, storeError("member_lookup", err)
	}

	s := session.Session{UserID: ev.From.UserID, Step: session.StepAwaitingName, Answers: map[string]string{}}
	if err := d.sessions.Set(ctx, s); err != nil {
		return Render{}, storeError("session_set", err)
	}
	return Render{Kind: RenderSend, Text: msgWelcome}, nil
}

func (d *Dispatcher) cancel(ctx context.Context, s session.Session) (Render, error) {
	if !s.Active() {
		return Render{Kind: RenderSend, Text: msgNothingToCancel}, nil
	}
	if err := d.clearSession(ctx, s.UserID); err != nil {
		return Render{}, err
	}
	return Render{Kind: RenderSend, Text: msgCancelled}, nil
}

func (d *Dispatcher) toggleMeetings(ctx context.Context, ev Event) (Render, error) {
	m, err := d.registeredMember(ctx, ev.From.UserID)
	if err != nil {
		return Render{}, err
	}
	if err := d.setFlag(ctx, m.UserID, store.FlagMeetings, !m.Meetings); err != nil {
		return Render{}, err
	}
	if m.Meetings {
		return Render{Kind: RenderSend, Text: msgMeetingsOff}, nil
	}
	return Render{Kind: RenderSend, Text: msgMeetingsOn}, nil
}

// toggleContacts flips contact sharing. Turning it on requires a handle
// and refreshes the stored one.
func (d *Dispatcher) toggleContacts(ctx context.Context, ev Event) (Render, error) {
	m, err := d.registeredMember(ctx, ev.From.UserID)
	if err != nil {
		return Render{}, err
	}
	if m.Contacts {
		if err := d.setFlag(ctx, m.UserID, store.FlagContacts, false); err != nil {
			return Render{}, err
		}
		return Render{Kind: RenderSend, Text: msgContactsOff}, nil
	}

	if !ev.From.HasHandle() {
		return Render{}, newError(ErrorPreconditionUnmet, "handle_required", nil)
	}
	if ev.From.Handle != m.Handle {
		if err := d.members.SetHandle(ctx, m.UserID, ev.From.Handle); err != nil {
			return Render{}, mutationError("set_handle", err)
		}
	}
	if err := d.setFlag(ctx, m.UserID, store.FlagContacts, true); err != nil {
		return Render{}, err
	}
	return Render{Kind: RenderSend, Text: msgContactsOn}, nil
}

func (d *Dispatcher) deleteProfile(ctx context.Context, ev Event) (Render, error) {
	if err := d.members.DeleteMember(ctx, ev.From.UserID); err != nil {
		return Render{}, storeError("delete_member", err)
	}
	if err := d.clearSession(ctx, ev.From.UserID); err != nil {
		return Render{}, err
	}
	d.log.Info().Int64("user_id", ev.From.UserID).Msg("member deleted")
	return Render{Kind: RenderReplies, Text: msgDeleted}, nil
}

func (d *Dispatcher) profile(ctx context.Context, ev Event) (Render, error) {
	m, err := d.registeredMember(ctx, ev.From.UserID)
	if err != nil {
		return Render{}, err
	}

	city, activity := msgUnknownLabel, msgUnknownLabel
	if c, err := d.ref.City(ctx, m.CityID); err == nil {
		city = c.Name
	} else if !errors.Is(err, store.ErrNotFound) {
		return Render{}, storeError("city_lookup", err)
	}
	if a, err := d.ref.Activity(ctx, m.ActivityID); err == nil {
		activity = a.Name
	} else if !errors.Is(err, store.ErrNotFound) {
		return Render{}, storeError("activity_lookup", err)
	}
	handle := msgNoHandle
	if m.Handle != "" {
		handle = "@" + m.Handle
	}

	text := fmt.Sprintf(msgProfile, m.Name, city, activity, m.Level,
		onOff(m.Meetings), onOff(m.Mentor), onOff(m.Contacts), handle)
	return Render{Kind: RenderSend, Text: text}, nil
}

func (d *Dispatcher) setFlag(ctx context.Context, userID int64, flag store.Flag, value bool) error {
	if err := d.members.SetFlag(ctx, userID, flag, value); err != nil {
		return mutationError("set_flag", err)
	}
	return nil
}

// mutationError maps a row that vanished between read and write to
// ErrorNotRegistered.
func mutationError(reason string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return newError(ErrorNotRegistered, "not_registered", nil)
	}
	return storeError(reason, err)
}

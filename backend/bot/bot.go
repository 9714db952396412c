// Package bot turns inbound chat events into conversation state changes,
// member repository calls and outbound messages.
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mivchk/splus-bot/backend/session"
)

var tracer = otel.Tracer("github.com/mivchk/splus-bot/backend/bot")

// Deps bundles what the dispatcher talks to.
type Deps struct {
	Members   Members
	Reference Reference
	Sessions  session.Store
	Locker    *session.Locker
	Transport Transport
	Logger    zerolog.Logger
}

// Dispatcher routes events. Events of one user are handled strictly one
// at a time; different users proceed in parallel.
type Dispatcher struct {
	members   Members
	ref       Reference
	sessions  session.Store
	locker    *session.Locker
	transport Transport
	log       zerolog.Logger
}

func NewDispatcher(deps Deps) (*Dispatcher, error) {
	switch {
	case deps.Members == nil:
		return nil, errors.New("bot: members repository is required")
	case deps.Reference == nil:
		return nil, errors.New("bot: reference catalog is required")
	case deps.Sessions == nil:
		return nil, errors.New("bot: session store is required")
	case deps.Transport == nil:
		return nil, errors.New("bot: transport is required")
	}
	locker := deps.Locker
	if locker == nil {
		locker = session.NewLocker()
	}
	return &Dispatcher{
		members:   deps.Members,
		ref:       deps.Reference,
		sessions:  deps.Sessions,
		locker:    locker,
		transport: deps.Transport,
		log:       deps.Logger.With().Str("component", "bot").Logger(),
	}, nil
}

// Handle processes one event to completion. User-visible rejections are
// answered in the chat and reported as nil; store and transport failures
// are returned as *Error.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	ctx, span := tracer.Start(ctx, "bot.Handle", trace.WithAttributes(
		attribute.Int64("user.id", ev.From.UserID),
		attribute.String("event.kind", ev.Kind.String()),
	))
	defer span.End()

	err := d.handle(ctx, ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.log.Error().Err(err).
			Int64("user_id", ev.From.UserID).
			Str("kind", ev.Kind.String()).
			Msg("handle event")
	}
	return err
}

func (d *Dispatcher) handle(ctx context.Context, ev Event) error {
	unlock, err := d.locker.Lock(ctx, ev.From.UserID)
	if err != nil {
		return err
	}
	defer unlock()

	s, err := d.sessions.Get(ctx, ev.From.UserID)
	if err != nil {
		return storeError("session_get", err)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("session.step", s.Step.String()))

	out, err := d.route(ctx, ev, s)
	if err != nil {
		var be *Error
		if !errors.As(err, &be) || !be.UserVisible() {
			return err
		}
		d.log.Debug().
			Int64("user_id", ev.From.UserID).
			Str("code", string(be.Code)).
			Str("reason", be.Reason).
			Msg("rejected")
		out = Render{Kind: RenderSend, Text: userMessage(be.Reason)}
	}
	return d.deliver(ctx, ev, out)
}

func (d *Dispatcher) route(ctx context.Context, ev Event, s session.Session) (Render, error) {
	switch {
	case ev.Kind == EventCommand:
		return d.command(ctx, ev, s)
	case s.Active():
		return d.step(ctx, ev, s)
	case ev.Kind == EventButton:
		return Render{Kind: RenderSend, Text: msgMenuExpired}, nil
	case isMatchTrigger(ev.Text):
		return d.startMatch(ctx, ev)
	}
	return Render{Kind: RenderSend, Text: msgIntro}, nil
}

// step feeds the event to the pending question. A rejected answer leaves
// the session untouched.
func (d *Dispatcher) step(ctx context.Context, ev Event, s session.Session) (Render, error) {
	t, ok := flow[s.Step]
	if !ok {
		if err := d.clearSession(ctx, s.UserID); err != nil {
			return Render{}, err
		}
		return Render{}, fmt.Errorf("bot: no transition from step %s", s.Step)
	}

	value, err := t.accept(ctx, d, ev)
	if err != nil {
		return Render{}, err
	}

	next := s.Clone()
	if next.Answers == nil {
		next.Answers = map[string]string{}
	}
	next.Answers[t.field] = value
	next.Step = t.next

	d.log.Debug().
		Int64("user_id", s.UserID).
		Str("from", s.Step.String()).
		Str("to", t.next.String()).
		Msg("transition")

	if t.next == session.StepNone {
		return t.finish(ctx, d, ev, next)
	}
	out, err := t.prompt(ctx, d, next)
	if err != nil {
		return Render{}, err
	}
	if err := d.sessions.Set(ctx, next); err != nil {
		return Render{}, storeError("session_set", err)
	}
	return out, nil
}

func (d *Dispatcher) clearSession(ctx context.Context, userID int64) error {
	if err := d.sessions.Clear(ctx, userID); err != nil {
		return storeError("session_clear", err)
	}
	return nil
}

// deliver applies a render. Edits fall back to a new message when the
// event has no source message.
func (d *Dispatcher) deliver(ctx context.Context, ev Event, out Render) error {
	uid := ev.From.UserID
	if out.DeleteSource && ev.MessageID != "" {
		if err := d.transport.Delete(ctx, uid, ev.MessageID); err != nil {
			d.log.Warn().Err(err).Int64("user_id", uid).Msg("delete source message")
		}
	}

	var err error
	switch {
	case out.Kind == RenderEdit && ev.MessageID != "" && !out.DeleteSource:
		err = d.transport.Edit(ctx, uid, ev.MessageID, out.Text, out.Options)
	case out.Kind == RenderReplies:
		_, err = d.transport.SendWithReplies(ctx, uid, out.Text, out.QuickReplies)
	default:
		_, err = d.transport.Send(ctx, uid, out.Text, out.Options)
	}
	if err != nil {
		return newError(ErrorTransportFailed, "deliver", err)
	}
	return nil
}

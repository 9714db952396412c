package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mivchk/splus-bot/backend/model"
	"github.com/mivchk/splus-bot/backend/session"
	"github.com/mivchk/splus-bot/backend/store"
)

// Answer keys stored in session.Session.Answers.
const (
	fieldName     = "name"
	fieldCity     = "city"
	fieldActivity = "activity"
	fieldMeetings = "meetings"
	fieldMentor   = "mentor"
	fieldContacts = "contacts"
)

// Button payloads of yes/no menus.
const (
	tokenYes = "yes"
	tokenNo  = "no"
)

// transition describes how one step consumes an event. accept validates
// the event and returns the raw answer stored under field. When next is
// StepNone the flow ends with finish, otherwise prompt asks the next
// question.
type transition struct {
	field  string
	accept func(ctx context.Context, d *Dispatcher, ev Event) (string, error)
	next   session.Step
	prompt func(ctx context.Context, d *Dispatcher, s session.Session) (Render, error)
	finish func(ctx context.Context, d *Dispatcher, ev Event, s session.Session) (Render, error)
}

var flow = map[session.Step]transition{
	session.StepAwaitingName: {
		field: fieldName, accept: acceptName,
		next: session.StepAwaitingCity, prompt: promptCity,
	},
	session.StepAwaitingCity: {
		field: fieldCity, accept: acceptCity,
		next: session.StepAwaitingActivity, prompt: promptActivity,
	},
	session.StepAwaitingActivity: {
		field: fieldActivity, accept: acceptActivity,
		next: session.StepAwaitingMeetingOptIn, prompt: promptYesNo(msgAskMeetings),
	},
	session.StepAwaitingMeetingOptIn: {
		field: fieldMeetings, accept: acceptYesNo,
		next: session.StepAwaitingMentorOptIn, prompt: promptYesNo(msgAskMentor),
	},
	session.StepAwaitingMentorOptIn: {
		field: fieldMentor, accept: acceptYesNo,
		next: session.StepAwaitingContactsOptIn, prompt: promptYesNo(msgAskContacts),
	},
	session.StepAwaitingContactsOptIn: {
		field: fieldContacts, accept: acceptYesNo,
		next: session.StepNone, finish: commitRegistration,
	},
	session.StepAwaitingMatchCategory: {
		field: fieldActivity, accept: acceptActivity,
		next: session.StepNone, finish: finishMatch,
	},
}

func acceptName(_ context.Context, _ *Dispatcher, ev Event) (string, error) {
	if ev.Kind != EventText || strings.TrimSpace(ev.Text) == "" {
		return "", rejected("name_expected")
	}
	return ev.Text, nil
}

func acceptCity(ctx context.Context, d *Dispatcher, ev Event) (string, error) {
	id, err := buttonID(ev)
	if err != nil {
		return "", err
	}
	if _, err := d.ref.City(ctx, id); err != nil {
		return "", lookupError("city_lookup", err)
	}
	return strconv.Itoa(id), nil
}

func acceptActivity(ctx context.Context, d *Dispatcher, ev Event) (string, error) {
	id, err := buttonID(ev)
	if err != nil {
		return "", err
	}
	if _, err := d.ref.Activity(ctx, id); err != nil {
		return "", lookupError("activity_lookup", err)
	}
	return strconv.Itoa(id), nil
}

func acceptYesNo(_ context.Context, _ *Dispatcher, ev Event) (string, error) {
	if ev.Kind != EventButton {
		return "", rejected("option_expected")
	}
	switch ev.Data {
	case tokenYes:
		return strconv.FormatBool(true), nil
	case tokenNo:
		return strconv.FormatBool(false), nil
	}
	return "", rejected("unknown_option")
}

func buttonID(ev Event) (int, error) {
	if ev.Kind != EventButton {
		return 0, rejected("option_expected")
	}
	id, err := strconv.Atoi(ev.Data)
	if err != nil {
		return 0, rejected("unknown_option")
	}
	return id, nil
}

// lookupError turns a missing reference row into a rejection and anything
// else into a store failure.
func lookupError(reason string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return rejected("unknown_option")
	}
	return storeError(reason, err)
}

func promptCity(ctx context.Context, d *Dispatcher, s session.Session) (Render, error) {
	cities, err := d.ref.Cities(ctx)
	if err != nil {
		return Render{}, storeError("list_cities", err)
	}
	options := make([]model.Option, len(cities))
	for i, c := range cities {
		options[i] = model.Option{Label: c.Name, Data: strconv.Itoa(c.ID)}
	}
	return Render{Kind: RenderSend, Text: fmt.Sprintf(msgAskCity, s.Answers[fieldName]), Options: options}, nil
}

func promptActivity(ctx context.Context, d *Dispatcher, _ session.Session) (Render, error) {
	options, err := activityOptions(ctx, d)
	if err != nil {
		return Render{}, err
	}
	return Render{Kind: RenderEdit, Text: msgAskActivity, Options: options}, nil
}

func activityOptions(ctx context.Context, d *Dispatcher) ([]model.Option, error) {
	activities, err := d.ref.Activities(ctx)
	if err != nil {
		return nil, storeError("list_activities", err)
	}
	options := make([]model.Option, len(activities))
	for i, a := range activities {
		options[i] = model.Option{Label: a.Name, Data: strconv.Itoa(a.ID)}
	}
	return options, nil
}

func promptYesNo(text string) func(context.Context, *Dispatcher, session.Session) (Render, error) {
	return func(context.Context, *Dispatcher, session.Session) (Render, error) {
		return Render{Kind: RenderEdit, Text: text, Options: yesNoOptions()}, nil
	}
}

func yesNoOptions() []model.Option {
	return []model.Option{
		{Label: labelYes, Data: tokenYes},
		{Label: labelNo, Data: tokenNo},
	}
}

// registration is the typed form of a finished registration session.
type registration struct {
	name       string
	cityID     int
	activityID int
	meetings   bool
	mentor     bool
	contacts   bool
}

func parseRegistration(answers map[string]string) (registration, error) {
	var r registration
	var err error
	r.name = answers[fieldName]
	if r.cityID, err = strconv.Atoi(answers[fieldCity]); err != nil {
		return r, fmt.Errorf("bot: answer %s: %w", fieldCity, err)
	}
	if r.activityID, err = strconv.Atoi(answers[fieldActivity]); err != nil {
		return r, fmt.Errorf("bot: answer %s: %w", fieldActivity, err)
	}
	for _, f := range []struct {
		key string
		dst *bool
	}{
		{fieldMeetings, &r.meetings},
		{fieldMentor, &r.mentor},
		{fieldContacts, &r.contacts},
	} {
		if *f.dst, err = strconv.ParseBool(answers[f.key]); err != nil {
			return r, fmt.Errorf("bot: answer %s: %w", f.key, err)
		}
	}
	return r, nil
}

// commitRegistration persists the member built from the collected answers
// and ends the flow.
func commitRegistration(ctx context.Context, d *Dispatcher, ev Event, s session.Session) (Render, error) {
	r, err := parseRegistration(s.Answers)
	if err != nil {
		return Render{}, err
	}

	m := model.Member{
		UserID:     ev.From.UserID,
		Name:       r.name,
		CityID:     r.cityID,
		ActivityID: r.activityID,
		Meetings:   r.meetings,
		Mentor:     r.mentor,
		Contacts:   r.contacts && ev.From.HasHandle(),
		Handle:     ev.From.Handle,
		Level:      model.DefaultLevel,
	}

	err = d.members.CreateMember(ctx, m)
	if errors.Is(err, store.ErrAlreadyExists) {
		if err := d.clearSession(ctx, ev.From.UserID); err != nil {
			return Render{}, err
		}
		return Render{Kind: RenderReplies, Text: msgAlreadyRegistered, QuickReplies: quickReplies(), DeleteSource: true}, nil
	}
	if err != nil {
		return Render{}, storeError("create_member", err)
	}
	if err := d.clearSession(ctx, ev.From.UserID); err != nil {
		return Render{}, err
	}

	d.log.Info().
		Int64("user_id", m.UserID).
		Int("city_id", m.CityID).
		Int("activity_id", m.ActivityID).
		Bool("contacts", m.Contacts).
		Msg("member registered")

	text := fmt.Sprintf(msgRegistered, m.Level)
	if r.contacts && !m.Contacts {
		text += "\n\n" + msgContactsNoHandle
	}
	return Render{Kind: RenderReplies, Text: text, QuickReplies: quickReplies(), DeleteSource: true}, nil
}

func quickReplies() []string {
	return []string{matchButtonLabel}
}

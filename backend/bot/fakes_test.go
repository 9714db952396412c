package bot

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mivchk/splus-bot/backend/model"
	"github.com/mivchk/splus-bot/backend/session"
	"github.com/mivchk/splus-bot/backend/store"
)

type fakeMembers struct {
	mu      sync.Mutex
	members map[int64]model.Member
	creates int
	failAll error
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{members: make(map[int64]model.Member)}
}

func (f *fakeMembers) put(m model.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.Level == 0 {
		m.Level = model.DefaultLevel
	}
	f.members[m.UserID] = m
}

func (f *fakeMembers) get(id int64) (model.Member, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	return m, ok
}

func (f *fakeMembers) Member(_ context.Context, userID int64) (model.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return model.Member{}, f.failAll
	}
	m, ok := f.members[userID]
	if !ok {
		return model.Member{}, store.ErrNotFound
	}
	return m, nil
}

func (f *fakeMembers) CreateMember(_ context.Context, m model.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	f.creates++
	if _, ok := f.members[m.UserID]; ok {
		return store.ErrAlreadyExists
	}
	if m.Handle == "" {
		m.Contacts = false
	}
	m.Level = model.DefaultLevel
	f.members[m.UserID] = m
	return nil
}

func (f *fakeMembers) SetFlag(_ context.Context, userID int64, flag store.Flag, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	m, ok := f.members[userID]
	if !ok {
		return store.ErrNotFound
	}
	switch flag {
	case store.FlagMeetings:
		m.Meetings = value
	case store.FlagContacts:
		m.Contacts = value
	case store.FlagMentor:
		m.Mentor = value
	default:
		return fmt.Errorf("unknown flag %d", flag)
	}
	f.members[userID] = m
	return nil
}

func (f *fakeMembers) SetHandle(_ context.Context, userID int64, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[userID]
	if !ok {
		return store.ErrNotFound
	}
	m.Handle = handle
	f.members[userID] = m
	return nil
}

func (f *fakeMembers) DeleteMember(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	delete(f.members, userID)
	return nil
}

func (f *fakeMembers) RandomPeer(_ context.Context, pf store.PeerFilter) (model.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var eligible []model.Member
	for _, m := range f.members {
		if m.ActivityID == pf.ActivityID && m.CityID == pf.CityID && m.Contacts &&
			m.Handle != "" && m.UserID != pf.ExcludeUserID {
			eligible = append(eligible, m)
		}
	}
	if len(eligible) == 0 {
		return model.Member{}, store.ErrNotFound
	}
	return eligible[rand.IntN(len(eligible))], nil
}

type fakeReference struct {
	cities     []model.City
	activities []model.Activity
}

func newFakeReference() *fakeReference {
	return &fakeReference{
		cities:     []model.City{{ID: 1, Name: "Moscow"}, {ID: 2, Name: "Kazan"}},
		activities: []model.Activity{{ID: 10, Name: "Design"}, {ID: 20, Name: "Development"}},
	}
}

func (f *fakeReference) Cities(context.Context) ([]model.City, error) { return f.cities, nil }

func (f *fakeReference) Activities(context.Context) ([]model.Activity, error) {
	return f.activities, nil
}

func (f *fakeReference) City(_ context.Context, id int) (model.City, error) {
	for _, c := range f.cities {
		if c.ID == id {
			return c, nil
		}
	}
	return model.City{}, store.ErrNotFound
}

func (f *fakeReference) Activity(_ context.Context, id int) (model.Activity, error) {
	for _, a := range f.activities {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Activity{}, store.ErrNotFound
}

// sent is one outbound call recorded by fakeTransport.
type sent struct {
	op        string
	userID    int64
	messageID string
	text      string
	options   []model.Option
	replies   []string
}

type fakeTransport struct {
	mu   sync.Mutex
	seq  int
	log  []sent
	fail error
}

func (f *fakeTransport) record(s sent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return "", f.fail
	}
	f.seq++
	if s.messageID == "" {
		s.messageID = fmt.Sprintf("m%d", f.seq)
	}
	f.log = append(f.log, s)
	return s.messageID, nil
}

func (f *fakeTransport) Send(_ context.Context, userID int64, text string, options []model.Option) (string, error) {
	return f.record(sent{op: "send", userID: userID, text: text, options: options})
}

func (f *fakeTransport) Edit(_ context.Context, userID int64, messageID, text string, options []model.Option) error {
	_, err := f.record(sent{op: "edit", userID: userID, messageID: messageID, text: text, options: options})
	return err
}

func (f *fakeTransport) Delete(_ context.Context, userID int64, messageID string) error {
	_, err := f.record(sent{op: "delete", userID: userID, messageID: messageID})
	return err
}

func (f *fakeTransport) SendWithReplies(_ context.Context, userID int64, text string, replies []string) (string, error) {
	return f.record(sent{op: "replies", userID: userID, text: text, replies: replies})
}

func (f *fakeTransport) last(t *testing.T, userID int64) sent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.log) - 1; i >= 0; i-- {
		if f.log[i].userID == userID && f.log[i].op != "delete" {
			return f.log[i]
		}
	}
	t.Fatalf("nothing sent to user %d", userID)
	return sent{}
}

func (f *fakeTransport) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.log {
		if s.op == op {
			n++
		}
	}
	return n
}

type harness struct {
	d         *Dispatcher
	members   *fakeMembers
	ref       *fakeReference
	sessions  *session.MemoryStore
	transport *fakeTransport
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		members:   newFakeMembers(),
		ref:       newFakeReference(),
		sessions:  session.NewMemoryStore(),
		transport: &fakeTransport{},
	}
	d, err := NewDispatcher(Deps{
		Members:   h.members,
		Reference: h.ref,
		Sessions:  h.sessions,
		Transport: h.transport,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	h.d = d
	return h
}

func (h *harness) handle(t *testing.T, ev Event) {
	t.Helper()
	require.NoError(t, h.d.Handle(context.Background(), ev))
}

func (h *harness) session(t *testing.T, userID int64) session.Session {
	t.Helper()
	s, err := h.sessions.Get(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func cmd(who model.Identity, name string) Event {
	return Event{Kind: EventCommand, From: who, Text: "/" + name}
}

func text(who model.Identity, s string) Event {
	return Event{Kind: EventText, From: who, Text: s}
}

func press(who model.Identity, messageID, data string) Event {
	return Event{Kind: EventButton, From: who, Data: data, MessageID: messageID}
}

// register walks who through the whole flow with the given answers.
func (h *harness) register(t *testing.T, who model.Identity, name string, cityID, activityID int, meetings, mentor, contacts bool) {
	t.Helper()
	yn := func(v bool) string {
		if v {
			return tokenYes
		}
		return tokenNo
	}
	h.handle(t, cmd(who, CmdStart))
	h.handle(t, text(who, name))
	menu := h.transport.last(t, who.UserID).messageID
	h.handle(t, press(who, menu, fmt.Sprint(cityID)))
	h.handle(t, press(who, menu, fmt.Sprint(activityID)))
	h.handle(t, press(who, menu, yn(meetings)))
	h.handle(t, press(who, menu, yn(mentor)))
	h.handle(t, press(who, menu, yn(contacts)))
}

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

// matchPhrases are the normalized texts that start contact matching.
var matchPhrases = map[string]struct{}{
	"find a contact": {},
	"find contact":   {},
	"find someone":   {},
	"introduce me":   {},
}

// normalizePhrase lowercases s, collapses whitespace and drops trailing
// punctuation.
func normalizePhrase(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	return strings.TrimRight(s, ".!?,; ")
}

func isMatchTrigger(text string) bool {
	_, ok := matchPhrases[normalizePhrase(text)]
	return ok
}

// registeredMember loads the sender's member record, mapping a missing row
// to ErrorNotRegistered.
func (d *Dispatcher) registeredMember(ctx context.Context, userID int64) (model.Member, error) {
	m, err := d.members.Member(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Member{}, newError(ErrorNotRegistered, "not_registered", nil)
	}
	if err != nil {
		return model.Member{}, storeError("member_lookup", err)
	}
	return m, nil
}

// startMatch opens the activity menu for a registered member who shares
// contacts.
func (d *Dispatcher) startMatch(ctx context.Context, ev Event) (Render, error) {
	me, err := d.registeredMember(ctx, ev.From.UserID)
	if err != nil {
		return Render{}, err
	}
	if !me.Contacts {
		return Render{}, newError(ErrorPreconditionUnmet, "contacts_opt_in_required", nil)
	}

	options, err := activityOptions(ctx, d)
	if err != nil {
		return Render{}, err
	}
	s := session.Session{UserID: ev.From.UserID, Step: session.StepAwaitingMatchCategory, Answers: map[string]string{}}
	if err := d.sessions.Set(ctx, s); err != nil {
		return Render{}, storeError("session_set", err)
	}
	return Render{Kind: RenderSend, Text: msgAskMatchActivity, Options: options}, nil
}

// finishMatch introduces a random peer from the requester's city in the
// chosen activity. The session is cleared whatever the outcome.
func finishMatch(ctx context.Context, d *Dispatcher, ev Event, s session.Session) (Render, error) {
	if err := d.clearSession(ctx, ev.From.UserID); err != nil {
		return Render{}, err
	}
	activityID, err := strconv.Atoi(s.Answers[fieldActivity])
	if err != nil {
		return Render{}, fmt.Errorf("bot: answer %s: %w", fieldActivity, err)
	}

	me, err := d.registeredMember(ctx, ev.From.UserID)
	if err != nil {
		return Render{}, err
	}
	if !me.Contacts {
		return Render{}, newError(ErrorPreconditionUnmet, "contacts_opt_in_required", nil)
	}

	peer, err := d.members.RandomPeer(ctx, store.PeerFilter{
		ActivityID:    activityID,
		CityID:        me.CityID,
		ExcludeUserID: me.UserID,
	})
	if errors.Is(err, store.ErrNotFound) {
		return Render{}, newError(ErrorNoCandidateFound, "no_candidate", nil)
	}
	if err != nil {
		return Render{}, storeError("random_peer", err)
	}

	d.log.Info().
		Int64("user_id", me.UserID).
		Int64("peer_id", peer.UserID).
		Int("activity_id", activityID).
		Msg("contact matched")
	return Render{Kind: RenderEdit, Text: fmt.Sprintf(msgPeerFound, peer.Name, peer.Level, peer.Handle)}, nil
}

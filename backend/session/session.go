// Package session keeps the per-user conversation state: which question is
// pending and the raw answers collected so far.
package session

import (
	"context"
	"fmt"
	"maps"
	"time"
)

// Step names the next unanswered question of a conversation.
type Step int

const (
	StepNone Step = iota
	StepAwaitingName
	StepAwaitingCity
	StepAwaitingActivity
	StepAwaitingMeetingOptIn
	StepAwaitingMentorOptIn
	StepAwaitingContactsOptIn
	StepAwaitingMatchCategory
)

var stepNames = [...]string{
	StepNone:                  "none",
	StepAwaitingName:          "awaiting_name",
	StepAwaitingCity:          "awaiting_city",
	StepAwaitingActivity:      "awaiting_activity",
	StepAwaitingMeetingOptIn:  "awaiting_meeting_opt_in",
	StepAwaitingMentorOptIn:   "awaiting_mentor_opt_in",
	StepAwaitingContactsOptIn: "awaiting_contacts_opt_in",
	StepAwaitingMatchCategory: "awaiting_match_category",
}

// Steps lists every step, StepNone included.
func Steps() []Step {
	out := make([]Step, len(stepNames))
	for i := range stepNames {
		out[i] = Step(i)
	}
	return out
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// ParseStep is the inverse of Step.String.
func ParseStep(name string) (Step, error) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return StepNone, fmt.Errorf("session: unknown step %q", name)
}

// Session is the conversation state of one user. Answers only holds fields
// of steps already passed.
type Session struct {
	UserID    int64
	Step      Step
	Answers   map[string]string
	UpdatedAt time.Time
}

// Active reports whether a flow is in progress.
func (s Session) Active() bool {
	return s.Step != StepNone
}

// Clone returns a copy that shares no map with s.
func (s Session) Clone() Session {
	out := s
	out.Answers = maps.Clone(s.Answers)
	if out.Answers == nil {
		out.Answers = map[string]string{}
	}
	return out
}

// Store holds sessions keyed by user. Writes are last-writer-wins; callers
// serialize read-modify-write sequences with a Locker.
type Store interface {
	// Get returns the session for userID, or an inactive Session when none exists.
	Get(ctx context.Context, userID int64) (Session, error)

	// Set replaces the session for s.UserID.
	Set(ctx context.Context, s Session) error

	// Clear removes the session for userID. Clearing a missing session is not an error.
	Clear(ctx context.Context, userID int64) error
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mivchk/splus-bot/backend/model"
)

// Flag is a per-member boolean that can be flipped after registration.
type Flag int

const (
	FlagMeetings Flag = iota
	FlagContacts
	FlagMentor
)

func (f Flag) column() (string, error) {
	switch f {
	case FlagMeetings:
		return "in_meetings", nil
	case FlagContacts:
		return "in_contacts", nil
	case FlagMentor:
		return "in_mentors", nil
	}
	return "", fmt.Errorf("store: unknown flag %d", int(f))
}

// PeerFilter selects contact-matching candidates.
type PeerFilter struct {
	ActivityID    int
	CityID        int
	ExcludeUserID int64
}

const memberColumns = `user_id, user_name, city_id, activity_id, in_meetings, in_contacts, in_mentors, tg_username, level`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (model.Member, error) {
	var m model.Member
	var handle sql.NullString
	err := row.Scan(&m.UserID, &m.Name, &m.CityID, &m.ActivityID, &m.Meetings, &m.Contacts, &m.Mentor, &handle, &m.Level)
	if err != nil {
		return model.Member{}, err
	}
	m.Handle = handle.String
	return m, nil
}

func nullableHandle(handle string) sql.NullString {
	return sql.NullString{String: handle, Valid: handle != ""}
}

// Member returns the member registered under userID, or ErrNotFound.
func (s *Store) Member(ctx context.Context, userID int64) (model.Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM users WHERE user_id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Member{}, ErrNotFound
	}
	if err != nil {
		return model.Member{}, fmt.Errorf("store: Member: %w", err)
	}
	return m, nil
}

// CreateMember inserts a new member. A second insert for the same user
// returns ErrAlreadyExists and leaves the stored row untouched. Contact
// sharing is stored as false when the member has no handle.
func (s *Store) CreateMember(ctx context.Context, m model.Member) error {
	n, err := insertMember(ctx, s.db, m)
	if err != nil {
		return fmt.Errorf("store: CreateMember: %w", err)
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertMember returns the number of rows written: 0 when the user exists.
func insertMember(ctx context.Context, ex execer, m model.Member) (int64, error) {
	if m.Handle == "" {
		m.Contacts = false
	}
	res, err := ex.ExecContext(ctx, `
		INSERT INTO users (user_id, user_name, city_id, activity_id, in_meetings, in_contacts, in_mentors, tg_username)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO NOTHING`,
		m.UserID, m.Name, m.CityID, m.ActivityID, m.Meetings, m.Contacts, m.Mentor, nullableHandle(m.Handle),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetFlag updates one boolean column of a member.
func (s *Store) SetFlag(ctx context.Context, userID int64, flag Flag, value bool) error {
	column, err := flag.column()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET `+column+` = $1 WHERE user_id = $2`, value, userID)
	if err != nil {
		return fmt.Errorf("store: SetFlag %s: %w", column, err)
	}
	return expectOneRow(res, "SetFlag")
}

// SetHandle replaces the stored display handle of a member.
func (s *Store) SetHandle(ctx context.Context, userID int64, handle string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET tg_username = $1 WHERE user_id = $2`, nullableHandle(handle), userID)
	if err != nil {
		return fmt.Errorf("store: SetHandle: %w", err)
	}
	return expectOneRow(res, "SetHandle")
}

// DeleteMember removes a member. Deleting a missing member is not an error.
func (s *Store) DeleteMember(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("store: DeleteMember: %w", err)
	}
	return nil
}

// RandomPeer picks one member uniformly at random among those in the
// filter's city and activity who share contacts and have a handle, never
// the excluded user. Returns ErrNotFound when nobody qualifies.
func (s *Store) RandomPeer(ctx context.Context, f PeerFilter) (model.Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+`
		FROM users
		WHERE activity_id = $1
		  AND city_id = $2
		  AND in_contacts = TRUE
		  AND tg_username IS NOT NULL AND tg_username <> ''
		  AND user_id <> $3
		ORDER BY random()
		LIMIT 1`,
		f.ActivityID, f.CityID, f.ExcludeUserID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Member{}, ErrNotFound
	}
	if err != nil {
		return model.Member{}, fmt.Errorf("store: RandomPeer: %w", err)
	}
	return m, nil
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: %s rows: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

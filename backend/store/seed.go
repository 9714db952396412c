package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mivchk/splus-bot/backend/model"
)

// SeedReference upserts cities and activity categories in one transaction.
// Existing ids keep their row and take the new label.
func (s *Store) SeedReference(ctx context.Context, cities []model.City, activities []model.Activity) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, c := range cities {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO cities (city_id, city_name) VALUES ($1, $2)
				ON CONFLICT (city_id) DO UPDATE SET city_name = excluded.city_name`,
				c.ID, c.Name); err != nil {
				return fmt.Errorf("store: seed city %d: %w", c.ID, err)
			}
		}
		for _, a := range activities {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO type_of_activity (activity_id, activity_name) VALUES ($1, $2)
				ON CONFLICT (activity_id) DO UPDATE SET activity_name = excluded.activity_name`,
				a.ID, a.Name); err != nil {
				return fmt.Errorf("store: seed activity %d: %w", a.ID, err)
			}
		}
		return nil
	})
}

// SeedMembers inserts members in one transaction, skipping users that
// already exist, and reports how many rows were written.
func (s *Store) SeedMembers(ctx context.Context, members []model.Member) (int, error) {
	var inserted int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		inserted = 0
		for _, m := range members {
			n, err := insertMember(ctx, tx, m)
			if err != nil {
				return fmt.Errorf("store: seed member %d: %w", m.UserID, err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Reset deletes every member and reference row.
func (s *Store) Reset(ctx context.Context) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, table := range []string{"users", "type_of_activity", "cities"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("store: reset %s: %w", table, err)
			}
		}
		return nil
	})
}

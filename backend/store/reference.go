package store

import (
	"context"
	"fmt"

	"github.com/mivchk/splus-bot/backend/model"
)

// Cities lists every city ordered by id.
func (s *Store) Cities(ctx context.Context) ([]model.City, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT city_id, city_name FROM cities ORDER BY city_id`)
	if err != nil {
		return nil, fmt.Errorf("store: Cities: %w", err)
	}
	defer rows.Close()

	var cities []model.City
	for rows.Next() {
		var c model.City
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("store: Cities scan: %w", err)
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: Cities: %w", err)
	}
	return cities, nil
}

// Activities lists every activity category ordered by id.
func (s *Store) Activities(ctx context.Context) ([]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT activity_id, activity_name FROM type_of_activity ORDER BY activity_id`)
	if err != nil {
		return nil, fmt.Errorf("store: Activities: %w", err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("store: Activities scan: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: Activities: %w", err)
	}
	return activities, nil
}

// City resolves one city through the event's loaders. Unknown ids return
// ErrNotFound.
func (s *Store) City(ctx context.Context, id int) (model.City, error) {
	city, err := s.loaders(ctx).CityLoader.Load(ctx, id)()
	if err != nil {
		return model.City{}, wrapLookup("City", id, err)
	}
	return city, nil
}

// Activity resolves one activity category through the event's loaders.
// Unknown ids return ErrNotFound.
func (s *Store) Activity(ctx context.Context, id int) (model.Activity, error) {
	activity, err := s.loaders(ctx).ActivityLoader.Load(ctx, id)()
	if err != nil {
		return model.Activity{}, wrapLookup("Activity", id, err)
	}
	return activity, nil
}

func (s *Store) loaders(ctx context.Context) *Loaders {
	if l := LoadersFromContext(ctx); l != nil {
		return l
	}
	return s.NewLoaders()
}

func wrapLookup(op string, id int, err error) error {
	return fmt.Errorf("store: %s %d: %w", op, id, err)
}

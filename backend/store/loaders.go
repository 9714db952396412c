package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/mivchk/splus-bot/backend/model"
)

type loadersContextKey string

const loadersKey loadersContextKey = "dataloaders"

// Loaders batches reference lookups made while handling one inbound event.
// Build a fresh set per event so labels are never served stale.
type Loaders struct {
	CityLoader     *dataloader.Loader[int, model.City]
	ActivityLoader *dataloader.Loader[int, model.Activity]
}

// NewLoaders creates loaders over the store's database.
func (s *Store) NewLoaders() *Loaders {
	return &Loaders{
		CityLoader: dataloader.NewBatchedLoader(
			labelBatchFn(s.db, "SELECT city_id, city_name FROM cities WHERE city_id IN (%s)",
				func(id int, name string) model.City { return model.City{ID: id, Name: name} }),
			dataloader.WithWait[int, model.City](2*time.Millisecond),
		),
		ActivityLoader: dataloader.NewBatchedLoader(
			labelBatchFn(s.db, "SELECT activity_id, activity_name FROM type_of_activity WHERE activity_id IN (%s)",
				func(id int, name string) model.Activity { return model.Activity{ID: id, Name: name} }),
			dataloader.WithWait[int, model.Activity](2*time.Millisecond),
		),
	}
}

// WithLoaders adds loaders to ctx.
func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, l)
}

// LoadersFromContext returns the loaders stored in ctx, or nil.
func LoadersFromContext(ctx context.Context) *Loaders {
	if l, ok := ctx.Value(loadersKey).(*Loaders); ok {
		return l
	}
	return nil
}

// labelBatchFn loads (id, label) rows for the keys. Keys without a row
// resolve to ErrNotFound.
func labelBatchFn[T any](db *sql.DB, queryFmt string, build func(id int, name string) T) dataloader.BatchFunc[int, T] {
	return func(ctx context.Context, keys []int) []*dataloader.Result[T] {
		results := make([]*dataloader.Result[T], len(keys))
		if len(keys) == 0 {
			return results
		}

		args := make([]any, len(keys))
		for i, key := range keys {
			args[i] = key
		}
		fail := func(err error) []*dataloader.Result[T] {
			for i := range results {
				results[i] = &dataloader.Result[T]{Error: err}
			}
			return results
		}

		rows, err := db.QueryContext(ctx, fmt.Sprintf(queryFmt, placeholders(len(keys))), args...)
		if err != nil {
			return fail(err)
		}
		defer rows.Close()

		found := make(map[int]T, len(keys))
		for rows.Next() {
			var id int
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				return fail(err)
			}
			found[id] = build(id, name)
		}
		if err := rows.Err(); err != nil {
			return fail(err)
		}

		for i, key := range keys {
			if v, ok := found[key]; ok {
				results[i] = &dataloader.Result[T]{Data: v}
			} else {
				results[i] = &dataloader.Result[T]{Error: ErrNotFound}
			}
		}
		return results
	}
}

package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/mivchk/splus-bot/backend/store"
)

type cfg struct {
	DSN       string
	Driver    string
	Reference string
	Members   int
	Seed      uint64
	Truncate  bool
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	if err := run(os.Args[1:], log); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal().Err(err).Msg("seed failed")
	}
}

func parseFlags(args []string) (cfg, error) {
	var c cfg
	flagSet := pflag.NewFlagSet("db-seeder", pflag.ContinueOnError)
	flagSet.StringVar(&c.DSN, "dsn", os.Getenv("DATABASE_URL"), "database DSN [env: DATABASE_URL]")
	flagSet.StringVar(&c.Driver, "driver", "postgres", "database driver: postgres or sqlite")
	flagSet.StringVar(&c.Reference, "reference", "seed.yaml", "YAML file with cities and activities")
	flagSet.IntVar(&c.Members, "members", 0, "number of synthetic members to generate")
	flagSet.Uint64Var(&c.Seed, "seed", 42, "RNG seed (deterministic)")
	flagSet.BoolVar(&c.Truncate, "truncate", false, "delete all members and reference rows first")
	if err := flagSet.Parse(args); err != nil {
		return cfg{}, err
	}

	if c.DSN == "" {
		return cfg{}, errors.New("missing DSN: provide --dsn or set DATABASE_URL")
	}
	if c.Members < 0 {
		return cfg{}, errors.New("--members must not be negative")
	}
	return c, nil
}

func run(args []string, log zerolog.Logger) error {
	c, err := parseFlags(args)
	if err != nil {
		return err
	}

	ref, err := loadReference(c.Reference)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	st, err := store.Open(ctx, c.Driver, c.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	if c.Truncate {
		if err := st.Reset(ctx); err != nil {
			return err
		}
		log.Info().Msg("truncated users, type_of_activity, cities")
	}

	cities, activities := ref.model()
	if err := st.SeedReference(ctx, cities, activities); err != nil {
		return err
	}
	log.Info().Int("cities", len(cities)).Int("activities", len(activities)).Msg("seeded reference data")

	if c.Members > 0 {
		r := rand.New(rand.NewPCG(c.Seed, c.Seed^0x5eed))
		members, err := generateMembers(r, c.Members, cities, activities)
		if err != nil {
			return err
		}
		n, err := st.SeedMembers(ctx, members)
		if err != nil {
			return err
		}
		log.Info().Int("inserted", n).Int("requested", c.Members).Msg("seeded members")
	}

	log.Info().Msg("seed complete")
	return nil
}

package main

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mivchk/splus-bot/backend/store"
)

func TestParseReference(t *testing.T) {
	ref, err := parseReference([]byte("cities:\n  - {id: 1, name: Moscow}\nactivities:\n  - {id: 7, name: Design}\n"))
	require.NoError(t, err)
	cities, activities := ref.model()
	assert.Equal(t, "Moscow", cities[0].Name)
	assert.Equal(t, 7, activities[0].ID)

	tests := map[string]string{
		"empty":        "cities: []\nactivities: []\n",
		"duplicate id": "cities:\n  - {id: 1, name: A}\n  - {id: 1, name: B}\nactivities:\n  - {id: 1, name: X}\n",
		"no name":      "cities:\n  - {id: 1}\nactivities:\n  - {id: 1, name: X}\n",
		"bad id":       "cities:\n  - {id: 0, name: A}\nactivities:\n  - {id: 1, name: X}\n",
		"not yaml":     "cities: [",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseReference([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestBundledReferenceFileIsValid(t *testing.T) {
	_, err := loadReference("seed.yaml")
	require.NoError(t, err)
}

func TestGenerateMembers_Deterministic(t *testing.T) {
	ref, err := loadReference("seed.yaml")
	require.NoError(t, err)
	cities, activities := ref.model()

	a, err := generateMembers(rand.New(rand.NewPCG(7, 7)), 50, cities, activities)
	require.NoError(t, err)
	b, err := generateMembers(rand.New(rand.NewPCG(7, 7)), 50, cities, activities)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	ids := map[int64]bool{}
	for _, m := range a {
		assert.False(t, ids[m.UserID], "duplicate id %d", m.UserID)
		ids[m.UserID] = true
		if m.Handle == "" {
			assert.False(t, m.Contacts)
		}
	}
}

func TestParseFlags(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := parseFlags(nil)
	assert.ErrorContains(t, err, "missing DSN")

	c, err := parseFlags([]string{"--dsn", "x", "--driver", "sqlite", "--members", "3", "--truncate"})
	require.NoError(t, err)
	assert.Equal(t, cfg{DSN: "x", Driver: "sqlite", Reference: "seed.yaml", Members: 3, Seed: 42, Truncate: true}, c)

	_, err = parseFlags([]string{"--dsn", "x", "--members", "-1"})
	assert.Error(t, err)
}

func TestRun_SeedsSQLite(t *testing.T) {
	dir := t.TempDir()
	dsn := "file:" + filepath.Join(dir, "seed.db") + "?_pragma=foreign_keys(1)"
	refPath := filepath.Join(dir, "ref.yaml")
	require.NoError(t, os.WriteFile(refPath, []byte("cities:\n  - {id: 1, name: Moscow}\nactivities:\n  - {id: 1, name: Design}\n"), 0o600))

	args := []string{"--driver", "sqlite", "--dsn", dsn, "--reference", refPath, "--members", "5", "--truncate"}
	require.NoError(t, run(args, zerolog.Nop()))
	// A second run with the same seed inserts nothing new.
	require.NoError(t, run(args[:len(args)-1], zerolog.Nop()))

	st, err := store.Open(context.Background(), "sqlite", dsn)
	require.NoError(t, err)
	defer st.Close()

	cities, err := st.Cities(context.Background())
	require.NoError(t, err)
	assert.Len(t, cities, 1)

	var count int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count))
	assert.Equal(t, 5, count)
}

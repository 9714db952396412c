package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mivchk/splus-bot/backend/model"
)

// syntheticUserBase keeps generated ids far away from real chat user ids.
const syntheticUserBase int64 = 9_000_000_000

type labelEntry struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

type referenceFile struct {
	Cities     []labelEntry `yaml:"cities"`
	Activities []labelEntry `yaml:"activities"`
}

func loadReference(path string) (referenceFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return referenceFile{}, fmt.Errorf("read reference file: %w", err)
	}
	return parseReference(raw)
}

func parseReference(raw []byte) (referenceFile, error) {
	var ref referenceFile
	if err := yaml.Unmarshal(raw, &ref); err != nil {
		return referenceFile{}, fmt.Errorf("parse reference file: %w", err)
	}
	if len(ref.Cities) == 0 || len(ref.Activities) == 0 {
		return referenceFile{}, errors.New("reference file needs at least one city and one activity")
	}
	if err := checkEntries("city", ref.Cities); err != nil {
		return referenceFile{}, err
	}
	if err := checkEntries("activity", ref.Activities); err != nil {
		return referenceFile{}, err
	}
	return ref, nil
}

func checkEntries(kind string, entries []labelEntry) error {
	seen := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		if e.ID <= 0 {
			return fmt.Errorf("%s %q: id must be positive", kind, e.Name)
		}
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("%s %d: name is required", kind, e.ID)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%s %d: duplicate id", kind, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}

func (r referenceFile) model() ([]model.City, []model.Activity) {
	cities := make([]model.City, len(r.Cities))
	for i, e := range r.Cities {
		cities[i] = model.City{ID: e.ID, Name: e.Name}
	}
	activities := make([]model.Activity, len(r.Activities))
	for i, e := range r.Activities {
		activities[i] = model.Activity{ID: e.ID, Name: e.Name}
	}
	return cities, activities
}

var (
	firstNames = []string{"Anna", "Ivan", "Maria", "Dmitry", "Olga", "Sergey", "Elena", "Pavel", "Daria", "Nikita", "Sofia", "Artem"}
	lastNames  = []string{"Ivanova", "Petrov", "Smirnova", "Kuznetsov", "Popova", "Volkov", "Sokolova", "Lebedev", "Kozlova", "Novikov"}
)

// generateMembers builds n members spread over the reference data. The
// same rand source always yields the same members.
func generateMembers(r *rand.Rand, n int, cities []model.City, activities []model.Activity) ([]model.Member, error) {
	if len(cities) == 0 || len(activities) == 0 {
		return nil, errors.New("generate members: reference data is empty")
	}
	members := make([]model.Member, 0, n)
	for i := range n {
		first := firstNames[r.IntN(len(firstNames))]
		last := lastNames[r.IntN(len(lastNames))]
		m := model.Member{
			UserID:     syntheticUserBase + int64(i) + 1,
			Name:       first + " " + last,
			CityID:     cities[r.IntN(len(cities))].ID,
			ActivityID: activities[r.IntN(len(activities))].ID,
			Meetings:   r.IntN(2) == 0,
			Mentor:     r.IntN(5) == 0,
			Level:      model.DefaultLevel,
		}
		// Roughly a quarter of members have no public handle.
		if r.IntN(4) != 0 {
			m.Handle = fmt.Sprintf("%s_%s_%d", strings.ToLower(first), strings.ToLower(last), i+1)
			m.Contacts = r.IntN(3) != 0
		}
		members = append(members, m)
	}
	return members, nil
}

package services

import (
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"coveyTownAPI/internal/types/town"
)

// TownRegistry answers which towns currently exist.
type TownRegistry interface {
	IsLive(townID string) bool
}

// TownsStore is the in-memory registry of live towns. It is shared across requests.
type TownsStore struct {
	mu    sync.RWMutex
	towns map[string]*town.Town
	now   func() time.Time
}

func NewTownsStore() *TownsStore {
	return &TownsStore{
		towns: make(map[string]*town.Town),
		now:   time.Now,
	}
}

// CreateTown registers a new town. The returned town carries its update password; it is
// the only time the password is handed out.
func (s *TownsStore) CreateTown(friendlyName string, isPublic bool) (*town.Town, error) {
	friendlyName = strings.TrimSpace(friendlyName)
	if friendlyName == "" {
		return nil, ErrInvalidTownName
	}

	t := &town.Town{
		TownID:             strings.ToUpper(uuid.NewString()[:8]),
		FriendlyName:       friendlyName,
		IsPublic:           isPublic,
		TownUpdatePassword: uuid.NewString(),
		CreatedAt:          s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if _, taken := s.towns[t.TownID]; !taken {
			break
		}
		t.TownID = strings.ToUpper(uuid.NewString()[:8])
	}
	s.towns[t.TownID] = t

	created := *t
	log.Printf("CreateTown: Created town %s (%s)", t.TownID, t.FriendlyName)
	return &created, nil
}

func (s *TownsStore) DeleteTown(townID, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.towns[townID]
	if !ok {
		return ErrTownNotFound
	}
	if t.TownUpdatePassword != password {
		return ErrInvalidTownPassword
	}

	delete(s.towns, townID)
	log.Printf("DeleteTown: Deleted town %s", townID)
	return nil
}

// ListTowns returns the public towns, oldest first.
func (s *TownsStore) ListTowns() []town.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	public := make([]*town.Town, 0, len(s.towns))
	for _, t := range s.towns {
		if t.IsPublic {
			public = append(public, t)
		}
	}
	sort.Slice(public, func(i, j int) bool {
		if public[i].CreatedAt.Equal(public[j].CreatedAt) {
			return public[i].TownID < public[j].TownID
		}
		return public[i].CreatedAt.Before(public[j].CreatedAt)
	})

	summaries := make([]town.Summary, 0, len(public))
	for _, t := range public {
		summaries = append(summaries, town.Summary{TownID: t.TownID, FriendlyName: t.FriendlyName})
	}
	return summaries
}

func (s *TownsStore) IsLive(townID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.towns[townID]
	return ok
}

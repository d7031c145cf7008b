package gamification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sujithputta02/LifeFlow-AI/internal/events"
	"github.com/sujithputta02/LifeFlow-AI/internal/logging"
	"github.com/sujithputta02/LifeFlow-AI/internal/store"
)

const (
	PointsPerStep         = 10
	PointsPerVerifiedStep = 50
	PointsPerLevel        = 100

	BadgeFirstStep   = "first_step"
	BadgeVerifiedPro = "verified_pro"
	BadgeLevelFive   = "level_5"
)

var ErrMissingGuestID = errors.New("guestId is required")

// LevelFor returns the level reached with points. Levels start at 1.
func LevelFor(points int) int {
	if points < 0 {
		points = 0
	}
	return points/PointsPerLevel + 1
}

func NewProfile(guestID string, now time.Time) store.GuestProfile {
	return store.GuestProfile{
		GuestID:    guestID,
		Level:      1,
		Badges:     []store.Badge{},
		LastActive: formatTime(now),
	}
}

type Award struct {
	Profile   store.GuestProfile `json:"profile"`
	NewBadges []store.Badge      `json:"newBadges"`
}

// CompleteStep credits one completed step to profile. A verified step earns
// the verification bonus in place of the base points.
func CompleteStep(profile store.GuestProfile, verified bool, now time.Time) Award {
	stamp := formatTime(now)
	profile.Badges = append([]store.Badge(nil), profile.Badges...)
	if verified {
		profile.Points += PointsPerVerifiedStep
	} else {
		profile.Points += PointsPerStep
	}
	profile.Level = LevelFor(profile.Points)
	profile.LastActive = stamp

	award := Award{NewBadges: []store.Badge{}}
	unlock := func(id string) {
		if profile.HasBadge(id) {
			return
		}
		badge := store.Badge{ID: id, Date: stamp}
		profile.Badges = append(profile.Badges, badge)
		award.NewBadges = append(award.NewBadges, badge)
	}
	unlock(BadgeFirstStep)
	if verified {
		unlock(BadgeVerifiedPro)
	}
	if profile.Level >= 5 {
		unlock(BadgeLevelFive)
	}
	award.Profile = profile
	return award
}

// Service keeps guest profiles in a store and announces changes.
type Service struct {
	store     store.Store
	publisher events.Publisher
	log       *logging.Logger
	now       func() time.Time

	// guards read-modify-write cycles on profiles
	mu sync.Mutex
}

func NewService(s store.Store, publisher events.Publisher, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{
		store:     s,
		publisher: publisher,
		log:       log.With("component", "gamification"),
		now:       time.Now,
	}
}

// Profile returns the guest's profile, creating and storing a fresh one on
// first sight.
func (s *Service) Profile(ctx context.Context, guestID string) (store.GuestProfile, error) {
	guestID = strings.TrimSpace(guestID)
	if guestID == "" {
		return store.GuestProfile{}, ErrMissingGuestID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadOrCreate(ctx, guestID)
}

// Update overwrites the guest's points, level and badges as given.
func (s *Service) Update(ctx context.Context, profile store.GuestProfile) (store.GuestProfile, error) {
	profile.GuestID = strings.TrimSpace(profile.GuestID)
	if profile.GuestID == "" {
		return store.GuestProfile{}, ErrMissingGuestID
	}
	if profile.Level < 1 {
		profile.Level = LevelFor(profile.Points)
	}
	if profile.Badges == nil {
		profile.Badges = []store.Badge{}
	}
	profile.LastActive = formatTime(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		return store.GuestProfile{}, err
	}
	s.publish(profile.GuestID, events.TypeProfileUpdated, map[string]any{
		"points": profile.Points,
		"level":  profile.Level,
	})
	return profile, nil
}

func (s *Service) CompleteStep(ctx context.Context, guestID string, verified bool) (Award, error) {
	guestID = strings.TrimSpace(guestID)
	if guestID == "" {
		return Award{}, ErrMissingGuestID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, err := s.loadOrCreate(ctx, guestID)
	if err != nil {
		return Award{}, err
	}
	award := CompleteStep(profile, verified, s.now())
	if err := s.store.UpsertProfile(ctx, award.Profile); err != nil {
		return Award{}, err
	}
	s.publish(guestID, events.TypeProfileUpdated, map[string]any{
		"points":   award.Profile.Points,
		"level":    award.Profile.Level,
		"verified": verified,
	})
	for _, badge := range award.NewBadges {
		s.log.Info("badge unlocked", "guest_id", guestID, "badge", badge.ID)
		s.publish(guestID, events.TypeBadgeUnlocked, map[string]any{"badge": badge.ID})
	}
	return award, nil
}

func (s *Service) loadOrCreate(ctx context.Context, guestID string) (store.GuestProfile, error) {
	existing, err := s.store.GetProfile(ctx, guestID)
	if err != nil {
		return store.GuestProfile{}, err
	}
	if existing != nil {
		if existing.Badges == nil {
			existing.Badges = []store.Badge{}
		}
		return *existing, nil
	}
	profile := NewProfile(guestID, s.now())
	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		return store.GuestProfile{}, err
	}
	s.log.Info("guest profile created", "guest_id", guestID)
	return profile, nil
}

func (s *Service) publish(guestID, eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.New(guestID, eventType, payload))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

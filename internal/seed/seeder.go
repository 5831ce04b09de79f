// Package seed fills the database with fake users and call history for
// development and load testing.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/makebelieve-sk/Messenger-sub000/internal/logger"
	"github.com/makebelieve-sk/Messenger-sub000/internal/models"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// SeedDev seeds the development database with realistic data.
func (s *Seeder) SeedDev() error {
	logger.Log.Info("Creating users...")
	users, err := s.seedUsers(100)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	logger.Log.Info("Creating call history...")
	if err := s.seedCallHistory(users, 300); err != nil {
		return fmt.Errorf("failed to seed call history: %w", err)
	}

	return nil
}

// SeedTest seeds a minimal fixture set for integration tests.
func (s *Seeder) SeedTest() error {
	users, err := s.seedUsers(5)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	return s.seedCallHistory(users, 10)
}

// Clean removes all seeded rows.
func (s *Seeder) Clean() error {
	if err := s.db.Exec("DELETE FROM call_participants").Error; err != nil {
		return err
	}
	if err := s.db.Exec("DELETE FROM calls").Error; err != nil {
		return err
	}
	return s.db.Exec("DELETE FROM users").Error
}

// seedUsers creates n fake accounts, skipping unique-index collisions.
func (s *Seeder) seedUsers(n int) ([]models.User, error) {
	users := make([]models.User, 0, n)

	for i := 0; i < n; i++ {
		lastActive := gofakeit.DateRange(time.Now().AddDate(0, 0, -30), time.Now())
		user := models.User{
			ID:           uuid.NewString(),
			Email:        gofakeit.Email(),
			Username:     gofakeit.Username(),
			DisplayName:  gofakeit.Name(),
			AvatarURL:    gofakeit.ImageURL(256, 256),
			LastActiveAt: &lastActive,
		}

		if err := s.db.Create(&user).Error; err != nil {
			continue
		}
		users = append(users, user)
	}

	if len(users) == 0 {
		return nil, fmt.Errorf("no users created")
	}
	return users, nil
}

// seedCallHistory creates n finished calls between random user pairs.
func (s *Seeder) seedCallHistory(users []models.User, n int) error {
	if len(users) < 2 {
		return fmt.Errorf("need at least two users to seed calls")
	}

	for i := 0; i < n; i++ {
		caller := users[rand.Intn(len(users))]
		callee := users[rand.Intn(len(users))]
		if caller.ID == callee.ID {
			continue
		}

		started := gofakeit.DateRange(time.Now().AddDate(0, 0, -14), time.Now().Add(-time.Hour))
		ended := started.Add(time.Duration(rand.Intn(3600)) * time.Second)

		call := models.Call{
			ID:          uuid.NewString(),
			RoomID:      uuid.NewString(),
			InitiatorID: caller.ID,
			Status:      models.CallStatusEnded,
			StartedAt:   &started,
			EndedAt:     &ended,
			Participants: []models.CallParticipant{
				{UserID: caller.ID, JoinedAt: &started, LeftAt: &ended},
				{UserID: callee.ID, JoinedAt: &started, LeftAt: &ended},
			},
		}

		if err := s.db.Create(&call).Error; err != nil {
			return fmt.Errorf("failed to create call: %w", err)
		}
	}

	return nil
}

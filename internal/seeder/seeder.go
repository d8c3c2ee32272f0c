package seeder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/ustabul/ustabul/internal/database"
	"github.com/ustabul/ustabul/internal/entity"
)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// All seeds the full development fixture set.
func (s *Seeder) All(ctx context.Context) error {
	if err := s.Categories(ctx); err != nil {
		return err
	}
	if err := s.Users(ctx); err != nil {
		return err
	}
	return s.Orders(ctx)
}

// Categories seeds the service categories if they are missing.
func (s *Seeder) Categories(ctx context.Context) error {
	samples := []entity.Category{
		{ID: 1, Slug: "plumbing", Name: "Plumbing"},
		{ID: 2, Slug: "electrical", Name: "Electrical"},
		{ID: 3, Slug: "painting", Name: "Painting"},
		{ID: 4, Slug: "appliance-repair", Name: "Appliance Repair"},
	}

	for _, sample := range samples {
		category := sample
		_, err := s.db.NewInsert().Model(&category).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded categories", zap.Int("count", len(samples)))
	}
	return nil
}

// Users seeds example masters and customers if they are missing.
func (s *Seeder) Users(ctx context.Context) error {
	now := time.Now().UTC()

	masters := []entity.Master{
		{ID: 1, Name: "Ahmet Usta", Phone: "+994-50-000-0001", District: "Yasamal", AvatarURL: "https://cdn.ustabul.az/avatars/ahmet.png", CategoryID: 1, Verified: true, CreatedAt: now},
		{ID: 2, Name: "Mehmet Usta", Phone: "+994-55-000-0002", District: "Nasimi", AvatarURL: "https://cdn.ustabul.az/avatars/mehmet.png", CategoryID: 2, Verified: true, CreatedAt: now},
		{ID: 3, Name: "Hasan Usta", Phone: "+994-50-000-0003", District: "Yasamal", CategoryID: 1, Verified: false, CreatedAt: now},
	}
	for _, sample := range masters {
		master := sample
		_, err := s.db.NewInsert().Model(&master).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	customers := []entity.Customer{
		{ID: 1, Name: "Aysel Mammadova", Phone: "+994-70-000-0001", District: "Yasamal", CreatedAt: now},
		{ID: 2, Name: "Nigar Aliyeva", Phone: "+994-77-000-0002", District: "Nasimi", CreatedAt: now},
	}
	for _, sample := range customers {
		customer := sample
		_, err := s.db.NewInsert().Model(&customer).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded users",
			zap.Int("masters", len(masters)),
			zap.Int("customers", len(customers)),
		)
	}
	return nil
}

// Orders seeds example orders if they are missing.
func (s *Seeder) Orders(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.Order{
		{
			Number:         "UB-SEED0001",
			CustomerID:     1,
			CategoryID:     1,
			Title:          "Leaking kitchen faucet",
			Description:    "Faucet drips constantly, needs a new cartridge.",
			District:       "Yasamal",
			Address:        "Sharifzadeh St. 12",
			ScheduledAt:    now.Add(48 * time.Hour),
			Urgency:        entity.UrgencyPlanned,
			EstimatedPrice: decimal.NewFromInt(500),
			Status:         entity.OrderStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		{
			Number:         "UB-SEED0002",
			CustomerID:     2,
			CategoryID:     2,
			Title:          "Power outlet sparking",
			Description:    "Living room outlet sparks when plugging in.",
			District:       "Nasimi",
			Address:        "Azadliq Ave. 45",
			ScheduledAt:    now.Add(2 * time.Hour),
			Urgency:        entity.UrgencyUrgent,
			EstimatedPrice: decimal.NewFromInt(800),
			Status:         entity.OrderStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
	}

	for _, sample := range samples {
		order := sample
		_, err := s.db.NewInsert().Model(&order).
			On("CONFLICT (number) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	}
	return nil
}

package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ustabul/ustabul/internal/cache"
	"github.com/ustabul/ustabul/internal/config"
	"github.com/ustabul/ustabul/internal/dto"
	masterrepo "github.com/ustabul/ustabul/internal/repository/master"
	statsrepo "github.com/ustabul/ustabul/internal/repository/stats"
	"github.com/ustabul/ustabul/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/ustabul/ustabul/service/stats")

// Leaderboard metrics supported by the ranking endpoint.
const (
	MetricRating        = "rating"
	MetricCompletedJobs = "completed_jobs"
	MetricEarnings      = "earnings"
)

// Period windows for the leaderboard.
const (
	PeriodAll   = "all"
	PeriodMonth = "month"
	PeriodWeek  = "week"
)

const defaultLeaderboardLimit = 10

// Service computes derived dashboards from order and review rows. Every
// value is recomputed per request; nothing here is persisted.
type Service struct {
	stats    *statsrepo.Repository
	masters  *masterrepo.Repository
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Stats   *statsrepo.Repository
	Masters *masterrepo.Repository
	Cache   cache.Store
	Config  config.Config
	Logger  *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		stats:    p.Stats,
		masters:  p.Masters,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		logger:   p.Logger,
	}
}

// MasterStats aggregates a master's dashboard numbers. A master with no
// orders has a completion rate of zero, not a division error.
func (s *Service) MasterStats(ctx context.Context, masterID int64) (dto.MasterStatsResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "StatsService.MasterStats", trace.WithAttributes(attribute.Int64("master.id", masterID)))
	defer span.End()

	if _, err := s.masters.GetByID(ctx, masterID); err != nil {
		if errors.Is(err, masterrepo.ErrNotFound) {
			return dto.MasterStatsResponse{}, errorbank.NotFound("master not found")
		}
		return dto.MasterStatsResponse{}, errorbank.Internal("failed to load master", errorbank.WithCause(err))
	}

	orders, err := s.stats.MasterOrders(ctx, masterID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return dto.MasterStatsResponse{}, errorbank.Internal("failed to aggregate orders", errorbank.WithCause(err))
	}
	reviews, err := s.stats.MasterReviews(ctx, masterID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return dto.MasterStatsResponse{}, errorbank.Internal("failed to aggregate reviews", errorbank.WithCause(err))
	}

	return dto.MasterStatsResponse{
		MasterID:        masterID,
		TotalOrders:     orders.Total,
		CompletedOrders: orders.Completed,
		CancelledOrders: orders.Cancelled,
		CompletionRate:  completionRate(orders.Completed, orders.Total),
		AverageRating:   reviews.AvgRating,
		ReviewCount:     reviews.ReviewCount,
		TotalEarnings:   orders.Earnings,
	}, nil
}

// CustomerStats aggregates a customer's account numbers.
func (s *Service) CustomerStats(ctx context.Context, customerID int64) (dto.CustomerStatsResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "StatsService.CustomerStats", trace.WithAttributes(attribute.Int64("customer.id", customerID)))
	defer span.End()

	agg, err := s.stats.CustomerOrders(ctx, customerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return dto.CustomerStatsResponse{}, errorbank.Internal("failed to aggregate orders", errorbank.WithCause(err))
	}

	return dto.CustomerStatsResponse{
		CustomerID:      customerID,
		TotalOrders:     agg.Total,
		ActiveOrders:    agg.Active,
		CompletedOrders: agg.Completed,
		TotalSpent:      agg.Spent,
	}, nil
}

// Leaderboard ranks masters by the requested metric within a period window.
// Ties keep ascending master id order. Snapshots are cached briefly since
// the ranking sweeps every master.
func (s *Service) Leaderboard(ctx context.Context, metric, period string, limit int) ([]dto.LeaderboardEntry, error) {
	ctx, span := serviceTracer.Start(ctx, "StatsService.Leaderboard", trace.WithAttributes(
		attribute.String("leaderboard.metric", metric),
		attribute.String("leaderboard.period", period),
	))
	defer span.End()

	if metric == "" {
		metric = MetricRating
	}
	switch metric {
	case MetricRating, MetricCompletedJobs, MetricEarnings:
	default:
		return nil, errorbank.BadRequest("unknown leaderboard metric", errorbank.WithDetail("metric", metric))
	}

	since, err := periodStart(period)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > 100 {
		limit = 100
	}

	cacheKey := fmt.Sprintf("leaderboard:%s:%s:%d", metric, period, limit)
	if entries, err := s.getCached(ctx, cacheKey); err == nil {
		return entries, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("leaderboard cache read failed", zap.Error(err))
	}

	masters, err := s.masters.List(ctx)
	if err != nil {
		return nil, errorbank.Internal("failed to list masters", errorbank.WithCause(err))
	}
	completed, err := s.stats.CompletedByMaster(ctx, since, nil)
	if err != nil {
		return nil, errorbank.Internal("failed to aggregate completed jobs", errorbank.WithCause(err))
	}
	ratings, err := s.stats.RatingsByMaster(ctx, since, nil)
	if err != nil {
		return nil, errorbank.Internal("failed to aggregate ratings", errorbank.WithCause(err))
	}

	entries := make([]dto.LeaderboardEntry, 0, len(masters))
	for _, m := range masters {
		entries = append(entries, dto.LeaderboardEntry{
			MasterID:      m.ID,
			Name:          m.Name,
			Verified:      m.Verified,
			Rating:        ratings[m.ID].AvgRating,
			ReviewCount:   ratings[m.ID].ReviewCount,
			CompletedJobs: completed[m.ID].Completed,
			Earnings:      completed[m.ID].Earnings,
		})
	}

	// Input is id-ascending; the stable sort keeps that as the tie-break.
	sort.SliceStable(entries, func(i, j int) bool {
		switch metric {
		case MetricCompletedJobs:
			return entries[i].CompletedJobs > entries[j].CompletedJobs
		case MetricEarnings:
			return entries[i].Earnings.GreaterThan(entries[j].Earnings)
		default:
			return entries[i].Rating > entries[j].Rating
		}
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	s.storeCached(ctx, cacheKey, entries)
	return entries, nil
}

func completionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

func periodStart(period string) (time.Time, error) {
	switch period {
	case "", PeriodAll:
		return time.Time{}, nil
	case PeriodMonth:
		return time.Now().UTC().AddDate(0, 0, -30), nil
	case PeriodWeek:
		return time.Now().UTC().AddDate(0, 0, -7), nil
	default:
		return time.Time{}, errorbank.BadRequest("unknown leaderboard period", errorbank.WithDetail("period", period))
	}
}

func (s *Service) getCached(ctx context.Context, key string) ([]dto.LeaderboardEntry, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var entries []dto.LeaderboardEntry
	if err := json.Unmarshal(bytes, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) storeCached(ctx context.Context, key string, entries []dto.LeaderboardEntry) {
	if s.cache == nil {
		return
	}
	bytes, err := json.Marshal(entries)
	if err != nil {
		s.logger.Warn("leaderboard cache encode failed", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, bytes, s.cacheTTL); err != nil {
		s.logger.Warn("leaderboard cache write failed", zap.Error(err))
	}
}

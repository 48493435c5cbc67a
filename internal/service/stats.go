package service

import (
	"context"
	"fmt"

	"combat-meter/internal/constants"
	"combat-meter/internal/repository"
	"combat-meter/internal/stats"

	"github.com/rs/zerolog"
)

type StatsService struct {
	encounterRepo *repository.EncounterRepository
	logger        zerolog.Logger
}

func NewStatsService(encounterRepo *repository.EncounterRepository, logger zerolog.Logger) *StatsService {
	return &StatsService{encounterRepo: encounterRepo, logger: logger}
}

// RaidStats aggregates the local player's cleared encounters per raid.
func (s *StatsService) RaidStats(ctx context.Context) ([]stats.RaidStats, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	rows, err := s.encounterRepo.RaidMetricRows(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load raid metrics")
		return nil, fmt.Errorf("failed to load raid metrics: %w", err)
	}

	metrics := make([]stats.RaidMetric, 0, len(rows))
	for _, row := range rows {
		m := stats.RaidMetric{RaidType: stats.ClassifyRaid(row.Boss), Support: row.Support}
		if row.Support {
			m.AP = row.AP.Float64
			m.Brand = row.Brand.Float64
			m.Identity = row.Identity.Float64
			m.Hyper = row.Hyper.Float64
		} else {
			m.DPS = row.DPS
		}
		metrics = append(metrics, m)
	}

	result := stats.Aggregate(metrics)
	s.logger.Debug().Int("encounters", len(rows)).Int("raids", len(result)).Msg("raid stats aggregated")
	return result, nil
}

package service

import (
	"context"
	"fmt"
	"sync"

	"combat-meter/internal/api"
	"combat-meter/internal/constants"
	"combat-meter/internal/domain"
	"combat-meter/internal/repository"
	"combat-meter/internal/stats"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type EncounterService struct {
	encounterRepo *repository.EncounterRepository
	uploadRepo    *repository.StatsUploadRepository
	statsClient   *api.StatsClient
	logger        zerolog.Logger

	uploads sync.WaitGroup
}

func NewEncounterService(encounterRepo *repository.EncounterRepository, uploadRepo *repository.StatsUploadRepository, statsClient *api.StatsClient, logger zerolog.Logger) *EncounterService {
	return &EncounterService{
		encounterRepo: encounterRepo,
		uploadRepo:    uploadRepo,
		statsClient:   statsClient,
		logger:        logger,
	}
}

// LoadResult is the outcome of decoding one stored encounter.
type LoadResult struct {
	ID        int64
	Encounter *domain.Encounter
	Err       error
}

// Save persists a finished encounter. Cleared raids are then submitted to
// the stats service in the background when it is configured; upload
// failures are logged and never retried.
func (s *EncounterService) Save(ctx context.Context, enc *domain.Encounter) (int64, error) {
	dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	id, err := s.encounterRepo.Insert(dbCtx, enc)
	if err != nil {
		s.logger.Error().Err(err).Str("boss", enc.CurrentBossName).Msg("failed to save encounter")
		return 0, fmt.Errorf("failed to save encounter: %w", err)
	}
	enc.ID = id

	s.logger.Info().Int64("encounter_id", id).Str("boss", enc.CurrentBossName).Msg("encounter saved")

	if info := s.raidInfo(enc); info != nil {
		s.uploads.Add(1)
		go func() {
			defer s.uploads.Done()
			s.upload(context.WithoutCancel(ctx), info)
		}()
	}
	return id, nil
}

// WaitUploads blocks until every background upload has finished.
func (s *EncounterService) WaitUploads() {
	s.uploads.Wait()
}

func (s *EncounterService) raidInfo(enc *domain.Encounter) *api.RaidInfo {
	if s.statsClient == nil || !s.statsClient.Enabled() || !enc.Cleared {
		return nil
	}
	raid := stats.ClassifyRaid(enc.CurrentBossName)
	if raid == stats.RaidUnknown {
		return nil
	}

	info := &api.RaidInfo{
		EncounterID: enc.ID,
		Boss:        enc.CurrentBossName,
		Raid:        raid.String(),
		FightStart:  enc.FightStart,
		Duration:    enc.Duration,
		Cleared:     enc.Cleared,
		Players:     []api.RaidPlayer{},
	}
	if enc.Misc != nil {
		info.AppVersion = enc.Misc.Version
	}
	for _, ent := range enc.Entities {
		if ent.EntityType != domain.EntityTypePlayer {
			continue
		}
		info.Players = append(info.Players, api.RaidPlayer{
			Name:      ent.Name,
			Class:     ent.Class,
			GearScore: ent.GearScore,
			DPS:       ent.DamageStats.DPS,
			Damage:    ent.DamageStats.DamageDealt,
			Deaths:    ent.DamageStats.Deaths,
		})
	}
	return info
}

func (s *EncounterService) upload(ctx context.Context, info *api.RaidInfo) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	logger := s.logger.With().Int64("encounter_id", info.EncounterID).Str("raid", info.Raid).Logger()

	status, err := s.statsClient.SubmitRaidInfo(apiCtx, info)
	if err != nil {
		logger.Warn().Err(err).Int("status", status).Msg("failed to upload raid info")
		if status == 0 {
			return
		}
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer dbCancel()

	upload := &domain.StatsUpload{EncounterID: info.EncounterID, UploadID: info.UploadID, StatusCode: status}
	if err := s.uploadRepo.RecordUpload(dbCtx, upload); err != nil {
		logger.Error().Err(err).Msg("failed to record raid upload")
		return
	}
	logger.Debug().Str("upload_id", info.UploadID).Int("status", status).Msg("raid upload recorded")
}

func (s *EncounterService) Get(ctx context.Context, id int64) (*domain.Encounter, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	enc, err := s.encounterRepo.Get(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Int64("encounter_id", id).Msg("failed to load encounter")
		return nil, err
	}
	return enc, nil
}

func (s *EncounterService) List(ctx context.Context, filter repository.ListFilter) (*repository.PreviewPage, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	return s.encounterRepo.ListPreviews(ctx, filter)
}

func (s *EncounterService) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if err := s.encounterRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("encounter_id", id).Msg("encounter deleted")
	return nil
}

// Upload returns the last stats submission of an encounter, nil if none.
func (s *EncounterService) Upload(ctx context.Context, id int64) (*domain.StatsUpload, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	return s.uploadRepo.Get(ctx, id)
}

// Load decodes the encounter rows of ids concurrently, without entities.
// Results follow the order of ids; a row that fails to decode or does not
// exist carries its own error and never affects the others.
func (s *EncounterService) Load(ctx context.Context, ids []int64) ([]LoadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	raws, err := s.encounterRepo.RawColumns(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load encounters: %w", err)
	}

	byID := make(map[int64]*repository.RawEncounter, len(raws))
	for _, raw := range raws {
		byID[raw.ID] = raw
	}

	results := make([]LoadResult, len(ids))
	var g errgroup.Group
	g.SetLimit(constants.DecodeWorkers)

	for i, id := range ids {
		results[i].ID = id
		raw, ok := byID[id]
		if !ok {
			results[i].Err = repository.ErrEncounterNotFound
			continue
		}
		g.Go(func() error {
			enc, err := raw.Decode()
			if err != nil {
				s.logger.Warn().Err(err).Int64("encounter_id", id).Str("version", raw.Version()).Msg("failed to decode encounter")
				results[i].Err = err
				return nil
			}
			results[i].Encounter = enc
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"combat-meter/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type StatsUploadRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStatsUploadRepository(sqlDB *sql.DB, logger zerolog.Logger) *StatsUploadRepository {
	return &StatsUploadRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// RecordUpload stores the outcome of a stats submission, replacing any
// earlier record for the encounter. An empty uploadID gets a fresh one.
func (r *StatsUploadRepository) RecordUpload(ctx context.Context, upload *domain.StatsUpload) error {
	if upload.UploadID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		upload.UploadID = id
	}
	if upload.UploadedOn.IsZero() {
		upload.UploadedOn = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stats_upload (encounter_id, upload_id, status_code, uploaded_on)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (encounter_id) DO UPDATE SET
			upload_id = excluded.upload_id,
			status_code = excluded.status_code,
			uploaded_on = excluded.uploaded_on`,
		upload.EncounterID, upload.UploadID, upload.StatusCode, upload.UploadedOn,
	)
	if err != nil {
		return fmt.Errorf("failed to record stats upload for encounter %d: %w", upload.EncounterID, err)
	}
	return nil
}

// Get returns the last upload of an encounter, nil if it was never uploaded.
func (r *StatsUploadRepository) Get(ctx context.Context, encounterID int64) (*domain.StatsUpload, error) {
	upload := domain.StatsUpload{EncounterID: encounterID}
	err := r.db.QueryRowContext(ctx,
		`SELECT upload_id, status_code, uploaded_on FROM stats_upload WHERE encounter_id = ?`, encounterID,
	).Scan(&upload.UploadID, &upload.StatusCode, &upload.UploadedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stats upload for encounter %d: %w", encounterID, err)
	}
	return &upload, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"combat-meter/internal/codec"
	"combat-meter/internal/constants"
	"combat-meter/internal/domain"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

var ErrEncounterNotFound = errors.New("encounter not found")

type EncounterRepository struct {
	db         *sql.DB
	appVersion string
	logger     zerolog.Logger
}

func NewEncounterRepository(sqlDB *sql.DB, appVersion string, logger zerolog.Logger) *EncounterRepository {
	return &EncounterRepository{
		db:         sqlDB,
		appVersion: appVersion,
		logger:     logger,
	}
}

// RawEncounter is an encounter row as stored. The blob columns are still
// encoded; Decode turns them into a domain.Encounter.
type RawEncounter struct {
	ID               int64
	LastCombatPacket int64
	FightStart       int64
	LocalPlayer      sql.NullString
	CurrentBoss      sql.NullString
	Duration         int64
	TotalDamageDealt int64
	TopDamageDealt   int64
	TotalDamageTaken int64
	TopDamageTaken   int64
	DPS              int64
	TotalShielding   int64
	Buffs            []byte
	Debuffs          []byte
	AppliedShields   []byte
	BossHPLog        []byte
	Misc             []byte
	Cleared          bool
}

const encounterColumns = `id, last_combat_packet, fight_start, local_player, current_boss, duration,
	total_damage_dealt, top_damage_dealt, total_damage_taken, top_damage_taken, dps, total_shielding,
	buffs, debuffs, applied_shield_buffs, boss_hp_log, misc, cleared`

type scanner interface {
	Scan(dest ...any) error
}

func scanRawEncounter(row scanner) (*RawEncounter, error) {
	var raw RawEncounter
	err := row.Scan(
		&raw.ID, &raw.LastCombatPacket, &raw.FightStart, &raw.LocalPlayer, &raw.CurrentBoss, &raw.Duration,
		&raw.TotalDamageDealt, &raw.TopDamageDealt, &raw.TotalDamageTaken, &raw.TopDamageTaken, &raw.DPS, &raw.TotalShielding,
		&raw.Buffs, &raw.Debuffs, &raw.AppliedShields, &raw.BossHPLog, &raw.Misc, &raw.Cleared,
	)
	if err != nil {
		return nil, err
	}
	return &raw, nil
}

// Version is the writer version recorded in the row's misc column.
func (raw *RawEncounter) Version() string {
	return codec.VersionFromMisc(raw.Misc)
}

// Decode decodes the row's columns according to the version that wrote it.
// Entities are not part of the row and are left empty.
func (raw *RawEncounter) Decode() (*domain.Encounter, error) {
	enc := &domain.Encounter{
		ID:               raw.ID,
		FightStart:       raw.FightStart,
		LastCombatPacket: raw.LastCombatPacket,
		Duration:         raw.Duration,
		LocalPlayer:      raw.LocalPlayer.String,
		CurrentBossName:  raw.CurrentBoss.String,
		Cleared:          raw.Cleared,
		DamageStats: domain.EncounterDamageStats{
			TotalDamageDealt: raw.TotalDamageDealt,
			TopDamageDealt:   raw.TopDamageDealt,
			TotalDamageTaken: raw.TotalDamageTaken,
			TopDamageTaken:   raw.TopDamageTaken,
			DPS:              raw.DPS,
			TotalShielding:   raw.TotalShielding,
		},
	}

	if len(raw.Misc) > 0 {
		var misc domain.EncounterMisc
		if err := json.Unmarshal(raw.Misc, &misc); err != nil {
			return nil, fmt.Errorf("failed to decode encounter %d misc: %w", raw.ID, errors.Join(codec.ErrDecode, err))
		}
		enc.Misc = &misc
	}

	version := raw.Version()
	columns := []struct {
		name string
		data []byte
		dst  any
	}{
		{"buffs", raw.Buffs, &enc.DamageStats.Buffs},
		{"debuffs", raw.Debuffs, &enc.DamageStats.Debuffs},
		{"applied_shield_buffs", raw.AppliedShields, &enc.DamageStats.AppliedShieldBuffs},
		{"boss_hp_log", raw.BossHPLog, &enc.DamageStats.BossHPLog},
	}
	for _, c := range columns {
		if err := codec.DecodeColumn(version, c.data, c.dst); err != nil {
			return nil, fmt.Errorf("failed to decode encounter %d %s: %w", raw.ID, c.name, err)
		}
	}

	return enc, nil
}

// Insert stores a finished encounter with its entities and listing row in
// one transaction. An encounter without a writer version is stamped with the
// running version.
func (r *EncounterRepository) Insert(ctx context.Context, enc *domain.Encounter) (int64, error) {
	misc := domain.EncounterMisc{}
	if enc.Misc != nil {
		misc = *enc.Misc
	}
	if misc.Version == "" {
		misc.Version = r.appVersion
	}
	version := misc.Version

	miscJSON, err := json.Marshal(misc)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal misc: %w", err)
	}

	stats := enc.DamageStats
	buffs, err := codec.EncodeColumn(version, stats.Buffs)
	if err != nil {
		return 0, err
	}
	debuffs, err := codec.EncodeColumn(version, stats.Debuffs)
	if err != nil {
		return 0, err
	}
	shields, err := codec.EncodeColumn(version, stats.AppliedShieldBuffs)
	if err != nil {
		return 0, err
	}
	bossHPLog, err := codec.EncodeColumn(version, stats.BossHPLog)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO encounter (
			last_combat_packet, fight_start, local_player, current_boss, duration,
			total_damage_dealt, top_damage_dealt, total_damage_taken, top_damage_taken, dps, total_shielding,
			buffs, debuffs, applied_shield_buffs, boss_hp_log, misc, cleared
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		enc.LastCombatPacket, enc.FightStart, nullString(enc.LocalPlayer), nullString(enc.CurrentBossName), enc.Duration,
		stats.TotalDamageDealt, stats.TopDamageDealt, stats.TotalDamageTaken, stats.TopDamageTaken, stats.DPS, stats.TotalShielding,
		buffs, debuffs, shields, bossHPLog, string(miscJSON), enc.Cleared,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert encounter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read encounter id: %w", err)
	}

	if err := insertEntities(ctx, tx, id, enc.Entities); err != nil {
		return 0, err
	}
	if err := insertPreview(ctx, tx, id, enc, &misc); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit encounter: %w", err)
	}

	r.logger.Debug().
		Int64("encounter_id", id).
		Str("version", version).
		Int("entities", len(enc.Entities)).
		Msg("encounter stored")
	return id, nil
}

func insertEntities(ctx context.Context, tx *sql.Tx, encounterID int64, entities []domain.EncounterEntity) error {
	if len(entities) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entity (
			name, encounter_id, entity_id, character_id, npc_id, entity_type, class_id, class, gear_score,
			current_hp, max_hp, is_dead, skills, damage_stats, skill_stats, dps
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare entity insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < len(entities); i += constants.DBBatchSize {
		end := min(i+constants.DBBatchSize, len(entities))
		for _, ent := range entities[i:end] {
			skills, err := json.Marshal(ent.Skills)
			if err != nil {
				return fmt.Errorf("failed to marshal skills of %s: %w", ent.Name, err)
			}
			damageStats, err := json.Marshal(ent.DamageStats)
			if err != nil {
				return fmt.Errorf("failed to marshal damage stats of %s: %w", ent.Name, err)
			}
			skillStats, err := json.Marshal(ent.SkillStats)
			if err != nil {
				return fmt.Errorf("failed to marshal skill stats of %s: %w", ent.Name, err)
			}

			_, err = stmt.ExecContext(ctx,
				ent.Name, encounterID, int64(ent.EntityID), int64(ent.CharacterID), ent.NpcID, ent.EntityType,
				ent.ClassID, ent.Class, ent.GearScore, ent.CurrentHP, ent.MaxHP, ent.IsDead,
				string(skills), string(damageStats), string(skillStats), ent.DamageStats.DPS,
			)
			if err != nil {
				return fmt.Errorf("failed to insert entity %s: %w", ent.Name, err)
			}
		}
	}
	return nil
}

// Get loads one encounter with its entities.
func (r *EncounterRepository) Get(ctx context.Context, id int64) (*domain.Encounter, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+encounterColumns+` FROM encounter WHERE id = ?`, id)
	raw, err := scanRawEncounter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEncounterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get encounter %d: %w", id, err)
	}

	enc, err := raw.Decode()
	if err != nil {
		return nil, err
	}

	entities, err := r.entities(ctx, id)
	if err != nil {
		return nil, err
	}
	enc.Entities = entities
	return enc, nil
}

func (r *EncounterRepository) entities(ctx context.Context, encounterID int64) ([]domain.EncounterEntity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, entity_id, character_id, npc_id, entity_type, class_id, class, gear_score,
			current_hp, max_hp, is_dead, skills, damage_stats, skill_stats
		FROM entity
		WHERE encounter_id = ?
		ORDER BY dps DESC, name`, encounterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities of encounter %d: %w", encounterID, err)
	}
	defer rows.Close()

	var entities []domain.EncounterEntity
	for rows.Next() {
		var (
			ent                             domain.EncounterEntity
			entityID, characterID           int64
			class                           sql.NullString
			skills, damageStats, skillStats sql.NullString
		)
		err := rows.Scan(
			&ent.Name, &entityID, &characterID, &ent.NpcID, &ent.EntityType, &ent.ClassID, &class, &ent.GearScore,
			&ent.CurrentHP, &ent.MaxHP, &ent.IsDead, &skills, &damageStats, &skillStats,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		ent.EntityID = uint64(entityID)
		ent.CharacterID = uint64(characterID)
		ent.Class = class.String

		columns := []struct {
			data sql.NullString
			dst  any
		}{
			{skills, &ent.Skills},
			{damageStats, &ent.DamageStats},
			{skillStats, &ent.SkillStats},
		}
		for _, c := range columns {
			if !c.data.Valid || c.data.String == "" {
				continue
			}
			if err := json.Unmarshal([]byte(c.data.String), c.dst); err != nil {
				return nil, fmt.Errorf("failed to decode entity %s of encounter %d: %w", ent.Name, encounterID, errors.Join(codec.ErrDecode, err))
			}
		}
		entities = append(entities, ent)
	}
	return entities, rows.Err()
}

// RawColumns returns the stored rows for ids without decoding them. Unknown
// ids are skipped.
func (r *EncounterRepository) RawColumns(ctx context.Context, ids []int64) ([]*RawEncounter, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+encounterColumns+` FROM encounter WHERE id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query encounters: %w", err)
	}
	defer rows.Close()

	var raws []*RawEncounter
	for rows.Next() {
		raw, err := scanRawEncounter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan encounter: %w", err)
		}
		raws = append(raws, raw)
	}
	return raws, rows.Err()
}

func (r *EncounterRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM encounter WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete encounter %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete encounter %d: %w", id, err)
	}
	if n == 0 {
		return ErrEncounterNotFound
	}
	return nil
}

func (r *EncounterRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM encounter`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count encounters: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"combat-meter/internal/constants"
	"combat-meter/internal/domain"
)

type ListFilter struct {
	Search   string
	Page     int
	PageSize int
}

type PreviewPage struct {
	Previews []domain.EncounterPreview `json:"encounters"`
	Total    int                       `json:"totalEncounters"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"pageSize"`
}

// RaidMetricRow is the local player's view of one cleared encounter.
type RaidMetricRow struct {
	Boss     string
	Support  bool
	DPS      int64
	AP       sql.NullFloat64
	Brand    sql.NullFloat64
	Identity sql.NullFloat64
	Hyper    sql.NullFloat64
}

// players are stored as "Class:Name" pairs so both halves are searchable.
func encodePlayers(entities []domain.EncounterEntity) string {
	var players []string
	for _, ent := range entities {
		if ent.EntityType != domain.EntityTypePlayer {
			continue
		}
		players = append(players, ent.Class+":"+ent.Name)
	}
	return strings.Join(players, ",")
}

func decodePlayers(players string) (classes, names []string) {
	if players == "" {
		return nil, nil
	}
	for _, p := range strings.Split(players, ",") {
		class, name, ok := strings.Cut(p, ":")
		if !ok {
			name, class = class, ""
		}
		classes = append(classes, class)
		names = append(names, name)
	}
	return classes, names
}

func insertPreview(ctx context.Context, tx *sql.Tx, id int64, enc *domain.Encounter, misc *domain.EncounterMisc) error {
	var myDPS int64
	for _, ent := range enc.Entities {
		if ent.Name == enc.LocalPlayer && ent.EntityType == domain.EntityTypePlayer {
			myDPS = ent.DamageStats.DPS
			break
		}
	}

	var ap, brand, identity, hyper sql.NullFloat64
	support := misc.SupportUptimes != nil
	if support {
		u := misc.SupportUptimes
		ap = sql.NullFloat64{Float64: u.AP, Valid: true}
		brand = sql.NullFloat64{Float64: u.Brand, Valid: true}
		identity = sql.NullFloat64{Float64: u.Identity, Valid: true}
		hyper = sql.NullFloat64{Float64: u.Hyper, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO encounter_preview (
			id, fight_start, current_boss, duration, players, local_player, my_dps, cleared,
			my_support, support_ap, support_brand, support_identity, support_hyper
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, enc.FightStart, nullString(enc.CurrentBossName), enc.Duration, encodePlayers(enc.Entities),
		nullString(enc.LocalPlayer), myDPS, enc.Cleared,
		support, ap, brand, identity, hyper,
	)
	if err != nil {
		return fmt.Errorf("failed to insert encounter preview: %w", err)
	}
	return nil
}

var searchCleaner = strings.NewReplacer(`"`, "", "*", "", ":", " ", ",", " ")

// searchQuery turns free text into an FTS prefix query where every word must match.
func searchQuery(search string) string {
	var terms []string
	for _, word := range strings.Fields(search) {
		word = searchCleaner.Replace(word)
		for _, part := range strings.Fields(word) {
			terms = append(terms, `"`+part+`*"`)
		}
	}
	return strings.Join(terms, " ")
}

// ListPreviews pages through the listing rows, newest first. Search matches
// boss, class and player names by word prefix.
func (r *EncounterRepository) ListPreviews(ctx context.Context, filter ListFilter) (*PreviewPage, error) {
	page := max(filter.Page, 1)
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	pageSize = min(pageSize, constants.MaxPageSize)

	where := ""
	var args []any
	if q := searchQuery(filter.Search); q != "" {
		where = `WHERE id IN (SELECT rowid FROM encounter_search WHERE encounter_search MATCH ?)`
		args = append(args, q)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM encounter_preview `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count encounter previews: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, fight_start, current_boss, duration, players, local_player, my_dps, cleared
		FROM encounter_preview `+where+`
		ORDER BY fight_start DESC, id DESC
		LIMIT ? OFFSET ?`,
		append(args, pageSize, (page-1)*pageSize)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list encounter previews: %w", err)
	}
	defer rows.Close()

	result := &PreviewPage{
		Previews: []domain.EncounterPreview{},
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for rows.Next() {
		var (
			p                          domain.EncounterPreview
			boss, players, localPlayer sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.FightStart, &boss, &p.Duration, &players, &localPlayer, &p.MyDPS, &p.Cleared); err != nil {
			return nil, fmt.Errorf("failed to scan encounter preview: %w", err)
		}
		p.BossName = boss.String
		p.LocalPlayer = localPlayer.String
		p.Classes, p.Names = decodePlayers(players.String)
		result.Previews = append(result.Previews, p)
	}
	return result, rows.Err()
}

// RaidMetricRows returns the cleared encounters that have a local player.
func (r *EncounterRepository) RaidMetricRows(ctx context.Context) ([]RaidMetricRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT current_boss, my_support, my_dps, support_ap, support_brand, support_identity, support_hyper
		FROM encounter_preview
		WHERE cleared = 1 AND current_boss IS NOT NULL AND local_player IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query raid metrics: %w", err)
	}
	defer rows.Close()

	var metrics []RaidMetricRow
	for rows.Next() {
		var m RaidMetricRow
		if err := rows.Scan(&m.Boss, &m.Support, &m.DPS, &m.AP, &m.Brand, &m.Identity, &m.Hyper); err != nil {
			return nil, fmt.Errorf("failed to scan raid metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

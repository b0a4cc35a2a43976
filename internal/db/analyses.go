package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/spur.analyzer/internal/spur"
)

// DefaultHistoryLimit caps RecentAnalyses when the caller passes no limit.
const DefaultHistoryLimit = 50

// Analysis is one recorded scene computation.
type Analysis struct {
	ID            string      `json:"id"`
	Params        spur.Params `json:"params"`
	MixerSource   string      `json:"mixer_source"`
	LineCount     int         `json:"line_count"`
	CrossingCount int         `json:"crossing_count"`
	CreatedAt     time.Time   `json:"created_at"`
}

// RecordAnalysis stores a summary of scene, computed with the table named
// source, and returns the new record.
func (db *DB) RecordAnalysis(scene *spur.Scene, source string) (*Analysis, error) {
	if scene == nil {
		return nil, fmt.Errorf("scene is required")
	}
	a := &Analysis{
		ID:            uuid.NewString(),
		Params:        scene.Params,
		MixerSource:   source,
		LineCount:     len(scene.Lines),
		CrossingCount: len(scene.Crossings()),
		CreatedAt:     db.clock.Now().UTC().Truncate(time.Second),
	}
	p := a.Params
	_, err := db.Exec(`
		INSERT INTO analyses (
			id, rf_min, rf_max, if_min, if_max, lo, max_harm, use_alpha,
			mixer_source, line_count, crossing_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, p.RFMin, p.RFMax, p.IFMin, p.IFMax, p.LO, p.MaxHarm, p.UseAlpha,
		a.MixerSource, a.LineCount, a.CrossingCount, a.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record analysis: %w", err)
	}
	return a, nil
}

// RecentAnalyses returns up to limit analyses, newest first. A limit of
// zero or less uses DefaultHistoryLimit.
func (db *DB) RecentAnalyses(limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := db.Query(`
		SELECT id, rf_min, rf_max, if_min, if_max, lo, max_harm, use_alpha,
			mixer_source, line_count, crossing_count, created_at
		FROM analyses
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var (
			a       Analysis
			created int64
		)
		if err := rows.Scan(
			&a.ID,
			&a.Params.RFMin,
			&a.Params.RFMax,
			&a.Params.IFMin,
			&a.Params.IFMax,
			&a.Params.LO,
			&a.Params.MaxHarm,
			&a.Params.UseAlpha,
			&a.MixerSource,
			&a.LineCount,
			&a.CrossingCount,
			&created,
		); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

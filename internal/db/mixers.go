package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/spur.analyzer/internal/harmonics"
)

// Mixer is a stored harmonics table. The rows are kept as the same CSV
// text a mixer file holds.
type Mixer struct {
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Size      int       `json:"size"`
	RowsCSV   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Table parses the stored rows.
func (m *Mixer) Table() (*harmonics.Table, error) {
	t, err := harmonics.Parse(strings.NewReader(m.RowsCSV))
	if err != nil {
		return nil, &harmonics.FileError{Path: m.Name, Err: err}
	}
	return t, nil
}

// SaveMixer stores t under name, replacing any mixer of the same name.
func (db *DB) SaveMixer(name, source string, t *harmonics.Table) error {
	if name == "" {
		return fmt.Errorf("mixer name is required")
	}
	if t == nil {
		return fmt.Errorf("mixer %s: table is required", name)
	}
	_, err := db.Exec(`
		INSERT INTO mixers (name, source, rows_csv, size, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source = excluded.source,
			rows_csv = excluded.rows_csv,
			size = excluded.size,
			created_at = excluded.created_at`,
		name, source, t.CSV(), t.Size(), db.clock.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save mixer %s: %w", name, err)
	}
	return nil
}

// Mixer returns the stored mixer called name, or ErrNotFound.
func (db *DB) Mixer(name string) (*Mixer, error) {
	var (
		m       Mixer
		created int64
	)
	err := db.QueryRow(`SELECT name, source, rows_csv, size, created_at FROM mixers WHERE name = ?`, name).
		Scan(&m.Name, &m.Source, &m.RowsCSV, &m.Size, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mixer %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mixer %s: %w", name, err)
	}
	m.CreatedAt = time.Unix(created, 0).UTC()
	return &m, nil
}

// ListMixers returns every stored mixer ordered by name. RowsCSV is left
// empty; use Mixer to fetch the table.
func (db *DB) ListMixers() ([]Mixer, error) {
	rows, err := db.Query(`SELECT name, source, size, created_at FROM mixers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list mixers: %w", err)
	}
	defer rows.Close()

	var mixers []Mixer
	for rows.Next() {
		var (
			m       Mixer
			created int64
		)
		if err := rows.Scan(&m.Name, &m.Source, &m.Size, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(created, 0).UTC()
		mixers = append(mixers, m)
	}
	return mixers, rows.Err()
}

// DeleteMixer removes the stored mixer called name.
func (db *DB) DeleteMixer(name string) error {
	res, err := db.Exec(`DELETE FROM mixers WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete mixer %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mixer %s: %w", name, ErrNotFound)
	}
	return nil
}

package sqlite

import (
	"database/sql"
	"fmt"
	"os"
)

// LabelCount is the number of scans with one scan type label.
type LabelCount struct {
	Label string
	Count int
}

// RunSummary describes one imported run.
type RunSummary struct {
	RunID        string
	SourceFile   string
	CreationDate string
	Scans        int
	DIA          int
	Scored       int
	// MeanInterference is valid only when Scored > 0.
	MeanInterference float64
	Labels           []LabelCount
}

// Summarize reads per-run statistics from a database written by Writer.
func Summarize(path string) ([]RunSummary, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database does not exist: %s", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT RunId, COALESCE(SourceFile, ''), COALESCE(CreationDate, '') FROM RunTable ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.SourceFile, &r.CreationDate); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to read run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		if err := summarizeRun(db, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func summarizeRun(db *sql.DB, r *RunSummary) error {
	var dia sql.NullInt64
	var mean sql.NullFloat64
	err := db.QueryRow(`
		SELECT COUNT(*), SUM(IsDIA), COUNT(InterferenceScore), AVG(InterferenceScore)
		FROM ScanTable WHERE RunId = ?
	`, r.RunID).Scan(&r.Scans, &dia, &r.Scored, &mean)
	if err != nil {
		return fmt.Errorf("failed to summarize run %s: %w", r.RunID, err)
	}
	r.DIA = int(dia.Int64)
	r.MeanInterference = mean.Float64

	rows, err := db.Query(`
		SELECT ScanType, COUNT(*) FROM ScanTable
		WHERE RunId = ? GROUP BY ScanType ORDER BY COUNT(*) DESC, ScanType
	`, r.RunID)
	if err != nil {
		return fmt.Errorf("failed to count scan types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return fmt.Errorf("failed to read scan type count: %w", err)
		}
		r.Labels = append(r.Labels, lc)
	}
	return rows.Err()
}

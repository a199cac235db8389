// Package sqlite provides SQLite database writing for classified scans
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/ScanKey/pkg/core"
	"github.com/ChrisMcGann/ScanKey/pkg/filter"
)

const (
	// Date format for HeaderTable and RunTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Schema version written to HeaderTable
	schemaVersion = 1
	// DefaultChunkSize is the number of scans committed per transaction
	DefaultChunkSize = 10000
)

// Options configures a Writer.
type Options struct {
	// RunID identifies this import; a random UUID is used when empty.
	RunID      string
	SourceFile string
	// Filter is applied to ion arrays before they are stored.
	Filter    filter.Config
	ChunkSize int
}

// Writer handles writing scans to SQLite database files
type Writer struct {
	db         *sql.DB
	outputPath string
	runID      string
	filter     filter.Config
	chunkSize  int

	scanStmt *sql.Stmt
	tx       *sql.Tx
	txStmt   *sql.Stmt
	pending  int
	count    int
	// failed is set once an insert fails; the open chunk is rolled back and
	// nothing more is written.
	failed error
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string, opts Options) (*Writer, error) {
	if err := opts.Filter.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		runID:      opts.RunID,
		filter:     opts.Filter,
		chunkSize:  opts.ChunkSize,
	}
	if w.runID == "" {
		w.runID = uuid.NewString()
	}
	if w.chunkSize <= 0 {
		w.chunkSize = DefaultChunkSize
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	_, err = db.Exec(`INSERT INTO RunTable (RunId, SourceFile, CreationDate, ScanCount) VALUES (?, ?, ?, 0)`,
		w.runID, opts.SourceFile, time.Now().Format(headerDateFormat))
	if err != nil {
		w.scanStmt.Close()
		db.Close()
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return w, nil
}

// RunID returns the identifier of the run being written.
func (w *Writer) RunID() string {
	return w.runID
}

// Count returns the number of scans written so far.
func (w *Writer) Count() int {
	return w.count
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS RunTable (
		RunId TEXT PRIMARY KEY,
		SourceFile TEXT,
		CreationDate TEXT,
		ScanCount INTEGER
	);

	CREATE TABLE IF NOT EXISTS ScanTable (
		ScanId INTEGER PRIMARY KEY AUTOINCREMENT,
		RunId TEXT REFERENCES RunTable(RunId),
		ScanNumber INTEGER,
		ElutionTime DOUBLE,
		MSLevel INTEGER,
		ScanType TEXT,
		IsDIA BOOL,
		IsHighResolution BOOL,
		IsSIM BOOL,
		IsZoom BOOL,
		MRMKind TEXT,
		ParentMZ DOUBLE,
		IsolationWidth DOUBLE,
		ChargeState INTEGER,
		InterferenceScore DOUBLE,
		ActivationMethod TEXT,
		BasePeakMZ DOUBLE,
		BasePeakIntensity DOUBLE,
		TotalIonCurrent DOUBLE,
		LowMass DOUBLE,
		HighMass DOUBLE,
		blobMass BLOB,
		blobIntensity BLOB
	);

	CREATE INDEX IF NOT EXISTS ScanTableRun ON ScanTable (RunId, ScanNumber);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		LastModifiedDate TEXT,
		Description TEXT
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.scanStmt, err = w.db.Prepare(`
		INSERT INTO ScanTable (
			RunId, ScanNumber, ElutionTime, MSLevel, ScanType,
			IsDIA, IsHighResolution, IsSIM, IsZoom, MRMKind,
			ParentMZ, IsolationWidth, ChargeState, InterferenceScore, ActivationMethod,
			BasePeakMZ, BasePeakIntensity, TotalIonCurrent, LowMass, HighMass,
			blobMass, blobIntensity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare scan statement: %w", err)
	}

	return nil
}

// WriteScan writes a single scan to the database. Inserts are grouped into
// transactions of ChunkSize scans.
func (w *Writer) WriteScan(ctx context.Context, rec *core.ScanRecord, mzs, intensities []float64) error {
	if w.failed != nil {
		return fmt.Errorf("writer stopped after earlier failure: %w", w.failed)
	}
	if w.filter.Enabled() {
		var err error
		mzs, intensities, err = w.filter.ApplyArrays(mzs, intensities)
		if err != nil {
			return fmt.Errorf("failed to filter scan %d: %w", rec.ScanNumber, err)
		}
	}

	if w.tx == nil {
		tx, err := w.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		w.tx = tx
		w.txStmt = tx.StmtContext(ctx, w.scanStmt)
	}

	_, err := w.txStmt.ExecContext(ctx,
		w.runID,                         // RunId
		rec.ScanNumber,                  // ScanNumber
		rec.ElutionTimeMin,              // ElutionTime
		rec.MSLevel,                     // MSLevel
		rec.ScanTypeLabel,               // ScanType
		rec.IsDIA,                       // IsDIA
		rec.IsHighResolution,            // IsHighResolution
		rec.IsSIMScan,                   // IsSIM
		rec.IsZoomScan,                  // IsZoom
		rec.MRM.String(),                // MRMKind
		optional(rec.ParentIonMZ),       // ParentMZ
		optional(rec.IsolationWidthMZ),  // IsolationWidth
		optionalInt(rec.ChargeState),    // ChargeState
		optional(rec.InterferenceScore), // InterferenceScore
		rec.ActivationMethod,            // ActivationMethod
		rec.BasePeakMZ,                  // BasePeakMZ
		rec.BasePeakIntensity,           // BasePeakIntensity
		rec.TotalIonCurrent,             // TotalIonCurrent
		rec.LowMass,                     // LowMass
		rec.HighMass,                    // HighMass
		encodeFloat64(mzs),              // blobMass
		encodeFloat64(intensities),      // blobIntensity
	)
	if err != nil {
		err = fmt.Errorf("failed to insert scan %d: %w", rec.ScanNumber, err)
		w.rollback()
		w.failed = err
		return err
	}

	w.count++
	w.pending++
	if w.pending >= w.chunkSize {
		return w.commit()
	}
	return nil
}

func (w *Writer) commit() error {
	if w.tx == nil {
		return nil
	}
	w.txStmt.Close()
	err := w.tx.Commit()
	w.tx, w.txStmt, w.pending = nil, nil, 0
	if err != nil {
		return fmt.Errorf("failed to commit scans: %w", err)
	}
	return nil
}

// rollback discards the open chunk.
func (w *Writer) rollback() {
	if w.tx == nil {
		return
	}
	w.txStmt.Close()
	w.tx.Rollback()
	w.count -= w.pending
	w.tx, w.txStmt, w.pending = nil, nil, 0
}

// optional converts a nil pointer to SQL NULL
func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func optionalInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// encodeFloat64 encodes values as a little-endian float64 blob
func encodeFloat64(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, value := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(value))
	}
	return buf
}

// decodeFloat64 decodes a blob written by the Writer.
func decodeFloat64(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(blob))
	}
	values := make([]float64, len(blob)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return values, nil
}

// Finalize commits pending scans, records the run's scan count and the
// header, and closes the database. After a failed insert nothing further is
// committed; the count covers the chunks committed before it.
func (w *Writer) Finalize() error {
	if w.db == nil {
		return nil
	}
	defer func() { w.db = nil }()

	if err := w.commit(); err != nil {
		w.db.Close()
		return err
	}

	if _, err := w.db.Exec(`UPDATE RunTable SET ScanCount = ? WHERE RunId = ?`, w.count, w.runID); err != nil {
		w.db.Close()
		return fmt.Errorf("failed to update run: %w", err)
	}

	now := time.Now().Format(headerDateFormat)
	var headers int
	if err := w.db.QueryRow(`SELECT COUNT(*) FROM HeaderTable`).Scan(&headers); err != nil {
		w.db.Close()
		return fmt.Errorf("failed to read header: %w", err)
	}
	var err error
	if headers == 0 {
		_, err = w.db.Exec(`
			INSERT INTO HeaderTable (version, CreationDate, LastModifiedDate, Description)
			VALUES (?, ?, ?, ?)
		`, schemaVersion, now, now, "ScanKey scan database")
	} else {
		_, err = w.db.Exec(`UPDATE HeaderTable SET LastModifiedDate = ?`, now)
	}
	if err != nil {
		w.db.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Close prepared statements
	if w.scanStmt != nil {
		w.scanStmt.Close()
	}

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS Visit_Details (
	visit_id              INTEGER PRIMARY KEY,
	patient_id            INTEGER NOT NULL,
	sex                   TEXT,
	age_bucket            TEXT,
	heart_rate            REAL,
	bp_systolic           REAL,
	bp_diastolic          REAL,
	resp_rate             REAL,
	temperature_C         REAL,
	oxygen_saturation     REAL,
	recent_admissions_30d INTEGER DEFAULT 0,
	admitted              INTEGER DEFAULT 0,
	Admission_Date        TEXT
);

CREATE TABLE IF NOT EXISTS Triage_Notes (
	visit_id              INTEGER NOT NULL,
	patient_id            INTEGER NOT NULL,
	triage_notes_redacted TEXT,
	PRIMARY KEY (visit_id, patient_id)
);

CREATE TABLE IF NOT EXISTS ESI (
	visit_id   INTEGER NOT NULL,
	patient_id INTEGER NOT NULL,
	ESI        INTEGER,
	PRIMARY KEY (visit_id, patient_id)
);

CREATE INDEX IF NOT EXISTS idx_visit_patient ON Visit_Details (patient_id, visit_id);
`

// visitQuery joins the current visit with aggregates over the patient's earlier visits.
const visitQuery = `
WITH current_visit AS (
	SELECT
		v.visit_id, v.patient_id, v.sex, v.age_bucket,
		v.heart_rate, v.bp_systolic, v.bp_diastolic, v.resp_rate,
		v.temperature_C, v.oxygen_saturation, v.recent_admissions_30d,
		v.admitted, v.Admission_Date,
		t.triage_notes_redacted,
		e.ESI
	FROM Visit_Details v
	LEFT JOIN Triage_Notes t ON v.visit_id = t.visit_id AND v.patient_id = t.patient_id
	LEFT JOIN ESI e ON v.visit_id = e.visit_id AND v.patient_id = e.patient_id
	WHERE v.visit_id = ?
),
patient_history AS (
	SELECT
		patient_id,
		COUNT(*)          AS total_visits,
		SUM(admitted)     AS total_admissions,
		AVG(heart_rate)   AS avg_hr_history,
		AVG(bp_systolic)  AS avg_bp_sys_history,
		MAX(Admission_Date) AS last_admission_date
	FROM Visit_Details
	WHERE patient_id = (SELECT patient_id FROM current_visit)
	  AND visit_id < (SELECT visit_id FROM current_visit)
	GROUP BY patient_id
)
SELECT
	cv.*,
	COALESCE(ph.total_visits, 0)     AS historical_visit_count,
	COALESCE(ph.total_admissions, 0) AS historical_admission_count,
	ph.avg_hr_history,
	ph.avg_bp_sys_history,
	ph.last_admission_date
FROM current_visit cv
LEFT JOIN patient_history ph ON cv.patient_id = ph.patient_id
`

// Resolver implements ports.RecordResolver on the SQLite visit database.
type Resolver struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets where decode warnings go.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// Open opens (or creates) the database at path and ensures the schema exists.
// Use ":memory:" for a throwaway database.
func Open(path string, opts ...Option) (*Resolver, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=10000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r := &Resolver{db: db, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Close closes the underlying database connection.
func (r *Resolver) Close() error {
	return r.db.Close()
}

// DB exposes the connection for seeding and maintenance commands.
func (r *Resolver) DB() *sql.DB {
	return r.db
}

// Resolve loads one visit with the patient's history aggregates.
// Columns that cannot be decoded are logged and left unset.
func (r *Resolver) Resolve(ctx context.Context, visitID int64) (*domain.Resolution, error) {
	row, err := r.queryRow(ctx, visitID)
	if err != nil {
		return nil, err
	}

	rec, err := domain.DecodeRecord(row)
	if err != nil {
		r.logger.Warn("partial patient record decode", "visit_id", visitID, "error", err)
	}
	vitals, err := domain.DecodeVitals(row)
	if err != nil {
		r.logger.Warn("partial vitals decode", "visit_id", visitID, "error", err)
	}
	if rec.VisitID == 0 {
		return nil, fmt.Errorf("visit %d: row has no visit_id: %w", visitID, domain.ErrVisitNotFound)
	}
	return &domain.Resolution{Record: rec, Vitals: vitals}, nil
}

func (r *Resolver) queryRow(ctx context.Context, visitID int64) (map[string]any, error) {
	rows, err := r.db.QueryContext(ctx, visitQuery, visitID)
	if err != nil {
		return nil, fmt.Errorf("query visit %d: %w", visitID, errors.Join(domain.ErrTransient, err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query visit %d: %w", visitID, errors.Join(domain.ErrTransient, err))
		}
		return nil, fmt.Errorf("visit %d: %w", visitID, domain.ErrVisitNotFound)
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan visit %d: %w", visitID, err)
	}

	row := make(map[string]any, len(cols))
	for i, c := range cols {
		if b, ok := values[i].([]byte); ok {
			row[c] = string(b)
			continue
		}
		row[c] = values[i]
	}
	return row, nil
}

// Package store persists anomalous detections to SQLite for the history API.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/observa-labs/traffic-sentinel/internal/models"
	"github.com/observa-labs/traffic-sentinel/internal/utils"
)

// Query filters a detection history listing.
type Query struct {
	Domain   models.Domain
	Severity models.Severity
	Since    time.Time
	Until    time.Time
	Limit    int
}

const defaultListLimit = 100

// SQLiteStore is a detection sink plus the read side of the history API.
// Safe for concurrent use; database/sql serialises access.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS schema_versions (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS detections (
		id TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		window_id INTEGER NOT NULL,
		anomaly_type TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		risk_score REAL NOT NULL DEFAULT 0,
		failure_probability REAL NOT NULL DEFAULT 0,
		impact_score REAL NOT NULL DEFAULT 0,
		root_cause TEXT NOT NULL DEFAULT '',
		cause_confidence REAL NOT NULL DEFAULT 0,
		degraded INTEGER NOT NULL DEFAULT 0,
		dominant_endpoint TEXT NOT NULL DEFAULT '',
		dominant_method TEXT NOT NULL DEFAULT '',
		features TEXT NOT NULL,
		suggestions TEXT NOT NULL DEFAULT '[]',
		conditions TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_detections_domain_created
		ON detections (domain, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_detections_severity
		ON detections (severity)`,
}

// Open opens (or creates) the database at path and applies migrations.
func Open(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, utils.NewAppError("store.Open", "open database", err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	for i, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return utils.NewAppError("store.migrate", fmt.Sprintf("migration %d", i+1), err)
		}
	}
	var applied int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = 1`).Scan(&applied); err != nil {
		return utils.NewAppError("store.migrate", "read schema version", err)
	}
	if applied == 0 {
		_, err := s.db.Exec(`INSERT INTO schema_versions (version, applied_at) VALUES (1, ?)`,
			time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return utils.NewAppError("store.migrate", "record schema version", err)
		}
	}
	return nil
}

// OnDetection persists anomalous, first-seen detections. Clean windows and
// deduplicated repeats are skipped so history stays readable.
func (s *SQLiteStore) OnDetection(ctx context.Context, det models.Detection) error {
	if !det.IsAnomaly || det.Duplicate {
		return nil
	}
	features, err := json.Marshal(det.Vector)
	if err != nil {
		return utils.NewAppError("store.OnDetection", "encode features", err)
	}
	suggestions, err := json.Marshal(det.Suggestions)
	if err != nil {
		return utils.NewAppError("store.OnDetection", "encode suggestions", err)
	}
	conditions, err := json.Marshal(det.Cause.ConditionsMet)
	if err != nil {
		return utils.NewAppError("store.OnDetection", "encode conditions", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO detections (
		id, domain, window_id, anomaly_type, severity, confidence,
		risk_score, failure_probability, impact_score,
		root_cause, cause_confidence, degraded,
		dominant_endpoint, dominant_method,
		features, suggestions, conditions, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		det.ID, string(det.Domain), det.WindowID, string(det.Type), string(det.Severity),
		det.Threshold.Confidence, det.Hybrid.RiskScore, det.Hybrid.FailureProbability,
		det.Threshold.ImpactScore, string(det.Cause.Cause), det.Cause.Confidence,
		boolToInt(det.Degraded), det.Vector.DominantEndpoint, det.Vector.DominantMethod,
		string(features), string(suggestions), string(conditions),
		det.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return utils.NewAppError("store.OnDetection", "insert detection", err)
	}
	return nil
}

// Record is one persisted detection row.
type Record struct {
	ID                 string               `json:"id"`
	Domain             models.Domain        `json:"domain"`
	WindowID           uint64               `json:"window_id"`
	Type               models.AnomalyType   `json:"anomaly_type,omitempty"`
	Severity           models.Severity      `json:"severity"`
	Confidence         float64              `json:"confidence"`
	RiskScore          float64              `json:"risk_score"`
	FailureProbability float64              `json:"failure_probability"`
	ImpactScore        float64              `json:"impact_score"`
	RootCause          models.Cause         `json:"root_cause"`
	CauseConfidence    float64              `json:"cause_confidence"`
	Degraded           bool                 `json:"degraded"`
	DominantEndpoint   string               `json:"dominant_endpoint"`
	DominantMethod     string               `json:"dominant_method"`
	Vector             models.FeatureVector `json:"features"`
	Suggestions        []models.Suggestion  `json:"suggestions,omitempty"`
	ConditionsMet      []string             `json:"conditions_met,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
}

// List returns persisted detections newest first.
func (s *SQLiteStore) List(ctx context.Context, q Query) ([]Record, error) {
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultListLimit
	}
	query := `SELECT id, domain, window_id, anomaly_type, severity, confidence,
		risk_score, failure_probability, impact_score,
		root_cause, cause_confidence, degraded,
		dominant_endpoint, dominant_method,
		features, suggestions, conditions, created_at
	FROM detections WHERE 1=1`
	args := []any{}
	if q.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, string(q.Domain))
	}
	if q.Severity != "" {
		query += ` AND severity = ?`
		args = append(args, string(q.Severity))
	}
	if !q.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, q.Since.UTC().Format(time.RFC3339Nano))
	}
	if !q.Until.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, q.Until.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError("store.List", "query detections", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.NewAppError("store.List", "iterate detections", err)
	}
	return records, nil
}

// Get fetches one detection by id; sql.ErrNoRows passes through for the API
// layer to map to a 404.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, domain, window_id, anomaly_type, severity, confidence,
		risk_score, failure_probability, impact_score,
		root_cause, cause_confidence, degraded,
		dominant_endpoint, dominant_method,
		features, suggestions, conditions, created_at
	FROM detections WHERE id = ?`, id)
	return scanRecord(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec                              Record
		domain, anomalyType, severity    string
		rootCause, features, suggestions string
		conditions, createdAt            string
		degraded                         int
	)
	err := row.Scan(&rec.ID, &domain, &rec.WindowID, &anomalyType, &severity,
		&rec.Confidence, &rec.RiskScore, &rec.FailureProbability, &rec.ImpactScore,
		&rootCause, &rec.CauseConfidence, &degraded,
		&rec.DominantEndpoint, &rec.DominantMethod,
		&features, &suggestions, &conditions, &createdAt)
	if err != nil {
		return Record{}, err
	}
	rec.Domain = models.Domain(domain)
	rec.Type = models.AnomalyType(anomalyType)
	rec.Severity = models.Severity(severity)
	rec.RootCause = models.Cause(rootCause)
	rec.Degraded = degraded != 0
	if err := json.Unmarshal([]byte(features), &rec.Vector); err != nil {
		return Record{}, utils.NewAppError("store.scan", "decode features", err)
	}
	if err := json.Unmarshal([]byte(suggestions), &rec.Suggestions); err != nil {
		return Record{}, utils.NewAppError("store.scan", "decode suggestions", err)
	}
	if err := json.Unmarshal([]byte(conditions), &rec.ConditionsMet); err != nil {
		return Record{}, utils.NewAppError("store.scan", "decode conditions", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Record{}, utils.NewAppError("store.scan", "parse created_at", err)
	}
	rec.CreatedAt = ts
	return rec, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/securemon/internal/domain"
	"github.com/hamed0406/securemon/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// timeLayout is how timestamps are stored. It matches SQLite's CURRENT_TIMESTAMP
// (UTC, space separated) so probe-assigned and store-assigned values compare as text.
const timeLayout = "2006-01-02 15:04:05.000"

// parseLayout accepts both the millisecond form and CURRENT_TIMESTAMP's whole seconds.
const parseLayout = "2006-01-02 15:04:05.999999999"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS ping_results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  host TEXT NOT NULL,
  status INTEGER NOT NULL,
  time_ms REAL NOT NULL,
  timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ping_results_timestamp ON ping_results(timestamp);

CREATE TABLE IF NOT EXISTS hsts_results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  url TEXT NOT NULL,
  status TEXT NOT NULL,
  header TEXT,
  timestamp TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS forward_secrecy_results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  hostname TEXT NOT NULL,
  status TEXT NOT NULL,
  error_message TEXT,
  timestamp TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS mtbf_results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  url TEXT NOT NULL,
  mtbf REAL NOT NULL,
  failures INTEGER NOT NULL,
  timestamp TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens (creating if needed) the SQLite file at path. Writers from
// different probes each take their own pooled connection; WAL mode plus a busy
// timeout lets them queue on the file lock instead of failing.
func New(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	dsn := path
	memory := path == ":memory:"
	if !memory {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if memory {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctxPing); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close folds the WAL back into the main file before closing so the database
// is a single self-contained file afterwards.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	return multierr.Append(err, s.db.Close())
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ---- RecordStore ----

func (s *Store) AppendPing(ctx context.Context, r *domain.PingRecord) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ping_results (host, status, time_ms, timestamp) VALUES (?, ?, ?, ?)`,
		r.Host, r.Status, r.TimeMS, formatTime(r.Timestamp))
	if err != nil {
		return fmt.Errorf("insert ping: %w", err)
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

func (s *Store) AppendHSTS(ctx context.Context, r *domain.HSTSRecord) error {
	if !r.Status.Valid() {
		return fmt.Errorf("insert hsts: %w %q", domain.ErrInvalidStatus, r.Status)
	}
	var ts string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO hsts_results (url, status, header) VALUES (?, ?, ?) RETURNING id, timestamp`,
		r.URL, string(r.Status), r.Header).Scan(&r.ID, &ts)
	if err != nil {
		return fmt.Errorf("insert hsts: %w", err)
	}
	r.Timestamp = s.parseTime(ts)
	return nil
}

func (s *Store) AppendForwardSecrecy(ctx context.Context, r *domain.ForwardSecrecyRecord) error {
	if !r.Status.Valid() {
		return fmt.Errorf("insert forward secrecy: %w %q", domain.ErrInvalidStatus, r.Status)
	}
	var ts string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO forward_secrecy_results (hostname, status, error_message) VALUES (?, ?, ?) RETURNING id, timestamp`,
		r.Hostname, string(r.Status), r.ErrorMessage).Scan(&r.ID, &ts)
	if err != nil {
		return fmt.Errorf("insert forward secrecy: %w", err)
	}
	r.Timestamp = s.parseTime(ts)
	return nil
}

func (s *Store) AppendMTBF(ctx context.Context, r *domain.MTBFRecord) error {
	var ts string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO mtbf_results (url, mtbf, failures) VALUES (?, ?, ?) RETURNING id, timestamp`,
		r.URL, r.MTBF, r.Failures).Scan(&r.ID, &ts)
	if err != nil {
		return fmt.Errorf("insert mtbf: %w", err)
	}
	r.Timestamp = s.parseTime(ts)
	return nil
}

// ---- ReportStore ----

func (s *Store) PingBetween(ctx context.Context, from, to time.Time) ([]domain.PingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, host, status, time_ms, timestamp
		   FROM ping_results
		  WHERE timestamp BETWEEN ? AND ?
		  ORDER BY timestamp, id`,
		formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("query ping: %w", err)
	}
	defer rows.Close()

	var out []domain.PingRecord
	for rows.Next() {
		var (
			r  domain.PingRecord
			ts string
		)
		if err := rows.Scan(&r.ID, &r.Host, &r.Status, &r.TimeMS, &ts); err != nil {
			return nil, fmt.Errorf("scan ping: %w", err)
		}
		r.Timestamp = s.parseTime(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) HSTSResults(ctx context.Context) ([]domain.HSTSRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, status, header, timestamp FROM hsts_results ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query hsts: %w", err)
	}
	defer rows.Close()

	var out []domain.HSTSRecord
	for rows.Next() {
		var (
			r      domain.HSTSRecord
			status string
			header sql.NullString
			ts     string
		)
		if err := rows.Scan(&r.ID, &r.URL, &status, &header, &ts); err != nil {
			return nil, fmt.Errorf("scan hsts: %w", err)
		}
		r.Status = domain.Status(status)
		r.Header = nullString(header)
		r.Timestamp = s.parseTime(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ForwardSecrecyResults(ctx context.Context) ([]domain.ForwardSecrecyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hostname, status, error_message, timestamp FROM forward_secrecy_results ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query forward secrecy: %w", err)
	}
	defer rows.Close()

	var out []domain.ForwardSecrecyRecord
	for rows.Next() {
		var (
			r      domain.ForwardSecrecyRecord
			status string
			msg    sql.NullString
			ts     string
		)
		if err := rows.Scan(&r.ID, &r.Hostname, &status, &msg, &ts); err != nil {
			return nil, fmt.Errorf("scan forward secrecy: %w", err)
		}
		r.Status = domain.Status(status)
		r.ErrorMessage = nullString(msg)
		r.Timestamp = s.parseTime(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) MTBFResults(ctx context.Context) ([]domain.MTBFRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, mtbf, failures, timestamp FROM mtbf_results ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query mtbf: %w", err)
	}
	defer rows.Close()

	var out []domain.MTBFRecord
	for rows.Next() {
		var (
			r  domain.MTBFRecord
			ts string
		)
		if err := rows.Scan(&r.ID, &r.URL, &r.MTBF, &r.Failures, &ts); err != nil {
			return nil, fmt.Errorf("scan mtbf: %w", err)
		}
		r.Timestamp = s.parseTime(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func (s *Store) parseTime(v string) time.Time {
	t, err := time.ParseInLocation(parseLayout, v, time.UTC)
	if err != nil {
		s.log.Warn("sqlite_bad_timestamp", zap.String("value", v), zap.Error(err))
		return time.Time{}
	}
	return t
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

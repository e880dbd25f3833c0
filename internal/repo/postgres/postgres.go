package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/securemon/internal/domain"
	"github.com/hamed0406/securemon/internal/repo"
)

var _ repo.Store = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS ping_results (
  id          BIGSERIAL PRIMARY KEY,
  host        TEXT NOT NULL,
  status      SMALLINT NOT NULL,
  time_ms     DOUBLE PRECISION NOT NULL,
  "timestamp" TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ping_results_timestamp ON ping_results ("timestamp");

CREATE TABLE IF NOT EXISTS hsts_results (
  id          BIGSERIAL PRIMARY KEY,
  url         TEXT NOT NULL,
  status      TEXT NOT NULL,
  header      TEXT NULL,
  "timestamp" TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS forward_secrecy_results (
  id            BIGSERIAL PRIMARY KEY,
  hostname      TEXT NOT NULL,
  status        TEXT NOT NULL,
  error_message TEXT NULL,
  "timestamp"   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS mtbf_results (
  id          BIGSERIAL PRIMARY KEY,
  url         TEXT NOT NULL,
  mtbf        DOUBLE PRECISION NOT NULL,
  failures    INTEGER NOT NULL,
  "timestamp" TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ---- RecordStore ----

func (s *Store) AppendPing(ctx context.Context, r *domain.PingRecord) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ping_results (host, status, time_ms, "timestamp")
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		r.Host, r.Status, r.TimeMS, r.Timestamp,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert ping: %w", err)
	}
	return nil
}

func (s *Store) AppendHSTS(ctx context.Context, r *domain.HSTSRecord) error {
	if !r.Status.Valid() {
		return fmt.Errorf("insert hsts: %w %q", domain.ErrInvalidStatus, r.Status)
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO hsts_results (url, status, header)
		 VALUES ($1, $2, $3)
		 RETURNING id, "timestamp"`,
		r.URL, string(r.Status), r.Header,
	).Scan(&r.ID, &r.Timestamp)
	if err != nil {
		return fmt.Errorf("insert hsts: %w", err)
	}
	return nil
}

func (s *Store) AppendForwardSecrecy(ctx context.Context, r *domain.ForwardSecrecyRecord) error {
	if !r.Status.Valid() {
		return fmt.Errorf("insert forward secrecy: %w %q", domain.ErrInvalidStatus, r.Status)
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO forward_secrecy_results (hostname, status, error_message)
		 VALUES ($1, $2, $3)
		 RETURNING id, "timestamp"`,
		r.Hostname, string(r.Status), r.ErrorMessage,
	).Scan(&r.ID, &r.Timestamp)
	if err != nil {
		return fmt.Errorf("insert forward secrecy: %w", err)
	}
	return nil
}

func (s *Store) AppendMTBF(ctx context.Context, r *domain.MTBFRecord) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO mtbf_results (url, mtbf, failures)
		 VALUES ($1, $2, $3)
		 RETURNING id, "timestamp"`,
		r.URL, r.MTBF, r.Failures,
	).Scan(&r.ID, &r.Timestamp)
	if err != nil {
		return fmt.Errorf("insert mtbf: %w", err)
	}
	return nil
}

// ---- ReportStore ----

func (s *Store) PingBetween(ctx context.Context, from, to time.Time) ([]domain.PingRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, host, status, time_ms, "timestamp"
		   FROM ping_results
		  WHERE "timestamp" BETWEEN $1 AND $2
		  ORDER BY "timestamp", id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query ping: %w", err)
	}
	defer rows.Close()

	var out []domain.PingRecord
	for rows.Next() {
		var r domain.PingRecord
		if err := rows.Scan(&r.ID, &r.Host, &r.Status, &r.TimeMS, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan ping: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) HSTSResults(ctx context.Context) ([]domain.HSTSRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, url, status, header, "timestamp" FROM hsts_results ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query hsts: %w", err)
	}
	defer rows.Close()

	var out []domain.HSTSRecord
	for rows.Next() {
		var (
			r      domain.HSTSRecord
			status string
		)
		if err := rows.Scan(&r.ID, &r.URL, &status, &r.Header, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan hsts: %w", err)
		}
		r.Status = domain.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ForwardSecrecyResults(ctx context.Context) ([]domain.ForwardSecrecyRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, hostname, status, error_message, "timestamp" FROM forward_secrecy_results ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query forward secrecy: %w", err)
	}
	defer rows.Close()

	var out []domain.ForwardSecrecyRecord
	for rows.Next() {
		var (
			r      domain.ForwardSecrecyRecord
			status string
		)
		if err := rows.Scan(&r.ID, &r.Hostname, &status, &r.ErrorMessage, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan forward secrecy: %w", err)
		}
		r.Status = domain.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) MTBFResults(ctx context.Context) ([]domain.MTBFRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, url, mtbf, failures, "timestamp" FROM mtbf_results ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query mtbf: %w", err)
	}
	defer rows.Close()

	var out []domain.MTBFRecord
	for rows.Next() {
		var r domain.MTBFRecord
		if err := rows.Scan(&r.ID, &r.URL, &r.MTBF, &r.Failures, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan mtbf: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

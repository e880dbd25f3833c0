package repo

import (
	"context"
	"time"

	"github.com/hamed0406/securemon/internal/domain"
)

// Ports (interfaces). Probes only see the writer side, the report tooling only the reader side.

type PingWriter interface {
	AppendPing(ctx context.Context, r *domain.PingRecord) error
}

type HSTSWriter interface {
	AppendHSTS(ctx context.Context, r *domain.HSTSRecord) error
}

type ForwardSecrecyWriter interface {
	AppendForwardSecrecy(ctx context.Context, r *domain.ForwardSecrecyRecord) error
}

type MTBFWriter interface {
	AppendMTBF(ctx context.Context, r *domain.MTBFRecord) error
}

// RecordStore is the append-only sink shared by all probes. Every Append is
// committed on its own; there is no cross-record atomicity.
type RecordStore interface {
	// EnsureSchema creates the record tables if missing. Safe to call repeatedly.
	EnsureSchema(ctx context.Context) error
	PingWriter
	HSTSWriter
	ForwardSecrecyWriter
	MTBFWriter
}

// ReportStore is the read-only side used by reporting.
type ReportStore interface {
	// PingBetween returns ping rows with from <= timestamp <= to, oldest first.
	PingBetween(ctx context.Context, from, to time.Time) ([]domain.PingRecord, error)
	HSTSResults(ctx context.Context) ([]domain.HSTSRecord, error)
	ForwardSecrecyResults(ctx context.Context) ([]domain.ForwardSecrecyRecord, error)
	MTBFResults(ctx context.Context) ([]domain.MTBFRecord, error)
}

type Store interface {
	RecordStore
	ReportStore
	Close() error
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/securemon/internal/domain"
	"github.com/hamed0406/securemon/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Store keeps every record kind in its own slice. IDs are assigned per kind,
// starting at 1, the same way an autoincrement column would.
type Store struct {
	mu   sync.RWMutex
	now  func() time.Time
	ping []domain.PingRecord
	hsts []domain.HSTSRecord
	fs   []domain.ForwardSecrecyRecord
	mtbf []domain.MTBFRecord
}

func New() *Store {
	return &Store{
		now:  func() time.Time { return time.Now().UTC() },
		ping: make([]domain.PingRecord, 0, 128),
	}
}

func (m *Store) EnsureSchema(ctx context.Context) error { return nil }

func (m *Store) Close() error { return nil }

func (m *Store) AppendPing(ctx context.Context, r *domain.PingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Timestamp.IsZero() {
		r.Timestamp = m.now()
	}
	r.ID = int64(len(m.ping) + 1)
	m.ping = append(m.ping, *r)
	return nil
}

func (m *Store) AppendHSTS(ctx context.Context, r *domain.HSTSRecord) error {
	if !r.Status.Valid() {
		return fmt.Errorf("insert hsts: %w %q", domain.ErrInvalidStatus, r.Status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.hsts) + 1)
	r.Timestamp = m.now()
	m.hsts = append(m.hsts, *r)
	return nil
}

func (m *Store) AppendForwardSecrecy(ctx context.Context, r *domain.ForwardSecrecyRecord) error {
	if !r.Status.Valid() {
		return fmt.Errorf("insert forward secrecy: %w %q", domain.ErrInvalidStatus, r.Status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.fs) + 1)
	r.Timestamp = m.now()
	m.fs = append(m.fs, *r)
	return nil
}

func (m *Store) AppendMTBF(ctx context.Context, r *domain.MTBFRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.mtbf) + 1)
	r.Timestamp = m.now()
	m.mtbf = append(m.mtbf, *r)
	return nil
}

func (m *Store) PingBetween(ctx context.Context, from, to time.Time) ([]domain.PingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.PingRecord, 0, len(m.ping))
	for _, r := range m.ping {
		if r.Timestamp.Before(from) || r.Timestamp.After(to) {
			continue
		}
		out = append(out, r)
	}
	// appends are not guaranteed to arrive in timestamp order
	sortPing(out)
	return out, nil
}

func (m *Store) HSTSResults(ctx context.Context) ([]domain.HSTSRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.HSTSRecord(nil), m.hsts...), nil
}

func (m *Store) ForwardSecrecyResults(ctx context.Context) ([]domain.ForwardSecrecyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ForwardSecrecyRecord(nil), m.fs...), nil
}

func (m *Store) MTBFResults(ctx context.Context) ([]domain.MTBFRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.MTBFRecord(nil), m.mtbf...), nil
}

// Counts returns the number of stored rows per kind: ping, hsts, forward secrecy, mtbf.
func (m *Store) Counts() (int, int, int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ping), len(m.hsts), len(m.fs), len(m.mtbf)
}

func sortPing(rs []domain.PingRecord) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Timestamp.Before(rs[j].Timestamp) })
}

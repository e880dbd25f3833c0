package domain

import (
	"errors"
	"time"
)

// Status is the three-way outcome persisted by the HSTS and forward secrecy probes.
type Status string

const (
	StatusDisabled Status = "0"
	StatusEnabled  Status = "1"
	StatusError    Status = "error"
)

// Valid reports whether s is one of the persisted status values.
func (s Status) Valid() bool {
	switch s {
	case StatusDisabled, StatusEnabled, StatusError:
		return true
	}
	return false
}

// ErrInvalidStatus is returned by stores asked to persist a Status that is
// not one of the three values above.
var ErrInvalidStatus = errors.New("invalid status")

// Ping status values. Up means a reply with a parsed latency was received.
const (
	PingDown = 0
	PingUp   = 1
)

type PingRecord struct {
	ID        int64     `json:"id"`
	Host      string    `json:"host"`
	Status    int       `json:"status"`
	TimeMS    float64   `json:"time_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// HSTSRecord holds one Strict-Transport-Security observation.
// Header carries the header value on StatusEnabled and the error text on StatusError.
type HSTSRecord struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Status    Status    `json:"status"`
	Header    *string   `json:"header"`
	Timestamp time.Time `json:"timestamp"`
}

type ForwardSecrecyRecord struct {
	ID           int64     `json:"id"`
	Hostname     string    `json:"hostname"`
	Status       Status    `json:"status"`
	ErrorMessage *string   `json:"error_message"`
	Timestamp    time.Time `json:"timestamp"`
}

// MTBFRecord summarises one measurement window. MTBF is in seconds and is 0
// when fewer than two failures were observed.
type MTBFRecord struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	MTBF      float64   `json:"mtbf"`
	Failures  int       `json:"failures"`
	Timestamp time.Time `json:"timestamp"`
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

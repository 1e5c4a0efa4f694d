// Package session holds the explicit view state that each analytics
// operation receives, with a pure serialize/restore pair at the boundary.
package session

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dgnsrekt/gexboard/internal/analytics"
	"github.com/dgnsrekt/gexboard/internal/market"
)

// Session is the active symbol and view configuration.
type Session struct {
	Symbol         string                   `json:"symbol"`
	Metric         market.Metric            `json:"metric"`
	ExpirationMode analytics.ExpirationMode `json:"expiration_mode"`
	TrendFilter    analytics.TrendFilter    `json:"trend_filter"`
	RefreshSec     int                      `json:"refresh_sec"`
}

// Default is the view state a fresh install starts from.
func Default() Session {
	return Session{
		Symbol:         "SPX",
		Metric:         market.MetricGex,
		ExpirationMode: analytics.ExpirationAll,
		TrendFilter:    analytics.TrendAll,
		RefreshSec:     60,
	}
}

// Normalize replaces out-of-range fields with their defaults so a stale or
// hand-edited session file cannot wedge the view.
func (s Session) Normalize() Session {
	def := Default()
	if s.Symbol == "" {
		s.Symbol = def.Symbol
	}
	switch s.Metric {
	case market.MetricGex, market.MetricVex, market.MetricDex:
	default:
		s.Metric = def.Metric
	}
	switch s.ExpirationMode {
	case analytics.ExpirationAll, analytics.Expiration0DTE:
	default:
		s.ExpirationMode = def.ExpirationMode
	}
	switch s.TrendFilter {
	case analytics.TrendAll, analytics.TrendIncreasing, analytics.TrendDecreasing:
	default:
		s.TrendFilter = def.TrendFilter
	}
	if s.RefreshSec < 5 {
		s.RefreshSec = def.RefreshSec
	}
	return s
}

// Encode serializes a session.
func Encode(s Session) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Decode deserializes and normalizes a session.
func Decode(data []byte) (Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("decoding session: %w", err)
	}
	return s.Normalize(), nil
}

// Store persists the session to a file. It is the only place session state
// touches disk; computation never depends on it.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted session, or the default when the file is missing
// or unreadable.
func (st *Store) Load() Session {
	data, err := os.ReadFile(st.path)
	if err != nil {
		return Default()
	}
	s, err := Decode(data)
	if err != nil {
		return Default()
	}
	return s
}

// Save writes the session atomically via a temp-file rename.
func (st *Store) Save(s Session) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return os.Rename(tmp, st.path)
}

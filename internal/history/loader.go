// Package history reads date-partitioned snapshot files recorded by the
// capture side of the dashboard. Layout: {dir}/{date}/{SYMBOL}.jsonl, with
// an optional .zst suffix for zstd-compressed days.
package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexboard/internal/market"
)

var dateDirPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Loader serves historical snapshots from the local data directory.
type Loader struct {
	dir    string
	logger *zap.Logger
}

func NewLoader(dir string, logger *zap.Logger) *Loader {
	return &Loader{dir: dir, logger: logger}
}

// ListDates returns the dates that have a recorded file for the symbol,
// ascending.
func (l *Loader) ListDates(ctx context.Context, symbol string) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading history directory: %w", err)
	}

	var dates []string
	for _, entry := range entries {
		if !entry.IsDir() || !dateDirPattern.MatchString(entry.Name()) {
			continue
		}
		if l.dayFile(entry.Name(), symbol) != "" {
			dates = append(dates, entry.Name())
		}
	}
	sort.Strings(dates)
	return dates, nil
}

// LoadDay reads one day's snapshot sequence, time-ordered as recorded.
func (l *Loader) LoadDay(ctx context.Context, symbol, date string) ([]market.Snapshot, error) {
	path := l.dayFile(date, symbol)
	if path == "" {
		return nil, fmt.Errorf("no history for %s on %s", symbol, date)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		reader = dec
	}

	snaps, err := decodeJSONL(reader)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	l.logger.Info("history day loaded",
		zap.String("symbol", symbol),
		zap.String("date", date),
		zap.Int("snapshots", len(snaps)),
	)
	return snaps, nil
}

// dayFile resolves the day's file, preferring the compressed variant.
func (l *Loader) dayFile(date, symbol string) string {
	for _, name := range []string{symbol + ".jsonl.zst", symbol + ".jsonl"} {
		path := filepath.Join(l.dir, date, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func decodeJSONL(r io.Reader) ([]market.Snapshot, error) {
	scanner := bufio.NewScanner(r)

	// Snapshot lines carry full matrices; give the scanner room.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	var snaps []market.Snapshot
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var snap market.Snapshot
		if err := json.Unmarshal(line, &snap); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		snaps = append(snaps, snap)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return snaps, nil
}

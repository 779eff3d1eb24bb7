package timeseries

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"
)

var timeIndexLayouts = []string{
	TimeLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Extract turns a decoded dump into a bundle
func Extract(d *Dump) (*Bundle, error) {
	if len(d.TimeIndex) == 0 {
		return nil, ErrEmptyTimeIndex
	}

	times := make([]string, len(d.TimeIndex))
	for i, raw := range d.TimeIndex {
		ts, err := parseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("timeindex[%d]: %w", i, err)
		}
		times[i] = ts.Format(TimeLayout)
	}

	b := NewBundle(times)
	for _, f := range d.Flows {
		for _, ref := range classifyFlow(f) {
			b.add(ref.group, ref.channel, f.Sequence)
		}
	}
	for _, s := range d.Storages {
		switch storageKind(s) {
		case KindStorageElectric:
			b.add(GroupStorage, ElectricStorage, s.Content)
		case KindStorageThermal:
			b.add(GroupStorage, ThermalStorage, s.Content)
		}
	}
	return b, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeIndexLayouts {
		ts, err := time.Parse(layout, raw)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Cache stores extracted bundles. Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*Bundle, error)
	Set(ctx context.Context, key string, b *Bundle) error
}

// Extractor loads team bundles from the dumps directory
type Extractor struct {
	dumpsDir string
	cache    Cache
	logger   *slog.Logger
}

// NewExtractor creates an extractor. cache may be nil.
func NewExtractor(dumpsDir string, cache Cache, logger *slog.Logger) *Extractor {
	return &Extractor{
		dumpsDir: dumpsDir,
		cache:    cache,
		logger:   logger.With("component", "extractor"),
	}
}

// DumpsDir returns the directory dumps are read from
func (e *Extractor) DumpsDir() string {
	return e.dumpsDir
}

// Load returns the bundle of a team. A team without a dump yields nil, nil.
// A dump that cannot be decoded yields a synthetic bundle.
func (e *Extractor) Load(ctx context.Context, teamID int) (*Bundle, error) {
	path := DumpPath(e.dumpsDir, teamID)

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat dump of team %d: %w", teamID, err)
	}

	key := cacheKey(teamID, info)
	if e.cache != nil {
		cached, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.Warn("cache read failed", "team_id", teamID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	b, err := e.decode(path)
	if err != nil {
		e.logger.Warn("dump unreadable, serving synthetic data", "team_id", teamID, "path", path, "error", err)
		b = Synthetic(SyntheticHours, int64(teamID))
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, b); err != nil {
			e.logger.Warn("cache write failed", "team_id", teamID, "error", err)
		}
	}
	return b, nil
}

func (e *Extractor) decode(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d, err := ReadDump(f)
	if err != nil {
		return nil, err
	}
	return Extract(d)
}

func cacheKey(teamID int, info fs.FileInfo) string {
	return fmt.Sprintf("bundle:team:%d:%d:%d", teamID, info.ModTime().UnixNano(), info.Size())
}

var (
	ErrEmptyTimeIndex = &ExtractError{"dump has an empty time index"}
)

// ExtractError represents an extraction error
type ExtractError struct {
	msg string
}

func (e *ExtractError) Error() string {
	return e.msg
}

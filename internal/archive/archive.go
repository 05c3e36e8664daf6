package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrRecordExists is returned by Save when a record for the date is already
// archived. Records are immutable once written.
var ErrRecordExists = errors.New("record already exists for date")

const indexFile = "index.json"

// Store persists one JSON document per calendar date plus an index.json
// side table.
type Store struct {
	dir string
	loc *time.Location
}

// New creates a Store rooted at dir, keying records by calendar dates in loc.
func New(dir string, loc *time.Location) *Store {
	return &Store{dir: dir, loc: loc}
}

// Dir returns the archive directory.
func (s *Store) Dir() string {
	return s.dir
}

// DateKey formats t as YYYY-MM-DD in the store's timezone.
func (s *Store) DateKey(t time.Time) string {
	return t.In(s.loc).Format("2006-01-02")
}

// Exists reports whether a record for dateKey is archived.
func (s *Store) Exists(dateKey string) bool {
	_, err := os.Stat(s.recordPath(dateKey))
	return err == nil
}

// Save writes a record keyed by its DateString and updates the index. It
// refuses to overwrite an existing date: callers treat ErrRecordExists as a
// skip condition, not a failure.
func (s *Store) Save(rec *DailyRecord) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}

	path := s.recordPath(rec.DateString)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrRecordExists, rec.DateString)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing record %s: %w", rec.DateString, err)
	}

	// The index is advisory; a failed update never loses the record.
	if err := s.updateIndex(rec.DateString, rec.TotalNewsletters); err != nil {
		log.Printf("Failed to update index for %s: %v", rec.DateString, err)
	}
	return nil
}

// Load returns the record for dateKey, or nil when absent.
func (s *Store) Load(dateKey string) (*DailyRecord, error) {
	data, err := os.ReadFile(s.recordPath(dateKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading record %s: %w", dateKey, err)
	}

	var rec DailyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing record %s: %w", dateKey, err)
	}
	return &rec, nil
}

// LoadAll returns every archived record, newest date first.
func (s *Store) LoadAll() ([]DailyRecord, error) {
	keys, err := s.dateKeys()
	if err != nil {
		return nil, err
	}

	records := make([]DailyRecord, 0, len(keys))
	for _, key := range keys {
		rec, err := s.Load(key)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].DateString > records[j].DateString
	})
	return records, nil
}

// LatestCutoff returns 23:59:59 local time of the most recent archived date.
// The second return is false when the archive is empty, in which case the
// caller falls back to a 24-hour lookback.
func (s *Store) LatestCutoff() (time.Time, bool) {
	keys, err := s.dateKeys()
	if err != nil || len(keys) == 0 {
		return time.Time{}, false
	}

	// Lexicographic max over YYYY-MM-DD keys is the chronological max.
	latest := keys[0]
	for _, k := range keys[1:] {
		if k > latest {
			latest = k
		}
	}

	d, err := time.ParseInLocation("2006-01-02", latest, s.loc)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, s.loc), true
}

// Dates lists the archived date keys in ascending order.
func (s *Store) Dates() ([]string, error) {
	keys, err := s.dateKeys()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// RebuildIndex regenerates index.json from the primary records.
func (s *Store) RebuildIndex() error {
	records, err := s.LoadAll()
	if err != nil {
		return err
	}

	index := make(map[string]IndexEntry, len(records))
	for _, rec := range records {
		index[rec.DateString] = IndexEntry{Count: rec.TotalNewsletters, UpdatedAt: rec.SavedAt}
	}
	return s.writeIndex(index)
}

// ReadIndex returns the index.json contents, empty when the file is absent.
func (s *Store) ReadIndex() (map[string]IndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]IndexEntry{}, nil
		}
		return nil, fmt.Errorf("reading index: %w", err)
	}

	index := map[string]IndexEntry{}
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parsing index: %w", err)
	}
	return index, nil
}

func (s *Store) updateIndex(dateKey string, count int) error {
	index, err := s.ReadIndex()
	if err != nil {
		return err
	}
	index[dateKey] = IndexEntry{Count: count, UpdatedAt: time.Now()}
	return s.writeIndex(index)
}

func (s *Store) writeIndex(index map[string]IndexEntry) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, indexFile), data, 0o644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}

func (s *Store) recordPath(dateKey string) string {
	return filepath.Join(s.dir, dateKey+".json")
}

// dateKeys lists the archived date keys in directory order.
func (s *Store) dateKeys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading archive directory: %w", err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == indexFile || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	return keys, nil
}

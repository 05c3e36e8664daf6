package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"newsdigest/internal/archive"
	"newsdigest/internal/mailbox"
	"newsdigest/internal/normalize"
	"newsdigest/internal/summarize"
)

// Fetcher retrieves raw newsletter messages received at or after a cutoff.
type Fetcher interface {
	FetchSince(cutoff time.Time) ([]mailbox.RawMessage, error)
}

// Summarizer turns a normalized batch into a digest.
type Summarizer interface {
	SummarizeAll(ctx context.Context, messages []normalize.Message) (*summarize.Digest, error)
}

// Notifier delivers the outcome of a run. A nil Notifier disables delivery.
type Notifier interface {
	SendDigest(record *archive.DailyRecord) error
	SendFailure(runErr error, detail string) error
}

// Pipeline orchestrates one fetch-summarize-archive cycle.
type Pipeline struct {
	store      *archive.Store
	fetcher    Fetcher
	summarizer Summarizer
	notifier   Notifier
	loc        *time.Location

	dayInterval time.Duration
	sleep       func(time.Duration)
	now         func() time.Time
}

func New(store *archive.Store, fetcher Fetcher, summarizer Summarizer, notifier Notifier, loc *time.Location, dayInterval time.Duration) *Pipeline {
	return &Pipeline{
		store:       store,
		fetcher:     fetcher,
		summarizer:  summarizer,
		notifier:    notifier,
		loc:         loc,
		dayInterval: dayInterval,
		sleep:       time.Sleep,
		now:         time.Now,
	}
}

// Run produces today's digest. It is a no-op when today's record already
// exists or when no newsletters arrived since the last archived day. A
// failure is reported through the notifier before being returned.
func (p *Pipeline) Run(ctx context.Context) error {
	now := p.now()
	key := p.store.DateKey(now)

	if p.store.Exists(key) {
		log.Printf("Digest for %s already exists, skipping", key)
		return nil
	}

	cutoff, ok := p.store.LatestCutoff()
	if !ok {
		cutoff = now.Add(-24 * time.Hour)
		log.Printf("Empty archive, fetching the last 24 hours")
	} else {
		log.Printf("Fetching newsletters since %s", cutoff.Format(time.RFC3339))
	}

	rec, err := p.generate(ctx, key, now, cutoff, nil)
	if err != nil {
		return p.fail(err, fmt.Sprintf("run for %s, cutoff %s", key, cutoff.Format(time.RFC3339)))
	}
	if rec == nil {
		log.Printf("No newsletters since %s, nothing to do", cutoff.Format(time.RFC3339))
		return nil
	}

	if p.notifier != nil {
		if err := p.notifier.SendDigest(rec); err != nil {
			log.Printf("Failed to send digest notification: %v", err)
		}
	}

	log.Printf("Saved digest for %s (%d newsletters)", key, rec.TotalNewsletters)
	return nil
}

// Backfill generates one record per calendar day from start through today,
// skipping days that already have one. Processed days are paced apart.
func (p *Pipeline) Backfill(ctx context.Context, start time.Time) error {
	today := p.store.DateKey(p.now())

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, p.loc)
	needPause := false
	for {
		key := p.store.DateKey(day)
		if key > today {
			break
		}

		if p.store.Exists(key) {
			log.Printf("[%s] Already archived, skipping", key)
			day = day.AddDate(0, 0, 1)
			continue
		}

		// Pace only after a day that actually hit the LLM.
		if needPause && p.dayInterval > 0 {
			p.sleep(p.dayInterval)
		}

		log.Printf("[%s] Backfilling...", key)
		next := day.AddDate(0, 0, 1)
		window := func(m mailbox.RawMessage) bool {
			return !m.Date.Before(day) && m.Date.Before(next)
		}

		rec, err := p.generate(ctx, key, day, day, window)
		if err != nil {
			return p.fail(err, fmt.Sprintf("backfill for %s", key))
		}
		if rec == nil {
			log.Printf("[%s] No newsletters, nothing archived", key)
		} else {
			log.Printf("[%s] Archived %d newsletters", key, rec.TotalNewsletters)
		}
		needPause = rec != nil

		day = next
	}
	return nil
}

// generate runs fetch, normalize, summarize and save for one record. It
// returns (nil, nil) when no messages survive the cutoff and window filters.
func (p *Pipeline) generate(ctx context.Context, key string, date, cutoff time.Time, keep func(mailbox.RawMessage) bool) (*archive.DailyRecord, error) {
	raws, err := p.fetcher.FetchSince(cutoff)
	if err != nil {
		return nil, fmt.Errorf("fetching newsletters: %w", err)
	}
	if keep != nil {
		kept := raws[:0]
		for _, m := range raws {
			if keep(m) {
				kept = append(kept, m)
			}
		}
		raws = kept
	}
	if len(raws) == 0 {
		return nil, nil
	}

	log.Printf("Fetched %d newsletters", len(raws))
	messages := normalize.NormalizeAll(raws)

	digest, err := p.summarizer.SummarizeAll(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("summarizing newsletters: %w", err)
	}

	rec := &archive.DailyRecord{
		Date:             date,
		DateString:       key,
		SavedAt:          p.now(),
		Summary:          digest.Summary,
		TotalNewsletters: len(digest.Newsletters),
		Newsletters:      digest.Newsletters,
	}

	if err := p.store.Save(rec); err != nil {
		if errors.Is(err, archive.ErrRecordExists) {
			log.Printf("Record for %s appeared during the run, keeping the existing one", key)
			return rec, nil
		}
		return nil, fmt.Errorf("saving record: %w", err)
	}
	return rec, nil
}

// fail reports err through the notifier, best effort, and returns it.
func (p *Pipeline) fail(runErr error, detail string) error {
	log.Printf("Pipeline failed: %v", runErr)
	if p.notifier != nil {
		if err := p.notifier.SendFailure(runErr, detail); err != nil {
			log.Printf("Failed to send failure notification: %v", err)
		}
	}
	return runErr
}

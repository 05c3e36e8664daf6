package archive

import "time"

// Link is one extracted newsletter link.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// NewsletterSummary is the per-newsletter digest embedded in a DailyRecord.
type NewsletterSummary struct {
	From            string    `json:"from"`
	Subject         string    `json:"subject"`
	Date            time.Time `json:"date"`
	Summary         string    `json:"summary"`
	Links           []Link    `json:"links"`
	OriginalContent string    `json:"originalContent,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// DailyRecord is the persisted unit: one summary document per calendar date.
// Date is the logical date the record covers; during a backfill it differs
// from SavedAt.
type DailyRecord struct {
	Date             time.Time           `json:"date"`
	DateString       string              `json:"dateString"`
	SavedAt          time.Time           `json:"savedAt"`
	Summary          string              `json:"summary"`
	TotalNewsletters int                 `json:"totalNewsletters"`
	Newsletters      []NewsletterSummary `json:"newsletters"`
}

// IndexEntry is the per-date metadata kept in index.json. The index is a
// rebuildable projection over the primary records, not authoritative.
type IndexEntry struct {
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updatedAt"`
}

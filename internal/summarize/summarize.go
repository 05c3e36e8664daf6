package summarize

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"newsdigest/internal/archive"
	"newsdigest/internal/llm"
	"newsdigest/internal/normalize"
)

const (
	// Links kept on each stored item summary.
	maxDisplayLinks = 5
	// Leading body text kept for traceability.
	excerptLength = 1000
)

const emptySummary = "No newsletters received today."

const itemPrompt = `You are summarizing an AI/tech newsletter. The reader has subscribed to stay updated on AI developments and CANNOT miss any important information.

Newsletter From: %s
Subject: %s
Date: %s

Content:
%s

Important Links:
%s

Instructions:
1. Provide a COMPREHENSIVE summary that captures ALL important points
2. DO NOT omit any significant updates, announcements, tools, or developments
3. Include specific names of products, companies, tools, and technologies mentioned
4. Preserve key statistics, dates, and facts
5. List important links with context
6. Use clear bullet points for readability
7. Organize by topic/category if multiple topics are covered

Format your response as:
## [Newsletter Name]

### Key Highlights
- [Most important update]
- [Second most important]

### Detailed Points
- [Comprehensive coverage of all topics]

### Important Links
- [Link title and why it matters]: [URL]

Be thorough - missing information is worse than being verbose.`

const overallPrompt = `You are creating a daily digest of AI/tech newsletters. Synthesize the following %d newsletter summaries into ONE cohesive daily brief.

%s

Instructions:
1. Create a brief "Top Stories" section (3-5 most important items across all newsletters)
2. Group related topics together (e.g., all AI model updates, all tool launches, etc.)
3. Highlight any breaking news or major announcements
4. Note emerging trends if multiple newsletters mention similar topics
5. Keep it scannable but comprehensive
6. DO NOT lose important details in the synthesis

Format:
# Daily Newsletter Digest

## Top Stories
- ...

## AI Models & Research
- ...

## Tools & Products
- ...

## Industry News
- ...

Total Newsletters: %d`

// Digest is a DailyRecord-shaped summarization result: one overall
// synthesis plus per-newsletter summaries in processing order.
type Digest struct {
	Summary     string
	Newsletters []archive.NewsletterSummary
}

// Summarizer generates newsletter summaries through an LLM provider,
// strictly sequentially. The pause between consecutive generation calls
// keeps the sustained request rate under the backend's per-minute quota.
type Summarizer struct {
	provider  llm.Provider
	interval  time.Duration
	maxTokens int
	sleep     func(time.Duration)
}

// New creates a Summarizer pausing interval between generation calls.
func New(provider llm.Provider, interval time.Duration, maxTokens int) *Summarizer {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Summarizer{
		provider:  provider,
		interval:  interval,
		maxTokens: maxTokens,
		sleep:     time.Sleep,
	}
}

// SummarizeAll summarizes each message and synthesizes an overall digest.
// An empty batch short-circuits without any generation calls. A failed item
// gets a fallback summary and the batch continues; only a missing provider
// is fatal.
func (s *Summarizer) SummarizeAll(ctx context.Context, messages []normalize.Message) (*Digest, error) {
	if len(messages) == 0 {
		return &Digest{Summary: emptySummary}, nil
	}
	if s.provider == nil {
		return nil, fmt.Errorf("no LLM provider configured")
	}

	log.Printf("Summarizing %d newsletters...", len(messages))

	items := make([]archive.NewsletterSummary, 0, len(messages))
	for i, m := range messages {
		log.Printf("  [%d/%d] Summarizing newsletter from %s...", i+1, len(messages), m.From)
		items = append(items, s.summarizeOne(ctx, m))

		if i < len(messages)-1 && s.interval > 0 {
			s.sleep(s.interval)
		}
	}

	return &Digest{
		Summary:     s.synthesize(ctx, items),
		Newsletters: items,
	}, nil
}

// summarizeOne produces the summary for a single newsletter. Generation
// failures degrade to a fallback summary carrying the subject, never an
// error: one bad item must not abort the batch.
func (s *Summarizer) summarizeOne(ctx context.Context, m normalize.Message) archive.NewsletterSummary {
	item := archive.NewsletterSummary{
		From:    m.From,
		Subject: m.Subject,
		Date:    m.Date,
		Links:   displayLinks(m.Links),
	}

	prompt := fmt.Sprintf(itemPrompt, m.From, m.Subject, m.Date.Format(time.RFC1123), m.Text, formatLinks(m.Links))

	summary, err := s.provider.Generate(ctx, prompt, s.maxTokens)
	if err != nil {
		log.Printf("Error summarizing newsletter from %s: %v", m.From, err)
		item.Summary = fmt.Sprintf("Error generating summary. Original subject: %s", m.Subject)
		item.Error = err.Error()
		return item
	}

	item.Summary = summary
	item.OriginalContent = excerpt(m.Text)
	return item
}

// synthesize combines the item summaries (fallbacks included) into one
// overall digest, degrading to a generic count line when the call fails.
func (s *Summarizer) synthesize(ctx context.Context, items []archive.NewsletterSummary) string {
	var parts []string
	for i, item := range items {
		parts = append(parts, fmt.Sprintf("Newsletter %d: %s\n%s", i+1, item.From, item.Summary))
	}

	prompt := fmt.Sprintf(overallPrompt, len(items), strings.Join(parts, "\n---\n"), len(items))

	overall, err := s.provider.Generate(ctx, prompt, s.maxTokens)
	if err != nil {
		log.Printf("Error generating overall summary: %v", err)
		return fmt.Sprintf("Received %d newsletters. See individual summaries below.", len(items))
	}
	return overall
}

func displayLinks(links []normalize.Link) []archive.Link {
	n := len(links)
	if n > maxDisplayLinks {
		n = maxDisplayLinks
	}
	out := make([]archive.Link, 0, n)
	for _, l := range links[:n] {
		out = append(out, archive.Link{Text: l.Text, URL: l.URL})
	}
	return out
}

func formatLinks(links []normalize.Link) string {
	if len(links) == 0 {
		return "(none)"
	}
	var lines []string
	for _, l := range links {
		lines = append(lines, fmt.Sprintf("- %s: %s", l.Text, l.URL))
	}
	return strings.Join(lines, "\n")
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLength {
		return text
	}
	return string(runes[:excerptLength])
}

package mailbox

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"
)

func TestBuildSenderFilterEmpty(t *testing.T) {
	filter := BuildSenderFilter(nil)
	if !filter.Matches("anyone@example.com") {
		t.Error("expected empty filter to match everything")
	}

	criteria := filter.Criteria()
	if len(criteria.Or) != 0 || len(criteria.Header) != 0 {
		t.Error("expected empty criteria for empty sender list")
	}
}

func TestBuildSenderFilterSingle(t *testing.T) {
	filter := BuildSenderFilter([]string{"dan@tldrnewsletter.com"})

	criteria := filter.Criteria()
	if got := criteria.Header.Get("From"); got != "dan@tldrnewsletter.com" {
		t.Errorf("expected From header criteria, got %q", got)
	}
	if len(criteria.Or) != 0 {
		t.Error("expected no OR nesting for a single sender")
	}
}

func TestBuildSenderFilterNestedOr(t *testing.T) {
	senders := []string{"a@x.com", "b@y.com", "c@z.com"}
	criteria := BuildSenderFilter(senders).Criteria()

	// OR(a, OR(b, c)): the fold is right-nested and binary at every level.
	if len(criteria.Or) != 1 {
		t.Fatalf("expected one OR pair at the root, got %d", len(criteria.Or))
	}
	left, right := criteria.Or[0][0], criteria.Or[0][1]
	if got := left.Header.Get("From"); got != "a@x.com" {
		t.Errorf("expected first sender on the left, got %q", got)
	}

	if len(right.Or) != 1 {
		t.Fatalf("expected nested OR pair, got %d", len(right.Or))
	}
	if got := right.Or[0][0].Header.Get("From"); got != "b@y.com" {
		t.Errorf("expected second sender, got %q", got)
	}
	if got := right.Or[0][1].Header.Get("From"); got != "c@z.com" {
		t.Errorf("expected last sender at the deepest leaf, got %q", got)
	}
}

func TestSenderFilterMatchesExactlyAllowedSet(t *testing.T) {
	senders := []string{"dan@tldrnewsletter.com", "thesequence@substack.com", "importai@substack.com"}
	filter := BuildSenderFilter(senders)

	allowed := []string{
		"TLDR <dan@tldrnewsletter.com>",
		"The Sequence <thesequence@substack.com>",
		"Import AI <importai@substack.com>",
	}
	for _, from := range allowed {
		if !filter.Matches(from) {
			t.Errorf("expected filter to match %q", from)
		}
	}

	if filter.Matches("Spam Corp <offers@spam.example>") {
		t.Error("expected filter to reject sender outside the allowed set")
	}
}

func TestSenderFilterMatchesCaseInsensitive(t *testing.T) {
	filter := BuildSenderFilter([]string{"Dan@TLDRnewsletter.com"})
	if !filter.Matches("tldr <dan@tldrnewsletter.com>") {
		t.Error("expected case-insensitive match")
	}
}

func TestSearchCriteriaSetsSince(t *testing.T) {
	since := time.Date(2025, 10, 3, 23, 59, 59, 0, time.UTC)
	criteria := SearchCriteria(BuildSenderFilter([]string{"a@x.com"}), since)

	if !criteria.Since.Equal(since) {
		t.Errorf("expected Since %v, got %v", since, criteria.Since)
	}
	if got := criteria.Header.Get("From"); got != "a@x.com" {
		t.Errorf("expected sender criteria preserved alongside Since, got %q", got)
	}
}

func TestNewClientDefaultsFolder(t *testing.T) {
	c := NewClient(Config{Host: "imap.example.com", Port: 993})
	if c.cfg.Folder != "INBOX" {
		t.Errorf("expected default folder INBOX, got %q", c.cfg.Folder)
	}
}

// Guard against accidental use of a flattened OR: every OR node in the tree
// must have exactly two operands all the way down, for any list size.
func TestSenderFilterBinaryInvariant(t *testing.T) {
	senders := []string{"a@x.com", "b@y.com", "c@z.com", "d@w.com", "e@v.com"}
	criteria := BuildSenderFilter(senders).Criteria()

	depth := 0
	leaves := 0
	var walk func(c *imap.SearchCriteria)
	walk = func(c *imap.SearchCriteria) {
		if len(c.Or) == 0 {
			if c.Header.Get("From") != "" {
				leaves++
			}
			return
		}
		if len(c.Or) != 1 {
			t.Fatalf("expected a single binary OR pair, got %d", len(c.Or))
		}
		depth++
		walk(c.Or[0][0])
		walk(c.Or[0][1])
	}
	walk(criteria)

	if leaves != len(senders) {
		t.Errorf("expected %d sender leaves, got %d", len(senders), leaves)
	}
	if depth != len(senders)-1 {
		t.Errorf("expected %d OR nodes, got %d", len(senders)-1, depth)
	}
}

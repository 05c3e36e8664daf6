package mailbox

import (
	"strings"
	"time"

	"github.com/emersion/go-imap"
)

// SenderFilter matches messages against the allowed-sender list. The filter
// is an explicit tree because IMAP OR takes exactly two operands: a list of
// N senders lowers to a right-nested chain of binary ORs. A flattened OR
// would silently drop senders.
type SenderFilter interface {
	// Matches evaluates the filter against a From header value.
	Matches(from string) bool
	// Criteria lowers the filter to IMAP search criteria.
	Criteria() *imap.SearchCriteria
}

// BuildSenderFilter right-folds the sender list into a filter tree:
// OR(s1, OR(s2, ... OR(sN-1, sN))). An empty list matches everything.
func BuildSenderFilter(senders []string) SenderFilter {
	if len(senders) == 0 {
		return matchAll{}
	}

	var filter SenderFilter = fromLeaf{sender: senders[len(senders)-1]}
	for i := len(senders) - 2; i >= 0; i-- {
		filter = orNode{left: fromLeaf{sender: senders[i]}, right: filter}
	}
	return filter
}

// SearchCriteria combines the sender filter with a SINCE lower bound.
func SearchCriteria(filter SenderFilter, since time.Time) *imap.SearchCriteria {
	criteria := filter.Criteria()
	criteria.Since = since
	return criteria
}

type matchAll struct{}

func (matchAll) Matches(string) bool { return true }

func (matchAll) Criteria() *imap.SearchCriteria {
	return imap.NewSearchCriteria()
}

type fromLeaf struct {
	sender string
}

func (f fromLeaf) Matches(from string) bool {
	return strings.Contains(strings.ToLower(from), strings.ToLower(f.sender))
}

func (f fromLeaf) Criteria() *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("From", f.sender)
	return criteria
}

type orNode struct {
	left, right SenderFilter
}

func (o orNode) Matches(from string) bool {
	return o.left.Matches(from) || o.right.Matches(from)
}

func (o orNode) Criteria() *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	criteria.Or = [][2]*imap.SearchCriteria{{o.left.Criteria(), o.right.Criteria()}}
	return criteria
}

package mailbox

import (
	"fmt"
	"log"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
)

// RawMessage is one inbound email before normalization.
type RawMessage struct {
	From    string
	Subject string
	Date    time.Time
	Text    string
	HTML    string
}

// Config holds mailbox connection settings.
type Config struct {
	Host     string
	Port     int
	Folder   string
	Username string
	Password string
	Senders  []string
}

// Client fetches newsletter messages from an IMAP mailbox.
type Client struct {
	cfg    Config
	filter SenderFilter
}

// NewClient creates a mailbox client for the configured sender set.
func NewClient(cfg Config) *Client {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	return &Client{cfg: cfg, filter: BuildSenderFilter(cfg.Senders)}
}

// Filter returns the client's sender filter.
func (c *Client) Filter() SenderFilter {
	return c.filter
}

// FetchSince retrieves all messages from allowed senders received at or
// after cutoff. A connection or search failure is returned to the caller;
// individual messages that fail to parse are logged and dropped. Zero
// matches is not an error.
func (c *Client) FetchSince(cutoff time.Time) ([]RawMessage, error) {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	conn, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Logout()

	if err := conn.Login(c.cfg.Username, c.cfg.Password); err != nil {
		return nil, fmt.Errorf("logging in as %s: %w", c.cfg.Username, err)
	}

	if _, err := conn.Select(c.cfg.Folder, true); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", c.cfg.Folder, err)
	}

	ids, err := conn.Search(SearchCriteria(c.filter, cutoff))
	if err != nil {
		return nil, fmt.Errorf("searching mailbox: %w", err)
	}
	if len(ids) == 0 {
		log.Println("No new newsletters found")
		return nil, nil
	}
	log.Printf("Found %d potential newsletters", len(ids))

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	ch := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- conn.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, ch)
	}()

	var messages []RawMessage
	for msg := range ch {
		body := msg.GetBody(section)
		if body == nil {
			log.Printf("Message %d has no body, skipping", msg.SeqNum)
			continue
		}

		raw, err := parseMessage(body)
		if err != nil {
			log.Printf("Error parsing message %d, skipping: %v", msg.SeqNum, err)
			continue
		}
		messages = append(messages, *raw)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	// IMAP SINCE is date-granular; enforce the timestamp cutoff here.
	kept := messages[:0]
	for _, m := range messages {
		if !m.Date.Before(cutoff) {
			kept = append(kept, m)
		}
	}

	log.Printf("Fetched %d newsletters", len(kept))
	return kept, nil
}

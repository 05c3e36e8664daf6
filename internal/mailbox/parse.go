package mailbox

import (
	"fmt"
	"io"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// parseMessage reads one raw RFC 5322 message and extracts the headers plus
// the first plain-text and HTML bodies. Attachments are ignored.
func parseMessage(r io.Reader) (*RawMessage, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}

	header := mr.Header

	from := ""
	if addrs, err := header.AddressList("From"); err == nil && len(addrs) > 0 {
		from = addrs[0].String()
	}
	if from == "" {
		from = header.Get("From")
	}
	if from == "" {
		from = "Unknown"
	}

	subject, _ := header.Subject()
	date, _ := header.Date()

	raw := &RawMessage{From: from, Subject: subject, Date: date}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading message part: %w", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, err := h.ContentType()
		if err != nil {
			continue
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("reading %s body: %w", contentType, err)
		}

		switch contentType {
		case "text/plain":
			if raw.Text == "" {
				raw.Text = string(body)
			}
		case "text/html":
			if raw.HTML == "" {
				raw.HTML = string(body)
			}
		}
	}

	return raw, nil
}

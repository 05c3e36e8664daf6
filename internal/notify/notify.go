package notify

import (
	"bytes"
	"fmt"
	"html"
	"net/smtp"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"newsdigest/internal/archive"
)

// Mailer sends digest and failure notifications as email via SMTP.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string

	markdown goldmark.Markdown
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(host string, port int, username, password, from string, to []string) *Mailer {
	return &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		markdown: goldmark.New(),
		send:     smtp.SendMail,
	}
}

// SendDigest emails the daily record as an HTML digest.
func (m *Mailer) SendDigest(record *archive.DailyRecord) error {
	subject := fmt.Sprintf("Newsletter Digest: %s (%d newsletters)", record.DateString, record.TotalNewsletters)
	return m.sendMail(subject, "text/html", m.buildDigestBody(record))
}

// SendFailure emails a plain-text report of a failed pipeline run.
func (m *Mailer) SendFailure(runErr error, detail string) error {
	subject := fmt.Sprintf("Newsletter Digest FAILED: %s", time.Now().Format("2006-01-02"))

	var sb strings.Builder
	sb.WriteString("The newsletter digest run failed.\r\n\r\n")
	sb.WriteString(fmt.Sprintf("Error: %v\r\n", runErr))
	if detail != "" {
		sb.WriteString("\r\nDetails:\r\n")
		sb.WriteString(detail)
		sb.WriteString("\r\n")
	}
	return m.sendMail(subject, "text/plain", sb.String())
}

func (m *Mailer) sendMail(subject, contentType, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: %s; charset=\"UTF-8\"\r\n\r\n%s",
		m.from,
		strings.Join(m.to, ","),
		subject,
		contentType,
		body,
	)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.username, m.password, m.host)

	if err := m.send(addr, auth, m.from, m.to, []byte(msg)); err != nil {
		return fmt.Errorf("notify: failed to send: %w", err)
	}
	return nil
}

func (m *Mailer) buildDigestBody(record *archive.DailyRecord) string {
	var sb strings.Builder

	sb.WriteString(`<!DOCTYPE html><html><head><style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 700px; margin: 0 auto; padding: 20px; color: #333; }
h1 { color: #1a1a2e; border-bottom: 2px solid #e94560; padding-bottom: 10px; }
h2 { color: #16213e; }
.overview { background: #f0f0f0; padding: 15px; border-radius: 8px; margin-bottom: 20px; }
.newsletter { border: 1px solid #ddd; border-radius: 8px; padding: 15px; margin-bottom: 15px; }
.newsletter h3 { margin-top: 0; color: #0f3460; }
.meta { color: #666; font-size: 0.9em; margin-bottom: 10px; }
.links li { margin-bottom: 5px; }
.error { color: #b00020; }
</style></head><body>`)

	sb.WriteString(fmt.Sprintf("<h1>Newsletter Digest: %s</h1>", record.DateString))
	sb.WriteString(fmt.Sprintf("<p><em>%d newsletters</em></p>", record.TotalNewsletters))

	sb.WriteString(`<div class="overview">`)
	sb.WriteString(m.renderMarkdown(record.Summary))
	sb.WriteString("</div>")

	for i, n := range record.Newsletters {
		sb.WriteString(`<div class="newsletter">`)
		sb.WriteString(fmt.Sprintf("<h3>%d. %s</h3>", i+1, html.EscapeString(n.Subject)))
		sb.WriteString(fmt.Sprintf(`<div class="meta">%s | %s</div>`,
			html.EscapeString(n.From), n.Date.Format("Jan 2, 2006 15:04")))

		if n.Error != "" {
			sb.WriteString(fmt.Sprintf(`<p class="error">%s</p>`, html.EscapeString(n.Summary)))
		} else {
			sb.WriteString(m.renderMarkdown(n.Summary))
		}

		if len(n.Links) > 0 {
			sb.WriteString(`<div class="links"><strong>Links:</strong><ul>`)
			for _, l := range n.Links {
				sb.WriteString(fmt.Sprintf(`<li><a href="%s">%s</a></li>`,
					html.EscapeString(l.URL), html.EscapeString(l.Text)))
			}
			sb.WriteString("</ul></div>")
		}
		sb.WriteString("</div>")
	}

	sb.WriteString("</body></html>")
	return sb.String()
}

// renderMarkdown converts LLM markdown output to HTML, falling back to
// an escaped paragraph when conversion fails.
func (m *Mailer) renderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := m.markdown.Convert([]byte(src), &buf); err != nil {
		return fmt.Sprintf("<p>%s</p>", html.EscapeString(src))
	}
	return buf.String()
}

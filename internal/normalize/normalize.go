package normalize

import (
	"log"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"newsdigest/internal/mailbox"
)

const maxLinks = 10

// Link is one anchor kept after filtering.
type Link struct {
	Text string
	URL  string
}

// Message is one newsletter after cleanup, ready for summarization.
type Message struct {
	From    string
	Subject string
	Date    time.Time
	Text    string
	HTML    string
	Links   []Link
}

var (
	styleRe   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	scriptRe  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)

	// Unsubscribe, tracking, and social links carry no content.
	skipURLFragments = []string{"unsubscribe", "track.", "facebook.com", "twitter.com", "linkedin.com"}

	// readability wants a base URL for resolving relative references;
	// email bodies have none.
	emailBase, _ = url.Parse("message://newsletter")
)

// Normalize converts a raw email into a Message. HTML bodies are cleaned and
// converted to readable text; plain-text bodies pass through verbatim.
// Normalization never fails: conversion errors degrade to tag stripping.
func Normalize(raw mailbox.RawMessage) Message {
	m := Message{
		From:    raw.From,
		Subject: raw.Subject,
		Date:    raw.Date,
	}
	if m.From == "" {
		m.From = "Unknown"
	}
	if m.Subject == "" {
		m.Subject = "No Subject"
	}

	if raw.HTML != "" {
		cleaned := stripCruft(raw.HTML)
		m.HTML = raw.HTML
		m.Text = htmlToText(cleaned)
		m.Links = extractLinks(cleaned)
		return m
	}

	m.Text = raw.Text
	return m
}

// NormalizeAll normalizes a fetched batch, preserving order.
func NormalizeAll(raws []mailbox.RawMessage) []Message {
	messages := make([]Message, len(raws))
	for i, raw := range raws {
		messages[i] = Normalize(raw)
	}
	return messages
}

// stripCruft removes style, script, and comment blocks before conversion.
func stripCruft(html string) string {
	html = styleRe.ReplaceAllString(html, "")
	html = scriptRe.ReplaceAllString(html, "")
	html = commentRe.ReplaceAllString(html, "")
	return html
}

// htmlToText converts newsletter HTML to readable text, falling back to
// plain tag stripping when extraction fails.
func htmlToText(html string) string {
	article, err := readability.FromReader(strings.NewReader(html), emailBase)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text
		}
	} else {
		log.Printf("Readability extraction failed, falling back to tag stripping: %v", err)
	}
	return stripTags(html)
}

// extractLinks returns the filtered anchors of the document in document
// order, capped at maxLinks. Anchors with empty text or pointing at
// unsubscribe/tracking/social URLs are dropped.
func extractLinks(html string) []Link {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Printf("Error parsing HTML for links: %v", err)
		return nil
	}

	var links []Link
	doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return true
		}
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if text == "" || skipURL(href) {
			return true
		}

		links = append(links, Link{Text: text, URL: href})
		return len(links) < maxLinks
	})
	return links
}

func skipURL(href string) bool {
	lower := strings.ToLower(href)
	for _, fragment := range skipURLFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// stripTags removes HTML tags, decodes common entities, and collapses
// whitespace. Last-resort conversion only.
func stripTags(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

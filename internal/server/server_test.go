package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"newsdigest/internal/archive"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

func newTestServer(t *testing.T, records ...*archive.DailyRecord) *Server {
	t.Helper()
	store := archive.New(t.TempDir(), ist)
	for _, rec := range records {
		if err := store.Save(rec); err != nil {
			t.Fatalf("failed to seed record %s: %v", rec.DateString, err)
		}
	}
	srv, err := New(store, ist)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func testRecord(key string, n int) *archive.DailyRecord {
	d, _ := time.ParseInLocation("2006-01-02", key, ist)
	rec := &archive.DailyRecord{
		Date:             d,
		DateString:       key,
		SavedAt:          d,
		Summary:          "## Top Stories\n- A big launch",
		TotalNewsletters: n,
	}
	for i := 0; i < n; i++ {
		rec.Newsletters = append(rec.Newsletters, archive.NewsletterSummary{
			From:    "ai@example.com",
			Subject: "AI Weekly",
			Date:    d,
			Summary: "### Key Highlights\n- New model",
			Links:   []archive.Link{{Text: "Read more", URL: "https://example.com/post"}},
		})
	}
	return rec
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRoute(t *testing.T) {
	srv := newTestServer(t, testRecord("2025-10-03", 2), testRecord("2025-09-28", 1))

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()

	// Both months appear, newest first.
	oct := strings.Index(body, "October 2025")
	sep := strings.Index(body, "September 2025")
	if oct < 0 || sep < 0 {
		t.Fatal("expected both months in calendar")
	}
	if oct > sep {
		t.Error("expected October before September")
	}

	// Archived dates link to their day page.
	if !strings.Contains(body, `href="/day/2025-10-03"`) {
		t.Error("expected link to archived day")
	}
	if strings.Contains(body, `href="/day/2025-10-02"`) {
		t.Error("day without a record should not link anywhere")
	}
	if !strings.Contains(body, "2 archived days") {
		t.Error("expected total count in header")
	}
}

func TestIndexEmpty(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No digests archived yet") {
		t.Error("expected empty-state message")
	}
}

func TestDayRoute(t *testing.T) {
	srv := newTestServer(t, testRecord("2025-10-03", 1))

	rec := get(t, srv, "/day/2025-10-03")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()

	if !strings.Contains(body, "Friday, October 3, 2025") {
		t.Error("expected long date heading")
	}
	// Markdown rendered to HTML.
	if !strings.Contains(body, "<h2>Top Stories</h2>") {
		t.Error("expected rendered overall summary")
	}
	if !strings.Contains(body, "<li>New model</li>") {
		t.Error("expected rendered newsletter summary")
	}
	if !strings.Contains(body, `href="https://example.com/post"`) {
		t.Error("expected newsletter link")
	}
}

func TestDayRouteFailedNewsletter(t *testing.T) {
	rec := testRecord("2025-10-03", 1)
	rec.Newsletters[0].Summary = "Error generating summary. Original subject: AI Weekly"
	rec.Newsletters[0].Error = "API error: 429"
	srv := newTestServer(t, rec)

	resp := get(t, srv, "/day/2025-10-03")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `class="error"`) {
		t.Error("expected failed newsletter rendered as error")
	}
}

func TestDayRouteNotFound(t *testing.T) {
	srv := newTestServer(t, testRecord("2025-10-03", 1))

	if rec := get(t, srv, "/day/2025-10-04"); rec.Code != http.StatusNotFound {
		t.Errorf("missing day: expected 404, got %d", rec.Code)
	}
	if rec := get(t, srv, "/day/not-a-date"); rec.Code != http.StatusNotFound {
		t.Errorf("malformed key: expected 404, got %d", rec.Code)
	}
	if rec := get(t, srv, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path: expected 404, got %d", rec.Code)
	}
}

func TestStaticRoute(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/static/style.css")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), ".calendar") {
		t.Error("expected stylesheet content")
	}
}

func TestBuildCalendarLayout(t *testing.T) {
	srv := newTestServer(t)

	// October 2025 starts on a Wednesday.
	months := srv.buildCalendar([]string{"2025-10-03"}, map[string]archive.IndexEntry{"2025-10-03": {Count: 4}})
	if len(months) != 1 {
		t.Fatalf("expected 1 month, got %d", len(months))
	}
	m := months[0]
	if m.Label != "October 2025" {
		t.Errorf("label = %q", m.Label)
	}

	firstWeek := m.Weeks[0]
	if len(firstWeek) != 7 {
		t.Fatalf("week length = %d", len(firstWeek))
	}
	for i := 0; i < 3; i++ {
		if firstWeek[i].Num != 0 {
			t.Errorf("cell %d should be blank, got day %d", i, firstWeek[i].Num)
		}
	}
	if firstWeek[3].Num != 1 {
		t.Errorf("Wednesday cell should be day 1, got %d", firstWeek[3].Num)
	}

	day3 := firstWeek[5]
	if !day3.Has || day3.Count != 4 || day3.Key != "2025-10-03" {
		t.Errorf("day 3 cell = %+v", day3)
	}

	lastWeek := m.Weeks[len(m.Weeks)-1]
	if len(lastWeek) != 7 {
		t.Errorf("trailing week not padded: length %d", len(lastWeek))
	}
}

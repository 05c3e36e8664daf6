package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"newsdigest/internal/archive"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for browsing the digest archive.
type Server struct {
	store *archive.Store
	loc   *time.Location
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server.
func New(store *archive.Store, loc *time.Location) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"longDate": func(key string) string {
			d, err := time.ParseInLocation("2006-01-02", key, loc)
			if err != nil {
				return key
			}
			return d.Format("Monday, January 2, 2006")
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "day.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{store: store, loc: loc, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Routes
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/day/", s.handleDay)
}

// calDay is one cell in a month grid; Num 0 marks a leading or trailing blank.
type calDay struct {
	Num   int
	Key   string
	Count int
	Has   bool
}

type calMonth struct {
	Label string
	Weeks [][]calDay
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	keys, err := s.store.Dates()
	if err != nil {
		log.Printf("Error listing archive: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	index, err := s.store.ReadIndex()
	if err != nil {
		index = map[string]archive.IndexEntry{}
	}

	s.render(w, "index.html", map[string]any{
		"Months": s.buildCalendar(keys, index),
		"Total":  len(keys),
	})
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/day/")
	if key == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if _, err := time.ParseInLocation("2006-01-02", key, s.loc); err != nil {
		http.NotFound(w, r)
		return
	}

	rec, err := s.store.Load(key)
	if err != nil {
		log.Printf("Error loading record %s: %v", key, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.NotFound(w, r)
		return
	}

	s.render(w, "day.html", map[string]any{
		"Record": rec,
	})
}

// buildCalendar lays the archived dates out as month grids, newest month
// first, weeks starting on Sunday.
func (s *Server) buildCalendar(keys []string, index map[string]archive.IndexEntry) []calMonth {
	have := make(map[string]bool, len(keys))
	var monthKeys []string
	seen := map[string]bool{}
	for _, k := range keys {
		have[k] = true
		mk := k[:len("2006-01")]
		if !seen[mk] {
			seen[mk] = true
			monthKeys = append(monthKeys, mk)
		}
	}
	// keys are ascending; show newest month first
	for i, j := 0, len(monthKeys)-1; i < j; i, j = i+1, j-1 {
		monthKeys[i], monthKeys[j] = monthKeys[j], monthKeys[i]
	}

	var months []calMonth
	for _, mk := range monthKeys {
		first, err := time.ParseInLocation("2006-01", mk, s.loc)
		if err != nil {
			continue
		}
		m := calMonth{Label: first.Format("January 2006")}

		week := make([]calDay, first.Weekday())
		last := first.AddDate(0, 1, -1).Day()
		for d := 1; d <= last; d++ {
			key := fmt.Sprintf("%s-%02d", mk, d)
			week = append(week, calDay{
				Num:   d,
				Key:   key,
				Count: index[key].Count,
				Has:   have[key],
			})
			if len(week) == 7 {
				m.Weeks = append(m.Weeks, week)
				week = nil
			}
		}
		if len(week) > 0 {
			for len(week) < 7 {
				week = append(week, calDay{})
			}
			m.Weeks = append(m.Weeks, week)
		}
		months = append(months, m)
	}
	return months
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(store *archive.Store, loc *time.Location, port int) error {
	srv, err := New(store, loc)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}

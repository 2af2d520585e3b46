// Package records flattens the portal's nested patient collections into the
// row-per-visit view model the staff dashboards render.
package records

import (
	"sort"
	"strings"
	"time"

	"github.com/wardbook/portalsync/internal/portalapi"
)

// Status classifies a visit as still open or already closed.
//
// A visit is closed iff its closing timestamp is a non-empty string. The
// upstream portal occasionally emits sentinel strings ("N/A", "0") in the
// checkout field; those count as closed under the literal rule. Known edge
// case, kept as-is so the dashboards agree with the portal.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Tab selects which statuses a view shows.
type Tab string

const (
	TabAll    Tab = "all"
	TabOpen   Tab = "open"
	TabClosed Tab = "closed"
)

// Row is one admission or appointment flattened out of its parent patient.
type Row struct {
	ID          string `json:"id"`
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	Ward        string `json:"ward,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Doctor      string `json:"doctor,omitempty"`
	Complaint   string `json:"complaint,omitempty"`
	Published   string `json:"published"`
	ClosedAt    string `json:"closed_at,omitempty"`
	Status      Status `json:"status"`

	publishedAt time.Time
	publishedOK bool
}

// Options controls the normalize pipeline.
type Options struct {
	// LatestPerPatient keeps only the most recent row per patient.
	LatestPerPatient bool
	Tab              Tab
	Query            string
}

// Normalize runs the full pipeline: flatten, sort newest-first, optionally
// reduce to the latest row per patient, then apply tab and search filters.
// The result is always freshly computed; inputs are never mutated.
func Normalize(parents []portalapi.Patient, opts Options) []Row {
	rows := Flatten(parents)
	SortByPublished(rows)
	if opts.LatestPerPatient {
		rows = LatestPerPatient(rows)
	}
	rows = FilterTab(rows, opts.Tab)
	rows = FilterQuery(rows, opts.Query)
	return rows
}

// Flatten produces one Row per (patient, sub-record) pair. Status is derived
// here on every pass; an open visit can close between fetches. Records
// missing an id or publish timestamp contribute zero rows.
func Flatten(parents []portalapi.Patient) []Row {
	var rows []Row
	for _, p := range parents {
		if p.ID == "" {
			continue
		}
		for _, sub := range p.CheckApps {
			if sub.ID == "" || sub.PubDate == "" {
				continue
			}
			at, ok := parsePublished(sub.PubDate)
			rows = append(rows, Row{
				ID:          sub.ID,
				PatientID:   p.ID,
				PatientName: p.Name,
				Ward:        sub.Ward,
				Reason:      sub.Reason,
				Doctor:      sub.Doctor,
				Complaint:   sub.Complaint,
				Published:   sub.PubDate,
				ClosedAt:    sub.CheckoutDate,
				Status:      deriveStatus(sub.CheckoutDate),
				publishedAt: at,
				publishedOK: ok,
			})
		}
	}
	return rows
}

// SortByPublished orders rows newest-first, in place and stably. Rows whose
// publish timestamp failed to parse sort after all parsable ones.
func SortByPublished(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.publishedOK && !b.publishedOK:
			return true
		case !a.publishedOK:
			return false
		default:
			return a.publishedAt.After(b.publishedAt)
		}
	})
}

// LatestPerPatient keeps the first row per distinct patient id. Callers must
// pass rows already sorted newest-first; run after SortByPublished, never
// before, or the kept row is arbitrary.
func LatestPerPatient(rows []Row) []Row {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		if _, ok := seen[r.PatientID]; ok {
			continue
		}
		seen[r.PatientID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// FilterTab selects rows whose status matches tab. TabAll (or an empty tab)
// keeps everything.
func FilterTab(rows []Row, tab Tab) []Row {
	if tab == TabAll || tab == "" {
		return rows
	}
	want := StatusOpen
	if tab == TabClosed {
		want = StatusClosed
	}
	out := rows[:0:0]
	for _, r := range rows {
		if r.Status == want {
			out = append(out, r)
		}
	}
	return out
}

// FilterQuery keeps rows where query is a case-insensitive substring of the
// patient name or any descriptive field. An empty query matches everything.
func FilterQuery(rows []Row, query string) []Row {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return rows
	}
	out := rows[:0:0]
	for _, r := range rows {
		if rowMatches(r, query) {
			out = append(out, r)
		}
	}
	return out
}

func rowMatches(r Row, loweredQuery string) bool {
	for _, field := range []string{r.PatientName, r.Ward, r.Reason, r.Doctor, r.Complaint} {
		if field == "" {
			continue
		}
		if strings.Contains(strings.ToLower(field), loweredQuery) {
			return true
		}
	}
	return false
}

func deriveStatus(closedAt string) Status {
	if closedAt == "" {
		return StatusOpen
	}
	return StatusClosed
}

var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parsePublished(raw string) (time.Time, bool) {
	for _, layout := range publishedLayouts {
		if at, err := time.Parse(layout, raw); err == nil {
			return at, true
		}
	}
	return time.Time{}, false
}

// Package edgar builds request parameters for SEC EDGAR bulk downloads:
// quarterly master index URLs, filing URLs, and the headers EDGAR
// requires from automated clients.
package edgar

import (
	"fmt"
	"strings"
	"time"
)

// DefaultRateLimit is the request ceiling EDGAR enforces per client, in
// requests per second. Exceeding it earns a temporary IP block.
const DefaultRateLimit = 10

const (
	masterIndexURLFormat = "https://www.sec.gov/Archives/edgar/full-index/%d/QTR%d/master.idx"
	filingURLFormat      = "https://www.sec.gov/Archives/%s"
)

// Headers returns the header set EDGAR requires from automated clients.
// contact identifies the operator, e.g. "ACME Co jane.smith@acme.co";
// EDGAR rejects anonymous user agents.
func Headers(contact string) map[string]string {
	return map[string]string{
		"User-Agent":      contact,
		"Accept-Encoding": "deflate",
		"Host":            "www.sec.gov",
	}
}

// Quarter is one calendar quarter of EDGAR's full index.
type Quarter struct {
	Year int
	Q    int // 1..4
}

// String renders the flag form, e.g. "2024Q3".
func (q Quarter) String() string {
	return fmt.Sprintf("%dQ%d", q.Year, q.Q)
}

// Before reports whether q is earlier than other.
func (q Quarter) Before(other Quarter) bool {
	return q.Year < other.Year || (q.Year == other.Year && q.Q < other.Q)
}

// Next returns the quarter after q.
func (q Quarter) Next() Quarter {
	if q.Q == 4 {
		return Quarter{Year: q.Year + 1, Q: 1}
	}
	return Quarter{Year: q.Year, Q: q.Q + 1}
}

// ParseQuarter parses a flag value like "2024Q3" into a Quarter.
func ParseQuarter(s string) (Quarter, error) {
	var q Quarter
	if _, err := fmt.Sscanf(strings.ToUpper(strings.TrimSpace(s)), "%dQ%d", &q.Year, &q.Q); err != nil {
		return Quarter{}, fmt.Errorf("invalid quarter %q (want e.g. 2024Q3)", s)
	}
	if q.Q < 1 || q.Q > 4 {
		return Quarter{}, fmt.Errorf("invalid quarter %q: quarter must be 1-4", s)
	}
	if q.Year < 1994 {
		return Quarter{}, fmt.Errorf("invalid quarter %q: EDGAR master indexes start at 1994Q1", s)
	}
	return q, nil
}

// QuarterOf returns the calendar quarter containing t.
func QuarterOf(t time.Time) Quarter {
	return Quarter{Year: t.Year(), Q: (int(t.Month())-1)/3 + 1}
}

// QuarterRange lists the quarters from start through end inclusive.
// Quarters after the current calendar quarter are dropped, since their
// index archives do not exist yet.
func QuarterRange(start, end Quarter) []Quarter {
	if now := QuarterOf(time.Now()); now.Before(end) {
		end = now
	}

	var quarters []Quarter
	for q := start; !end.Before(q); q = q.Next() {
		quarters = append(quarters, q)
	}
	return quarters
}

// MasterIndexURL returns the URL of one quarter's master filing index.
func MasterIndexURL(q Quarter) string {
	return fmt.Sprintf(masterIndexURLFormat, q.Year, q.Q)
}

// MasterIndexURLs returns the index URLs for every quarter from start
// through end, clamped to the current quarter.
func MasterIndexURLs(start, end Quarter) []string {
	quarters := QuarterRange(start, end)
	urls := make([]string, len(quarters))
	for i, q := range quarters {
		urls[i] = MasterIndexURL(q)
	}
	return urls
}

// FilingURL returns the archive URL for a master index filename entry
// such as "edgar/data/1000694/0000093751-24-000650.txt".
func FilingURL(filename string) string {
	return fmt.Sprintf(filingURLFormat, filename)
}

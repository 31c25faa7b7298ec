package edgar

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Filing is one row of a quarterly master index.
type Filing struct {
	CIK      string
	Company  string
	Form     string
	Date     string
	Filename string
}

// ParseMasterIndex extracts filing rows from a master.idx document.
// Rows are pipe-delimited after a free-text preamble; only lines
// pointing at a .txt document count. When forms are given, a filing is
// kept if its form type contains one of them case-insensitively, so
// "13D" also matches "SC 13D/A".
func ParseMasterIndex(r io.Reader, forms ...string) ([]Filing, error) {
	var filings []Filing

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, ".txt") {
			continue
		}

		fields := strings.Split(strings.TrimSpace(line), "|")
		if len(fields) != 5 {
			continue
		}
		if !matchesForm(fields[2], forms) {
			continue
		}

		filings = append(filings, Filing{
			CIK:      fields[0],
			Company:  fields[1],
			Form:     fields[2],
			Date:     fields[3],
			Filename: fields[4],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan master index: %w", err)
	}

	return filings, nil
}

func matchesForm(form string, forms []string) bool {
	if len(forms) == 0 {
		return true
	}
	upper := strings.ToUpper(form)
	for _, want := range forms {
		if strings.Contains(upper, strings.ToUpper(want)) {
			return true
		}
	}
	return false
}

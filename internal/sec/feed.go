package sec

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// FeedEntry is one row of the current events Atom feed. A filing appears once
// per participant; Role distinguishes the issuer entry from the reporting
// person entries.
type FeedEntry struct {
	AccessionNumber string
	CIK             string
	CompanyName     string
	Role            string
	Updated         time.Time
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	ID      string `xml:"id"`
	Updated string `xml:"updated"`
}

var titlePattern = regexp.MustCompile(`^4(?:/A)?\s+-\s+(.+?)\s+\((\d{10})\)\s+\((\w+)\)`)

func parseCurrentFeed(body []byte) ([]FeedEntry, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse atom feed: %w", err)
	}
	entries := make([]FeedEntry, 0, len(feed.Entries))
	for _, raw := range feed.Entries {
		accession := accessionFromID(raw.ID)
		if accession == "" {
			continue
		}
		entry := FeedEntry{AccessionNumber: accession}
		if m := titlePattern.FindStringSubmatch(strings.TrimSpace(raw.Title)); m != nil {
			entry.CompanyName = m[1]
			entry.CIK = strings.TrimLeft(m[2], "0")
			entry.Role = m[3]
		}
		if ts, err := time.Parse(time.RFC3339, raw.Updated); err == nil {
			entry.Updated = ts
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func accessionFromID(id string) string {
	const marker = "accession-number="
	idx := strings.LastIndex(id, marker)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(id[idx+len(marker):])
}

// Submissions is an issuer's filing history from the submissions API.
type Submissions struct {
	CIK     string
	Name    string
	Tickers []string
	Filings []SubmittedFiling
}

type SubmittedFiling struct {
	AccessionNumber string
	FilingDate      string
	Form            string
}

type filingPage struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	Form            []string `json:"form"`
}

func parseSubmissions(body []byte) (*Submissions, []string, error) {
	var raw struct {
		CIK     string   `json:"cik"`
		Name    string   `json:"name"`
		Tickers []string `json:"tickers"`
		Filings struct {
			Recent filingPage `json:"recent"`
			Files  []struct {
				Name string `json:"name"`
			} `json:"files"`
		} `json:"filings"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to parse submissions: %w", err)
	}
	subs := &Submissions{
		CIK:     strings.TrimLeft(raw.CIK, "0"),
		Name:    raw.Name,
		Tickers: raw.Tickers,
	}
	subs.appendPage(raw.Filings.Recent)
	extra := make([]string, 0, len(raw.Filings.Files))
	for _, file := range raw.Filings.Files {
		if file.Name != "" {
			extra = append(extra, file.Name)
		}
	}
	return subs, extra, nil
}

func (s *Submissions) appendFilingPage(body []byte) error {
	var page filingPage
	if err := json.Unmarshal(body, &page); err != nil {
		return fmt.Errorf("failed to parse submissions page: %w", err)
	}
	s.appendPage(page)
	return nil
}

func (s *Submissions) appendPage(page filingPage) {
	for i, accession := range page.AccessionNumber {
		filing := SubmittedFiling{AccessionNumber: accession}
		if i < len(page.FilingDate) {
			filing.FilingDate = page.FilingDate[i]
		}
		if i < len(page.Form) {
			filing.Form = page.Form[i]
		}
		s.Filings = append(s.Filings, filing)
	}
}

// Form4Filings filters the history down to Forms 4 and 4/A.
func (s *Submissions) Form4Filings() []SubmittedFiling {
	out := make([]SubmittedFiling, 0, len(s.Filings))
	for _, filing := range s.Filings {
		if filing.Form == "4" || filing.Form == "4/A" {
			out = append(out, filing)
		}
	}
	return out
}

package scrape

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"calndr/core/domain"
	"calndr/core/port/out"
)

// dateMatcher pairs a regex with the layout needed to parse whatever
// it matches. Four shapes cover the large majority of how school and
// daycare sites format closure dates.
type dateMatcher struct {
	re     *regexp.Regexp
	layout string
}

var dateMatchers = []dateMatcher{
	{regexp.MustCompile(`\b([A-Z][a-z]+ \d{1,2}, \d{4})\b`), "January 2, 2006"},
	{regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`), "2006-01-02"},
	{regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`), "1/2/2006"},
	{regexp.MustCompile(`\b(\d{1,2} [A-Z][a-z]+ \d{4})\b`), "2 January 2006"},
}

const minTitleLen = 3

// Parser turns a provider calendar page into ProviderEvents.
type Parser struct {
	fetcher out.HTMLFetcher
}

func NewParser(fetcher out.HTMLFetcher) *Parser {
	return &Parser{fetcher: fetcher}
}

// Parse fetches url and scans it for date-shaped events, first by
// walking structured elements (tables, lists, divs) where a date and
// title plausibly live together, then by scanning raw text lines and
// anchor text for anything the structured pass missed.
func (p *Parser) Parse(ctx context.Context, url string) ([]domain.ProviderEvent, error) {
	result, err := p.fetcher.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(result.Body)))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	doc.Find("script, style").Remove()

	seen := make(map[string]bool)
	var events []domain.ProviderEvent

	add := func(date time.Time, title string) {
		title = cleanTitle(title)
		if title == "" {
			return
		}
		key := date.Format("2006-01-02") + "|" + title
		if seen[key] {
			return
		}
		seen[key] = true
		events = append(events, domain.ProviderEvent{
			EventDate: date,
			Title:     domain.TruncateTitle(title),
		})
	}

	scanStructured(doc, "table tr", add)
	scanStructured(doc, "ul li, ol li", add)
	scanStructured(doc, "div", add)

	text := doc.Text()
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		date, rest, ok := extractDate(line)
		if !ok {
			continue
		}
		add(date, rest)
	}

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		date, rest, ok := extractDate(text)
		if !ok {
			return
		}
		add(date, rest)
	})

	return events, nil
}

func scanStructured(doc *goquery.Document, selector string, add func(time.Time, string)) {
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		date, rest, ok := extractDate(text)
		if !ok {
			return
		}
		add(date, rest)
	})
}

// extractDate tries the four date matchers in order; the first whose
// match parses with that matcher's own layout wins, and the remaining
// text with the date removed is returned as a title candidate.
func extractDate(text string) (time.Time, string, bool) {
	for _, m := range dateMatchers {
		loc := m.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		raw := text[loc[0]:loc[1]]
		parsed, err := time.Parse(m.layout, raw)
		if err != nil {
			continue
		}
		rest := strings.TrimSpace(text[:loc[0]] + " " + text[loc[1]:])
		return parsed, rest, true
	}
	return time.Time{}, "", false
}

// cleanTitle applies the filtering rules: trim separators commonly
// left over once a date is stripped out, drop anything too short to
// be a real title, and collapse internal whitespace.
func cleanTitle(title string) string {
	title = strings.Trim(title, " -:|–—\t")
	title = strings.Join(strings.Fields(title), " ")
	if len(title) < minTitleLen {
		return ""
	}
	return title
}

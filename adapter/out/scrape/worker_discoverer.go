package scrape

import (
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"calndr/core/port/out"
	"calndr/pkg/logger"
)

// candidatePaths are probed with HEAD, in order, before falling back
// to anchor scoring. Most school/daycare sites publish their calendar
// at one of these conventional paths.
var candidatePaths = []string{
	"/calendar",
	"/calendar.html",
	"/calendars",
	"/school-calendar",
	"/academic-calendar",
	"/events",
	"/closures",
}

// anchorKeywords weight link text/href when the fixed-path probe
// fails and the discoverer has to guess from the homepage's outbound
// links instead.
var anchorKeywords = map[string]int{
	"calendar": 5,
	"schedule": 3,
	"events":   3,
	"closure":  4,
	"closures": 4,
	"holiday":  2,
	"academic": 2,
}

// Discoverer finds the calendar page URL for a provider's site.
type Discoverer struct {
	fetcher out.HTMLFetcher
}

func NewDiscoverer(fetcher out.HTMLFetcher) *Discoverer {
	return &Discoverer{fetcher: fetcher}
}

// Discover first HEADs each candidate subpath off baseURL; the first
// 200 wins. If none succeed, it GETs the homepage and scores every
// anchor by keyword weight, returning the highest scorer.
func (d *Discoverer) Discover(ctx context.Context, baseURL string) (string, error) {
	base := strings.TrimRight(baseURL, "/")

	for _, path := range candidatePaths {
		candidate := base + path
		status, err := d.fetcher.Head(ctx, candidate)
		if err != nil {
			continue
		}
		if status == http.StatusOK {
			return candidate, nil
		}
	}

	logger.Info("[Discoverer.Discover] no fixed candidate matched base=%s, falling back to anchor scoring", base)

	result, err := d.fetcher.Get(ctx, base)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(result.Body)))
	if err != nil {
		return "", err
	}

	bestScore := 0
	bestHref := ""
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		text := strings.ToLower(s.Text())
		lowerHref := strings.ToLower(href)
		score := 0
		for kw, weight := range anchorKeywords {
			if strings.Contains(text, kw) || strings.Contains(lowerHref, kw) {
				score += weight
			}
		}
		if score > bestScore {
			bestScore = score
			bestHref = href
		}
	})

	if bestHref == "" {
		return "", nil
	}
	return resolveHref(base, bestHref), nil
}

func resolveHref(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return base + href
	}
	return base + "/" + href
}

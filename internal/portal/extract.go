package portal

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractCSVLink scans all hyperlinks of a detail page and returns the href
// of the first one whose path ends in "csv". It returns "" when no link
// qualifies; reachability of the URL is not checked here.
func ExtractCSVLink(doc *goquery.Document) string {
	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		if strings.HasSuffix(strings.TrimSpace(href), "csv") {
			link = strings.TrimSpace(href)
			return false
		}
		return true
	})
	return link
}

// ExtractKeywords collects the keyword labels from a detail page's tag
// list. A page without the expected structure yields an empty slice, never
// an error: the portal's markup is outside our control and a parse miss on
// one page must not abort ingestion of the rest of the feed. The same
// extract-or-empty policy applies to any similarly brittle page rule added
// here.
func ExtractKeywords(doc *goquery.Document) []string {
	keywords := []string{}
	doc.Find("dl.taglist dd span").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			keywords = append(keywords, text)
		}
	})
	return keywords
}

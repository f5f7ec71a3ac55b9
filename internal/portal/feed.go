package portal

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Entry is one item of the portal's syndication feed. ID doubles as the
// dereferenceable URL of the dataset's detail page.
type Entry struct {
	ID      string
	Title   string
	Author  string
	Summary string
	Tags    []string
}

// FirstTag returns the entry's first tag label, or fallback when the entry
// carries none.
func (e Entry) FirstTag(fallback string) string {
	if len(e.Tags) > 0 {
		return e.Tags[0]
	}
	return fallback
}

// FetchFeed retrieves the feed and returns at most limit entries in feed
// order. Unlike detail pages and CSVs, a failure here fails the whole
// ingestion run: without the feed there is nothing to ingest.
func (c *Client) FetchFeed(ctx context.Context, url string, limit int) ([]Entry, error) {
	b, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	entries, err := parseFeed(b)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Feed XML shapes. The portal serves Atom; the RSS shape is accepted too
// because the portal has historically switched formats without notice.

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string   `xml:"id"`
	Title      string   `xml:"title"`
	AuthorName string   `xml:"author>name"`
	Summary    string   `xml:"summary"`
	Categories []struct {
		Term  string `xml:"term,attr"`
		Label string `xml:"label,attr"`
	} `xml:"category"`
}

type rssDoc struct {
	XMLName xml.Name  `xml:"rss"`
	Items   []rssItem `xml:"channel>item"`
}

type rssItem struct {
	Link        string   `xml:"link"`
	GUID        string   `xml:"guid"`
	Title       string   `xml:"title"`
	Author      string   `xml:"author"`
	Description string   `xml:"description"`
	Categories  []string `xml:"category"`
}

func parseFeed(raw []byte) ([]Entry, error) {
	var af atomFeed
	if err := decodeXML(raw, &af); err == nil && len(af.Entries) > 0 {
		out := make([]Entry, 0, len(af.Entries))
		for _, e := range af.Entries {
			entry := Entry{
				ID:      strings.TrimSpace(e.ID),
				Title:   strings.TrimSpace(e.Title),
				Author:  strings.TrimSpace(e.AuthorName),
				Summary: strings.TrimSpace(e.Summary),
			}
			for _, c := range e.Categories {
				label := strings.TrimSpace(c.Label)
				if label == "" {
					label = strings.TrimSpace(c.Term)
				}
				if label != "" {
					entry.Tags = append(entry.Tags, label)
				}
			}
			out = append(out, entry)
		}
		return out, nil
	}

	var rd rssDoc
	if err := decodeXML(raw, &rd); err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rd.Items))
	for _, it := range rd.Items {
		id := strings.TrimSpace(it.Link)
		if id == "" {
			id = strings.TrimSpace(it.GUID)
		}
		entry := Entry{
			ID:      id,
			Title:   strings.TrimSpace(it.Title),
			Author:  strings.TrimSpace(it.Author),
			Summary: strings.TrimSpace(it.Description),
		}
		for _, c := range it.Categories {
			if c = strings.TrimSpace(c); c != "" {
				entry.Tags = append(entry.Tags, c)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// decodeXML unmarshals feed XML, accepting the legacy single-byte charset
// some portal responses still declare.
func decodeXML(raw []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(charset) {
		case "iso-8859-1", "latin1", "windows-1252":
			return charmap.ISO8859_1.NewDecoder().Reader(input), nil
		default:
			return input, nil
		}
	}
	return dec.Decode(v)
}

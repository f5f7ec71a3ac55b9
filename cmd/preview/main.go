package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"enrich/internal/portal"
)

// main inspects a single portal resource the way the crawler would see
// it: for a detail page it reports the extracted CSV link and keywords,
// for a CSV it reports separator-decoded columns, inferred types and the
// preview text.
func main() {
	var (
		csvURL    string
		detailURL string
		rows      int
		timeout   time.Duration
	)

	flag.StringVar(&csvURL, "url", "", "CSV URL to probe")
	flag.StringVar(&detailURL, "detail", "", "dataset detail page URL to probe")
	flag.IntVar(&rows, "rows", 10, "preview row count")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	flag.Parse()

	if (csvURL == "") == (detailURL == "") {
		fatalf("exactly one of -url or -detail is required")
	}

	ctx := context.Background()
	client := portal.NewClient(nil, timeout)

	if detailURL != "" {
		doc, err := client.FetchDetail(ctx, detailURL)
		if err != nil {
			fatalf("%v", err)
		}
		link := portal.ExtractCSVLink(doc)
		if link == "" {
			fmt.Println("csv link: (none)")
		} else {
			fmt.Printf("csv link: %s\n", link)
		}
		fmt.Printf("keywords: %v\n", portal.ExtractKeywords(doc))
		if link == "" {
			return
		}
		csvURL = link
	}

	f, err := client.FetchCSV(ctx, csvURL)
	if err != nil {
		fatalf("%v", err)
	}

	sig := f.Signature()
	names := make([]string, 0, len(sig))
	for name := range sig {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("separator: %q\n", f.Sep)
	fmt.Printf("columns: %d, rows: %d\n", f.NumColumns(), f.NumRows())
	for _, name := range names {
		fmt.Printf("  %-24s %s\n", name, sig[name])
	}
	fmt.Println()
	fmt.Println(f.Preview(rows))
}

func fatalf(format string, args ...any) {
	log.Printf(format, args...)
	os.Exit(1)
}

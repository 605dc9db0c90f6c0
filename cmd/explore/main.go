// Command explore runs the site crawler on its own and prints what the
// pipeline would see: pages, forms, fields and links, optionally as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/services/explorer"
)

func main() {
	url := flag.String("url", "https://demo.playwright.dev/todomvc", "Start URL to explore")
	maxPages := flag.Int("pages", 6, "Maximum pages to crawl")
	maxDepth := flag.Int("depth", 2, "Maximum crawl depth")
	timeout := flag.Duration("timeout", 10*time.Second, "Per-request timeout")
	output := flag.String("output", "", "Output file for JSON result (empty for stdout summary only)")
	verbose := flag.Bool("verbose", false, "Verbose crawler logging")

	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	fmt.Printf("Exploring: %s\n", *url)
	fmt.Printf("Max pages: %d, Max depth: %d, Timeout: %s\n", *maxPages, *maxDepth, *timeout)
	fmt.Println("---")

	cfg := explorer.Config{
		MaxDepth: *maxDepth,
		MaxPages: *maxPages,
		Timeout:  *timeout,
	}

	startTime := time.Now()
	crawl, err := explorer.New(cfg, logger).Explore(context.Background(), *url)
	if err != nil {
		fmt.Printf("Error crawling: %v\n", err)
		os.Exit(1)
	}
	duration := time.Since(startTime)

	forms, fields, links := 0, 0, 0
	for _, page := range crawl.Pages {
		links += len(page.Links)
		forms += len(page.Forms)
		for _, form := range page.Forms {
			fields += len(form.Fields)
		}
	}

	fmt.Println("Exploration Results:")
	fmt.Printf("├── Pages Found: %d\n", len(crawl.Pages))
	fmt.Printf("├── Forms: %d\n", forms)
	fmt.Printf("├── Fields: %d\n", fields)
	fmt.Printf("├── Links: %d\n", links)
	fmt.Printf("└── Duration: %s\n", duration.Round(time.Millisecond))

	fmt.Println("\nDiscovered Pages:")
	for _, page := range crawl.Pages {
		fmt.Printf("  - %s\n", page.URL)
		fmt.Printf("    Title: %s\n", page.Title)
		fmt.Printf("    Forms: %d, Links: %d\n", len(page.Forms), len(page.Links))
		if page.Error != "" {
			fmt.Printf("    Error: %s\n", page.Error)
		}
		for _, form := range page.Forms {
			fmt.Printf("    Form %q: %d fields, %d buttons\n",
				form.Name, len(form.Fields), len(form.Buttons))
		}
	}

	if *output != "" {
		jsonData, err := json.MarshalIndent(crawl, "", "  ")
		if err != nil {
			fmt.Printf("Error marshaling JSON: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*output, jsonData, 0644); err != nil {
			fmt.Printf("Error writing file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nJSON output saved to: %s\n", *output)
	}
}

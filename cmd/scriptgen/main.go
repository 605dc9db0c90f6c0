// Command scriptgen turns a test case JSON file (as written by the API or
// the storyqa CLI) into a runnable Playwright suite, either as a directory
// or as the zip archive the sandbox runner consumes.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/services/scriptgen"
)

func main() {
	casesFile := flag.String("cases", "", "Path to test cases JSON file")
	outputDir := flag.String("output", "./generated", "Output directory for the suite")
	baseURL := flag.String("base-url", "", "Base URL for tests (defaults to the first case's page URL)")
	name := flag.String("name", "", "Suite name (defaults to the first case's feature)")
	zipPath := flag.String("zip", "", "Also write the suite as a zip archive to this path")
	flag.Parse()

	if *casesFile == "" {
		fmt.Println("Error: -cases flag is required")
		fmt.Println("Usage: scriptgen -cases testcases.json -output ./generated")
		os.Exit(1)
	}

	cases, err := loadCases(*casesFile)
	if err != nil {
		fmt.Printf("Error loading test cases: %v\n", err)
		os.Exit(1)
	}
	if len(cases) == 0 {
		fmt.Println("Error: no test cases in input file")
		os.Exit(1)
	}

	url := *baseURL
	if url == "" {
		for _, tc := range cases {
			if tc.PageURL != "" {
				url = tc.PageURL
				break
			}
		}
	}

	suiteName := *name
	if suiteName == "" {
		suiteName = cases[0].Feature
	}

	fmt.Printf("Loaded %d test cases\n", len(cases))
	fmt.Printf("├── Suite: %s\n", suiteName)
	fmt.Printf("└── Base URL: %s\n\n", url)

	fmt.Println("Generating Playwright suite...")
	startTime := time.Now()

	project := scriptgen.NewGenerator(url).Generate(suiteName, cases)

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Printf("Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	filesWritten := 0
	for filename, content := range project.Files {
		fullPath := filepath.Join(*outputDir, filepath.FromSlash(filename))

		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			fmt.Printf("Error creating directory for %s: %v\n", filename, err)
			continue
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			fmt.Printf("Error writing %s: %v\n", filename, err)
			continue
		}
		filesWritten++
	}

	if *zipPath != "" {
		archive, err := project.Zip()
		if err != nil {
			fmt.Printf("Error building zip archive: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*zipPath, archive, 0644); err != nil {
			fmt.Printf("Error writing zip archive: %v\n", err)
			os.Exit(1)
		}
	}

	duration := time.Since(startTime)

	fmt.Println("\n=== SUITE GENERATION COMPLETE ===")
	fmt.Printf("📁 Output Directory: %s\n", *outputDir)
	fmt.Printf("📄 Files Generated: %d\n", filesWritten)
	fmt.Printf("🧪 Test Cases: %d\n", project.TestCount)
	if *zipPath != "" {
		fmt.Printf("📦 Archive: %s\n", *zipPath)
	}
	fmt.Printf("⏱️  Duration: %s\n", duration.Round(time.Millisecond))

	fmt.Println("\nGenerated Files:")
	names := make([]string, 0, len(project.Files))
	for filename := range project.Files {
		names = append(names, filename)
	}
	sort.Strings(names)
	for _, filename := range names {
		marker := "├──"
		if filename == names[len(names)-1] {
			marker = "└──"
		}
		fmt.Printf("   %s %s\n", marker, filename)
	}

	fmt.Println("\n🚀 Next Steps:")
	fmt.Printf("   cd %s\n", *outputDir)
	fmt.Println("   npm ci")
	fmt.Println("   npx playwright install")
	fmt.Println("   npx playwright test")
}

func loadCases(path string) ([]domain.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var cases []domain.TestCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	return cases, nil
}

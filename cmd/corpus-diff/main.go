//go:build yara

package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	yara "github.com/hillu/go-yara/v4"

	"github.com/yaraeng/yarago/cmd/internal"
	"github.com/yaraeng/yarago/scanner"
)

func main() {
	var yaraFile, corpusDir string
	flag.StringVar(&yaraFile, "yara", "", "path to YARA rules file")
	flag.StringVar(&corpusDir, "corpus", "", "path to corpus directory")
	flag.Parse()

	if yaraFile == "" || corpusDir == "" {
		fmt.Fprintf(os.Stderr, "Usage: corpus-diff -yara <rules.yar> -corpus <dir>\n")
		os.Exit(1)
	}

	goYaraRules, err := internal.GoYaraRules(yaraFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error compiling go-yara rules: %v\n", err)
		os.Exit(1)
	}

	yaragoRules, err := internal.YaragoRules(yaraFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error compiling yarago rules: %v\n", err)
		os.Exit(1)
	}

	// Track rule differences: rule -> count
	yaragoOnly := make(map[string]int)
	goYaraOnly := make(map[string]int)
	exampleFiles := make(map[string]string) // rule -> example file where it differs

	filepath.WalkDir(corpusDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		// Get go-yara matches
		var goYaraMatches yara.MatchRules
		goYaraRules.ScanMem(data, yara.ScanFlagsFastMode, 30*time.Second, &goYaraMatches)
		goYaraSet := make(map[string]bool)
		for _, m := range goYaraMatches {
			goYaraSet[m.Rule] = true
		}

		// Get yarago matches
		yaragoMatches, err := yaragoRules.ScanBytes(data, scanner.ScanOptions{Timeout: 30 * time.Second})
		if err != nil {
			return nil
		}
		yaragoSet := make(map[string]bool)
		for _, m := range yaragoMatches {
			yaragoSet[m.Rule] = true
		}

		// Find differences
		for rule := range yaragoSet {
			if !goYaraSet[rule] {
				yaragoOnly[rule]++
				if _, ok := exampleFiles["yarago:"+rule]; !ok {
					exampleFiles["yarago:"+rule] = path
				}
			}
		}
		for rule := range goYaraSet {
			if !yaragoSet[rule] {
				goYaraOnly[rule]++
				if _, ok := exampleFiles["goyara:"+rule]; !ok {
					exampleFiles["goyara:"+rule] = path
				}
			}
		}

		return nil
	})

	// Sort and print yarago-only matches
	fmt.Printf("Rules matching in yarago but NOT in go-yara (%d total extra matches):\n", internal.SumValues(yaragoOnly))
	for _, rule := range internal.SortByCount(yaragoOnly) {
		fmt.Printf("  %s: %d occurrences (e.g. %s)\n", rule, yaragoOnly[rule], filepath.Base(exampleFiles["yarago:"+rule]))
	}

	fmt.Printf("\nRules matching in go-yara but NOT in yarago (%d total missing matches):\n", internal.SumValues(goYaraOnly))

	var unexplained []string
	for _, rule := range internal.SortByCount(goYaraOnly) {
		fmt.Printf("  %s: %d occurrences (e.g. %s) [UNEXPECTED]\n", rule, goYaraOnly[rule], filepath.Base(exampleFiles["goyara:"+rule]))
		unexplained = append(unexplained, rule)
	}

	if len(unexplained) > 0 {
		fmt.Printf("\n*** %d rules with UNEXPLAINED missing matches: %v\n", len(unexplained), unexplained)
	}
}

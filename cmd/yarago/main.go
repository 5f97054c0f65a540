// Command yarago scans a file or directory tree against a YARA rules
// file, printing the path and matched rule names for every hit.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/yaraeng/yarago/scanner"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: yarago <rules.yar> <path>\n")
		os.Exit(1)
	}

	rulesFile := os.Args[1]
	scanPath := os.Args[2]

	rules, err := scanner.FromFiles(rulesFile)
	if err != nil {
		color.Red("error compiling rules: %v", err)
		os.Exit(1)
	}

	fi, err := os.Stat(scanPath)
	if err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}

	var results []scanner.DirectoryResult
	if fi.IsDir() {
		results, err = rules.ScanDirectory(scanPath, true, scanner.ScanOptions{})
		if err != nil {
			color.Red("error walking %s: %v", scanPath, err)
			os.Exit(1)
		}
	} else {
		matches, scanErr := rules.ScanFile(scanPath, scanner.ScanOptions{})
		results = []scanner.DirectoryResult{{Path: scanPath, Matches: matches, Err: scanErr}}
	}

	var scanned, matched int
	ruleName := color.New(color.FgGreen, color.Bold)
	pathName := color.New(color.FgCyan)

	for _, r := range results {
		if r.Err != nil {
			color.Yellow("error scanning %s: %v", r.Path, r.Err)
			continue
		}
		scanned++
		if len(r.Matches) == 0 {
			continue
		}
		matched++
		pathName.Print(r.Path)
		fmt.Print(": ")
		for i, m := range r.Matches {
			if i > 0 {
				fmt.Print(", ")
			}
			ruleName.Print(m.Rule)
		}
		fmt.Println()
	}

	fmt.Fprintf(os.Stderr, "scanned %d files, %d matched\n", scanned, matched)
}

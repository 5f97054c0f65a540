package scanner_test

import (
	"os"
	"strings"
	"testing"

	"github.com/yaraeng/yarago/scanner"
)

func TestScanBytesBasicStringMatch(t *testing.T) {
	cr, err := scanner.Compile(`
rule php_tag {
    strings:
        $php = "<?php"
    condition:
        $php
}
`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	matches, err := cr.ScanBytes([]byte("<html><?php echo 1; ?></html>"), scanner.ScanOptions{})
	if err != nil {
		t.Fatalf("ScanBytes: %v", err)
	}
	if len(matches) != 1 || matches[0].Rule != "php_tag" {
		t.Fatalf("expected one match for php_tag, got %+v", matches)
	}
	if len(matches[0].Strings) != 1 || matches[0].Strings[0].Name != "$php" {
		t.Errorf("expected one $php string match, got %+v", matches[0].Strings)
	}
}

func TestScanBytesNoMatch(t *testing.T) {
	cr, err := scanner.Compile(`
rule never {
    strings:
        $a = "not-present-anywhere"
    condition:
        $a
}
`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	matches, err := cr.ScanBytes([]byte("nothing to see here"), scanner.ScanOptions{})
	if err != nil {
		t.Fatalf("ScanBytes: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %+v", matches)
	}
}

func TestScanBytesPrivateRuleNeverReported(t *testing.T) {
	cr, err := scanner.Compile(`
private rule helper {
    strings:
        $a = "needle"
    condition:
        $a
}
rule uses_helper {
    condition:
        helper
}
`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	matches, err := cr.ScanBytes([]byte("a needle in a haystack"), scanner.ScanOptions{})
	if err != nil {
		t.Fatalf("ScanBytes: %v", err)
	}
	if len(matches) != 1 || matches[0].Rule != "uses_helper" {
		t.Fatalf("expected only uses_helper to be reported, got %+v", matches)
	}
}

func TestScanBytesGlobalRuleGatesOthers(t *testing.T) {
	cr, err := scanner.Compile(`
global rule must_be_pe {
    condition:
        uint16(0) == 0x5A4D
}
rule suspicious {
    strings:
        $a = "evil"
    condition:
        $a
}
`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	matches, err := cr.ScanBytes([]byte("not a pe, but evil"), scanner.ScanOptions{})
	if err != nil {
		t.Fatalf("ScanBytes: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected global gate to suppress suspicious, got %+v", matches)
	}
}

func TestScanBytesMeta(t *testing.T) {
	cr, err := scanner.Compile(`
rule tagged {
    meta:
        trust = 80
        author = "analyst"
    condition:
        true
}
`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	matches, err := cr.ScanBytes([]byte(""), scanner.ScanOptions{})
	if err != nil {
		t.Fatalf("ScanBytes: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one match, got %+v", matches)
	}
	if got := matches[0].Meta("trust"); got != int64(80) {
		t.Errorf("Meta(trust) = %v, want 80", got)
	}
	if got := matches[0].MetaString("author", ""); got != "analyst" {
		t.Errorf("MetaString(author) = %q, want analyst", got)
	}
}

func TestScanBytesHashModule(t *testing.T) {
	cr, err := scanner.Compile(`
rule md5_match {
    condition:
        hash.md5(0, filesize) == "900150983cd24fb0d6963f7d28e17f72"
}
`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	matches, err := cr.ScanBytes([]byte("abc"), scanner.ScanOptions{})
	if err != nil {
		t.Fatalf("ScanBytes: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected hash.md5 match, got %+v", matches)
	}
}

func TestScanBytesConditionErrorDoesNotAbortScan(t *testing.T) {
	cr, err := scanner.Compile(`
rule divides {
    condition:
        1 / 0 == 0
}
rule always_true {
    condition:
        true
}
`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var debug strings.Builder
	matches, err := cr.ScanBytes([]byte(""), scanner.ScanOptions{DebugWriter: &debug})
	if err != nil {
		t.Fatalf("ScanBytes: %v", err)
	}
	if len(matches) != 1 || matches[0].Rule != "always_true" {
		t.Fatalf("expected divides to error and always_true to still match, got %+v", matches)
	}
	if !strings.Contains(debug.String(), "divides") {
		t.Errorf("expected debug output to mention the erroring rule, got %q", debug.String())
	}
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/a.txt", "contains needle here")
	writeFile(t, dir+"/b.txt", "clean file")

	cr, err := scanner.Compile(`
rule has_needle {
    strings:
        $n = "needle"
    condition:
        $n
}
`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	results, err := cr.ScanDirectory(dir, true, scanner.ScanOptions{})
	if err != nil {
		t.Fatalf("ScanDirectory: %v", err)
	}
	var hit, miss int
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("unexpected error scanning %s: %v", r.Path, r.Err)
		}
		if len(r.Matches) > 0 {
			hit++
		} else {
			miss++
		}
	}
	if hit != 1 || miss != 1 {
		t.Errorf("expected 1 hit and 1 miss, got hit=%d miss=%d", hit, miss)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

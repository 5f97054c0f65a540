package scanner

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CorpusCase describes one expected-match assertion for a single sample
// in a YAML-described test corpus, generalizing the trust-threshold
// check the teacher's corpus-validator command hardcoded inline.
type CorpusCase struct {
	Path          string   `yaml:"path"`
	ExpectRules   []string `yaml:"expect_rules,omitempty"`
	ExpectNoMatch bool     `yaml:"expect_no_match,omitempty"`
	MinTrust      int64    `yaml:"min_trust,omitempty"`
}

// CorpusManifest is a declarative corpus description: which sample files
// to scan and what each one is expected to match.
type CorpusManifest struct {
	Cases []CorpusCase `yaml:"cases"`
}

// LoadCorpusManifest reads and parses a YAML corpus manifest.
func LoadCorpusManifest(path string) (*CorpusManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scanner: reading corpus manifest: %w", err)
	}
	var m CorpusManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("scanner: parsing corpus manifest: %w", err)
	}
	return &m, nil
}

// CorpusResult is one case's outcome against a CompiledRules.
type CorpusResult struct {
	Case    CorpusCase
	Matches []MatchRule
	Err     error
	Passed  bool
	Reason  string // set when Passed is false and Err is nil
}

// trustOf returns a match's "trust" meta field, defaulting to 100 when
// absent, matching the teacher's corpus-validator convention.
func trustOf(m *MatchRule) int64 {
	if v, ok := m.Meta("trust").(int64); ok {
		return v
	}
	return 100
}

// VerifyCorpus scans every case in m (resolved relative to baseDir) and
// checks its matches against the case's expectations. It never stops at
// the first failing or unreadable case; every case gets a CorpusResult.
func (cr *CompiledRules) VerifyCorpus(m *CorpusManifest, baseDir string, opts ScanOptions) []CorpusResult {
	results := make([]CorpusResult, 0, len(m.Cases))
	for _, c := range m.Cases {
		path := c.Path
		if baseDir != "" {
			path = filepath.Join(baseDir, c.Path)
		}
		matches, err := cr.ScanFile(path, opts)
		if err != nil {
			results = append(results, CorpusResult{Case: c, Err: err})
			continue
		}
		passed, reason := checkExpectations(c, matches)
		results = append(results, CorpusResult{Case: c, Matches: matches, Passed: passed, Reason: reason})
	}
	return results
}

func checkExpectations(c CorpusCase, matches []MatchRule) (bool, string) {
	if c.ExpectNoMatch {
		if len(matches) > 0 {
			return false, fmt.Sprintf("expected no match, got %d", len(matches))
		}
		return true, ""
	}

	if len(c.ExpectRules) > 0 {
		for _, want := range c.ExpectRules {
			if !containsRule(matches, want) {
				return false, fmt.Sprintf("expected rule %q did not match", want)
			}
		}
	}

	if c.MinTrust > 0 {
		best := int64(0)
		for i := range matches {
			if t := trustOf(&matches[i]); t > best {
				best = t
			}
		}
		if best < c.MinTrust {
			return false, fmt.Sprintf("best trust %d below minimum %d", best, c.MinTrust)
		}
	}

	return true, ""
}

func containsRule(matches []MatchRule, name string) bool {
	for _, m := range matches {
		if m.Rule == name {
			return true
		}
	}
	return false
}

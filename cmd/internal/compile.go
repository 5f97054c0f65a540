package internal

import (
	"os"

	"github.com/yaraeng/yarago/scanner"
)

// YaragoRules compiles a YARA rules file with yarago, for comparison
// against a reference implementation.
func YaragoRules(yaraFile string) (*scanner.CompiledRules, error) {
	src, err := os.ReadFile(yaraFile)
	if err != nil {
		return nil, err
	}
	return scanner.Compile(string(src))
}

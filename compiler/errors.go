package compiler

import "fmt"

// DuplicateRuleError reports two rules in the same ruleset sharing a name.
type DuplicateRuleError struct{ Name string }

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("duplicate rule name %q", e.Name)
}

// DuplicateStringError reports two string declarations in the same rule
// sharing a name.
type DuplicateStringError struct {
	Rule, Name string
}

func (e *DuplicateStringError) Error() string {
	return fmt.Sprintf("rule %q: duplicate string %q", e.Rule, e.Name)
}

// UndefinedStringError reports a condition referencing a $name the rule
// never declared.
type UndefinedStringError struct {
	Rule, Name string
}

func (e *UndefinedStringError) Error() string {
	return fmt.Sprintf("rule %q: undefined string %q", e.Rule, e.Name)
}

// UndefinedIdentifierError reports a condition referencing a rule or
// module name the compiler can't resolve.
type UndefinedIdentifierError struct {
	Rule, Name string
}

func (e *UndefinedIdentifierError) Error() string {
	return fmt.Sprintf("rule %q: undefined identifier %q", e.Rule, e.Name)
}

// RuleCycleError reports a private-rule reference cycle, e.g. a calls b
// calls a.
type RuleCycleError struct{ Cycle []string }

func (e *RuleCycleError) Error() string {
	return fmt.Sprintf("rule reference cycle: %v", e.Cycle)
}

// UnsupportedFeatureError reports a construct the compiler recognizes
// but deliberately does not implement.
type UnsupportedFeatureError struct {
	Rule, Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("rule %q: unsupported feature: %s", e.Rule, e.Feature)
}

// InvalidHexError wraps a hex pattern decoding failure with its rule and
// string name.
type InvalidHexError struct {
	Rule, Name string
	Err        error
}

func (e *InvalidHexError) Error() string {
	return fmt.Sprintf("rule %q string %s: invalid hex pattern: %v", e.Rule, e.Name, e.Err)
}

func (e *InvalidHexError) Unwrap() error { return e.Err }

// InvalidRegexError wraps a regex pattern that fails to compile or that
// the matcher can't index (e.g. no usable atom).
type InvalidRegexError struct {
	Rule, Name string
	Err        error
}

func (e *InvalidRegexError) Error() string {
	return fmt.Sprintf("rule %q string %s: invalid regex: %v", e.Rule, e.Name, e.Err)
}

func (e *InvalidRegexError) Unwrap() error { return e.Err }

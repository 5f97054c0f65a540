// Package compiler turns a parsed *ast.RuleSet into a Program: a table of
// patterns destined for the Aho-Corasick matcher plus, for each rule, a
// condition compiled to a small stack bytecode that the vm package
// executes once per scan.
package compiler

// Opcode identifies one bytecode instruction. The machine is a plain
// operand stack machine: every opcode pops however many operands it
// needs and pushes exactly one vm.Value, except for the control-flow and
// frame opcodes noted below.
type Opcode byte

const (
	OpNop Opcode = iota

	// Constants and identifiers
	OpPushInt    // A indexes IntPool
	OpPushFloat  // A indexes FloatPool
	OpPushStr    // A indexes StrPool
	OpPushBool   // A is 0 or 1
	OpPushFilesize
	OpPushEntrypoint
	OpLoadIdent // A indexes IdentPool (module/global identifier path, dotted)
	OpLoadVar   // A indexes IdentPool (loop variable name); the innermost live loop binding that name supplies the value

	// String (pattern) probes, all taking A as an index into
	// Program.StringGroups
	OpStringMatches   // -> bool, $a
	OpStringCount     // -> int, #a
	OpStringCountIn   // pops (lo, hi) -> int, #a in (lo..hi)
	OpStringOffset    // pops index -> int, @a[index]
	OpStringLength    // pops index -> int, !a[index]
	OpStringAt        // pops pos -> bool, $a at pos
	OpStringIn        // pops (lo, hi) -> bool, $a in (lo..hi)

	// Arithmetic (pop b, a; push a OP b)
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg // unary, pop a; push -a

	// Bitwise (pop b, a; push a OP b)
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot // unary
	OpShl
	OpShr

	// Comparison (pop b, a; push bool)
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpContains
	OpIContains
	OpStartsWith
	OpIStartsWith
	OpEndsWith
	OpIEndsWith
	OpMatches  // regex match against a string operand
	OpIEquals  // bytewise case-insensitive equality

	// Boolean
	OpAnd // both operands are evaluated first; no short-circuit
	OpOr
	OpNot

	// Access
	OpIndex    // pops (base, index) -> value
	OpField    // A indexes a field name in StrPool; pops base -> value
	OpCall     // A indexes CallPool (qualified function name); pops N args (N in B)
	OpCallRule // A indexes Program.Rules; push the referenced rule's evaluated result (cycle-checked at compile time)

	// Quantifier reducers: a quantified "of"/"for" expression evaluates
	// its body (or each string in a set) N times, incrementing a hidden
	// counter in the current frame each time the body is truthy, then
	// compares the counter against the target established by
	// OpQuantInit. OpQuantTest, emitted once after the last tick, reports
	// whether the accumulated count satisfies the quantifier; evaluation
	// does not stop early.
	OpQuantInit  // A: 0=all 1=any 2=none 3=count 4=percent; pushes frame
	OpQuantTick  // pops bool, bumps the frame counter if true
	OpQuantTest  // pushes bool: whether the frame counter satisfies target
	OpQuantPop   // pops the current quantifier frame

	// For-loops: OpLoopInit pushes an induction frame iterating A (0=int
	// range, popping (lo,hi); 1=expression list of B items already on the
	// stack; 2=string set, B indexing GroupSetPool). OpLoopNext binds the
	// induction variable and pushes true while iterations are left, false
	// once exhausted; the emitted loop exits via OpJumpIfFalse and
	// returns to OpLoopNext via OpJump.
	OpLoopInit
	OpLoopNext
	OpLoopPop

	// Control flow. Jump targets are absolute instruction indices.
	OpJump
	OpJumpIfFalse // pops bool
	OpJumpIfTrue  // pops bool

	OpReturn // pops bool, ends condition evaluation with that result
)

// Instruction is one bytecode instruction. A and B are operand indices or
// immediates, meaning depends on Op (see the Opcode doc comments above).
type Instruction struct {
	Op Opcode
	A  int
	B  int
}

// Program is the full compiled artifact for a rule set: shared constant
// pools plus one CompiledRule per (non-suppressed) rule, in source order.
type Program struct {
	IntPool    []int64
	FloatPool  []float64
	StrPool    []string
	CallPool   []string // dotted qualified function names, e.g. "hash.md5"
	IdentPool  []string // dotted module/global identifier paths

	Patterns     []CompiledPattern
	StringGroups []StringGroup
	// GroupSetPool holds the resolved string-set operands of `for`
	// expressions that iterate a set of strings (e.g. `for any s in
	// ($a,$b,$c*)`), each entry a list of indices into StringGroups.
	GroupSetPool [][]int
	Rules        []*CompiledRule
}

// StringGroup collects the one or more atom-level CompiledPatterns that
// together implement a single declared $string. A plain literal string
// is one atom; nocase/wide/xor/base64 modifiers expand a declaration
// into several atoms, all OR'd together by the matcher when answering
// $name/#name/@name/!name probes. OpString* instructions address a
// group by its index into Program.StringGroups.
type StringGroup struct {
	RuleIndex int
	Name      string // e.g. "$a"
	Fullword  bool
	Patterns  []int // indices into Program.Patterns
}

// CompiledPattern is one atom-level pattern destined for the
// Aho-Corasick matcher, together with enough bookkeeping for the matcher
// package to run verification (hex jumps/alternations, regex atoms) and
// attribute a hit back to its declaring rule and string name.
type CompiledPattern struct {
	RuleIndex  int
	StringName string
	Atom       []byte

	// Kind-specific verification data; exactly one is populated.
	Hex   *HexPattern
	Regex *RegexPattern
	Plain bool // a literal/base64/xor pattern that needs no further verification

	Fullword bool
	Nocase   bool
	Wide     bool
}

// RegexPattern carries the RE2 source the matcher compiles and runs
// against a window around each atom hit.
type RegexPattern struct {
	Source          string
	CaseInsensitive bool
}

// CompiledRule is one rule's bytecode and metadata.
type CompiledRule struct {
	Name       string
	Tags       []string
	Global     bool
	Private    bool
	Meta       []MetaEntry
	StringRefs []string // the $names this rule declares, for #/@/! resolution

	Condition []Instruction

	// Private rules this rule's condition calls into by name
	// (`other_rule` used as a bare boolean sub-expression); resolved to
	// indices into Program.Rules at link time.
	Calls []int

	// GlobalGates are the indices of `global` rules in Program.Rules
	// that must also evaluate true for this rule to match. YARA ANDs
	// every global rule's condition into every other rule in the same
	// ruleset; global rules themselves never appear as standalone
	// matches (vm.Evaluator.Evaluate and scanner.ScanBytes skip them).
	GlobalGates []int
}

// MetaEntry mirrors ast.MetaEntry after compilation (kept distinct so
// the compiler package doesn't leak ast types into vm/scanner).
type MetaEntry struct {
	Key   string
	Value any
}

// Package vm executes a compiler.Program's rule bytecode: a small stack
// machine that reads string-match results from a *matcher.Matches and
// defers filesize/entrypoint/module data to an Environment supplied by
// the caller (the scanner package, in production; a stub in tests).
package vm

import (
	"math"
	"strings"

	regexp "github.com/wasilibs/go-re2"

	"github.com/yaraeng/yarago/compiler"
	"github.com/yaraeng/yarago/matcher"
)

// Environment supplies everything a condition needs beyond the bytecode
// itself: the scanned buffer, module/global identifier resolution, and
// qualified function dispatch (hash.md5, pe.*, math.entropy, ...).
type Environment interface {
	Filesize() int64
	Entrypoint() int64
	Buffer() []byte
	ResolveIdent(path string) (Value, error)
	CallFunction(name string, args []Value) (Value, error)
}

// RuleCycleRuntimeError means OpCallRule re-entered a rule already being
// evaluated. The compiler's DFS cycle check (see compiler.checkRuleCycles)
// is supposed to reject every such ruleset at compile time, so seeing
// this at runtime indicates a compiler/vm contract bug rather than a bad
// rule.
type RuleCycleRuntimeError struct {
	RuleIndex int
}

func (e *RuleCycleRuntimeError) Error() string {
	return "vm: rule evaluation cycle detected at runtime"
}

// Evaluator runs every rule in a Program against one scan's Matches and
// Environment, memoizing each rule's result so OpCallRule references and
// repeated global-gate checks only evaluate a rule once per scan.
type Evaluator struct {
	prog    *compiler.Program
	matches *matcher.Matches
	env     Environment
	cache   map[int]ruleResult
}

type ruleResult struct {
	evaluating bool
	done       bool
	value      bool
}

// NewEvaluator builds an Evaluator for one scan.
func NewEvaluator(prog *compiler.Program, matches *matcher.Matches, env Environment) *Evaluator {
	return &Evaluator{prog: prog, matches: matches, env: env, cache: make(map[int]ruleResult)}
}

// Evaluate runs every non-global rule and returns the indices, in
// Program.Rules order, of the ones that matched, plus any per-rule
// scan-time errors keyed by rule index. A rule whose condition errors
// (StackUnderflow, InvalidOpcode, DivisionByZero, UnknownFunction, ...)
// is treated as non-matching; the error is reported against that rule
// only, and every other rule still evaluates. Global rules never appear
// in the result directly; they gate other rules via GlobalGates.
func (ev *Evaluator) Evaluate() ([]int, map[int]error) {
	var matched []int
	var errs map[int]error
	for i, r := range ev.prog.Rules {
		if r.Global {
			continue
		}
		ok, err := ev.EvaluateRule(i)
		if err != nil {
			if errs == nil {
				errs = make(map[int]error)
			}
			errs[i] = err
			continue
		}
		if ok {
			matched = append(matched, i)
		}
	}
	return matched, errs
}

// EvaluateRule runs one rule's condition (after ANDing in its global
// gates), memoizing the result.
func (ev *Evaluator) EvaluateRule(ruleIndex int) (bool, error) {
	if r, ok := ev.cache[ruleIndex]; ok {
		if r.evaluating {
			return false, &RuleCycleRuntimeError{RuleIndex: ruleIndex}
		}
		return r.value, nil
	}
	ev.cache[ruleIndex] = ruleResult{evaluating: true}

	rule := ev.prog.Rules[ruleIndex]
	for _, gate := range rule.GlobalGates {
		ok, err := ev.EvaluateRule(gate)
		if err != nil {
			return false, err
		}
		if !ok {
			ev.cache[ruleIndex] = ruleResult{done: true, value: false}
			return false, nil
		}
	}

	fr := &frame{ev: ev}
	result, err := fr.run(rule.Condition)
	if err != nil {
		delete(ev.cache, ruleIndex)
		return false, err
	}
	ev.cache[ruleIndex] = ruleResult{done: true, value: result}
	return result, nil
}

// quantFrame tracks one "of"/"for" quantifier's progress. total is 0
// when the total is only known once a paired loopFrame exists (a `for`
// quantifier, emitted with B=0); in that case OpQuantTest reads the
// total off the live loop frame before OpLoopPop discards it.
type quantFrame struct {
	kind    int
	total   int
	target  int64
	matched int
}

func (q *quantFrame) satisfied(total int) bool {
	switch q.kind {
	case compiler.QuantAll:
		return q.matched >= total
	case compiler.QuantAny:
		return q.matched >= 1
	case compiler.QuantNone:
		return q.matched == 0
	case compiler.QuantPercent:
		if total == 0 {
			return true
		}
		pct := float64(q.matched) * 100 / float64(total)
		return pct >= float64(q.target)
	default: // QuantCount
		return int64(q.matched) >= q.target
	}
}

// loopFrame tracks one `for` expression's induction variable.
type loopFrame struct {
	kind    int
	varName string
	idx     int
	total   int
	lo, hi  int64
	items   []Value
	groups  []int
	matches *matcher.Matches
	cur     Value
}

type frame struct {
	ev     *Evaluator
	stack  []Value
	quants []quantFrame
	loops  []loopFrame
}

func (f *frame) push(v Value) { f.stack = append(f.stack, v) }

func (f *frame) pop() (Value, error) {
	n := len(f.stack)
	if n == 0 {
		return Value{}, &StackUnderflowError{}
	}
	v := f.stack[n-1]
	f.stack = f.stack[:n-1]
	return v, nil
}

func (f *frame) popInt() (int64, error) {
	v, err := f.pop()
	if err != nil {
		return 0, err
	}
	return v.AsInt(), nil
}

func (f *frame) lookupVar(name string) Value {
	for i := len(f.loops) - 1; i >= 0; i-- {
		if f.loops[i].varName == name {
			return f.loops[i].cur
		}
	}
	return Undefined()
}

// run executes code to completion, returning the boolean result of the
// rule's OpReturn.
func (f *frame) run(code []compiler.Instruction) (bool, error) {
	pc := 0
	for pc < len(code) {
		instr := code[pc]
		switch instr.Op {
		case compiler.OpNop:
			// no-op

		case compiler.OpPushInt:
			f.push(IntVal(f.ev.prog.IntPool[instr.A]))
		case compiler.OpPushFloat:
			f.push(FloatVal(f.ev.prog.FloatPool[instr.A]))
		case compiler.OpPushStr:
			f.push(StrVal(f.ev.prog.StrPool[instr.A]))
		case compiler.OpPushBool:
			f.push(BoolVal(instr.A != 0))
		case compiler.OpPushFilesize:
			f.push(IntVal(f.ev.env.Filesize()))
		case compiler.OpPushEntrypoint:
			f.push(IntVal(f.ev.env.Entrypoint()))

		case compiler.OpLoadIdent:
			path := f.ev.prog.IdentPool[instr.A]
			v, err := f.loadIdent(path)
			if err != nil {
				return false, err
			}
			f.push(v)
		case compiler.OpLoadVar:
			f.push(f.lookupVar(f.ev.prog.IdentPool[instr.A]))

		case compiler.OpStringMatches:
			f.push(BoolVal(f.ev.matches.Any(instr.A)))
		case compiler.OpStringCount:
			f.push(IntVal(int64(f.ev.matches.Count(instr.A))))
		case compiler.OpStringCountIn:
			hi, err := f.popInt()
			if err != nil {
				return false, err
			}
			lo, err := f.popInt()
			if err != nil {
				return false, err
			}
			f.push(IntVal(int64(f.ev.matches.CountIn(instr.A, lo, hi))))
		case compiler.OpStringOffset:
			idx, err := f.popInt()
			if err != nil {
				return false, err
			}
			if off, ok := f.ev.matches.Offset(instr.A, idx); ok {
				f.push(IntVal(off))
			} else {
				f.push(IntVal(0))
			}
		case compiler.OpStringLength:
			idx, err := f.popInt()
			if err != nil {
				return false, err
			}
			if ln, ok := f.ev.matches.Length(instr.A, idx); ok {
				f.push(IntVal(ln))
			} else {
				f.push(IntVal(0))
			}
		case compiler.OpStringAt:
			pos, err := f.popInt()
			if err != nil {
				return false, err
			}
			f.push(BoolVal(f.ev.matches.At(instr.A, pos)))
		case compiler.OpStringIn:
			hi, err := f.popInt()
			if err != nil {
				return false, err
			}
			lo, err := f.popInt()
			if err != nil {
				return false, err
			}
			f.push(BoolVal(f.ev.matches.In(instr.A, lo, hi)))

		case compiler.OpAdd, compiler.OpSub, compiler.OpMul, compiler.OpDiv, compiler.OpMod:
			if err := f.binArith(instr.Op); err != nil {
				return false, err
			}
		case compiler.OpNeg:
			a, err := f.pop()
			if err != nil {
				return false, err
			}
			if a.Kind == KindFloat {
				f.push(FloatVal(-a.AsFloat()))
			} else {
				f.push(IntVal(-a.AsInt()))
			}

		case compiler.OpBitAnd, compiler.OpBitOr, compiler.OpBitXor, compiler.OpShl, compiler.OpShr:
			if err := f.binBitwise(instr.Op); err != nil {
				return false, err
			}
		case compiler.OpBitNot:
			a, err := f.pop()
			if err != nil {
				return false, err
			}
			f.push(IntVal(^a.AsInt()))

		case compiler.OpEq, compiler.OpNeq, compiler.OpLt, compiler.OpLe, compiler.OpGt, compiler.OpGe,
			compiler.OpContains, compiler.OpIContains, compiler.OpStartsWith, compiler.OpIStartsWith,
			compiler.OpEndsWith, compiler.OpIEndsWith, compiler.OpMatches, compiler.OpIEquals:
			if err := f.compare(instr.Op); err != nil {
				return false, err
			}

		case compiler.OpAnd:
			b, err := f.pop()
			if err != nil {
				return false, err
			}
			a, err := f.pop()
			if err != nil {
				return false, err
			}
			f.push(BoolVal(a.AsBool() && b.AsBool()))
		case compiler.OpOr:
			b, err := f.pop()
			if err != nil {
				return false, err
			}
			a, err := f.pop()
			if err != nil {
				return false, err
			}
			f.push(BoolVal(a.AsBool() || b.AsBool()))
		case compiler.OpNot:
			a, err := f.pop()
			if err != nil {
				return false, err
			}
			f.push(BoolVal(!a.AsBool()))

		case compiler.OpIndex:
			idx, err := f.pop()
			if err != nil {
				return false, err
			}
			base, err := f.pop()
			if err != nil {
				return false, err
			}
			v, err := f.indexValue(base, idx)
			if err != nil {
				return false, err
			}
			f.push(v)
		case compiler.OpField:
			base, err := f.pop()
			if err != nil {
				return false, err
			}
			name := f.ev.prog.StrPool[instr.A]
			v, err := f.fieldValue(base, name)
			if err != nil {
				return false, err
			}
			f.push(v)
		case compiler.OpCall:
			args := make([]Value, instr.B)
			for i := instr.B - 1; i >= 0; i-- {
				v, err := f.pop()
				if err != nil {
					return false, err
				}
				args[i] = v
			}
			name := f.ev.prog.CallPool[instr.A]
			v, err := f.callFunction(name, args)
			if err != nil {
				return false, err
			}
			f.push(v)
		case compiler.OpCallRule:
			ok, err := f.ev.EvaluateRule(instr.A)
			if err != nil {
				return false, err
			}
			f.push(BoolVal(ok))

		case compiler.OpQuantInit:
			qf := quantFrame{kind: instr.A, total: instr.B}
			if qf.kind == compiler.QuantCount || qf.kind == compiler.QuantPercent {
				t, err := f.popInt()
				if err != nil {
					return false, err
				}
				qf.target = t
			}
			f.quants = append(f.quants, qf)
		case compiler.OpQuantTick:
			v, err := f.pop()
			if err != nil {
				return false, err
			}
			if len(f.quants) == 0 {
				return false, &StackUnderflowError{}
			}
			if v.AsBool() {
				f.quants[len(f.quants)-1].matched++
			}
		case compiler.OpQuantTest:
			if len(f.quants) == 0 {
				return false, &StackUnderflowError{}
			}
			qf := &f.quants[len(f.quants)-1]
			total := qf.total
			if total == 0 && len(f.loops) > 0 {
				total = f.loops[len(f.loops)-1].total
			}
			f.push(BoolVal(qf.satisfied(total)))
		case compiler.OpQuantPop:
			if len(f.quants) == 0 {
				return false, &StackUnderflowError{}
			}
			f.quants = f.quants[:len(f.quants)-1]

		case compiler.OpLoopInit:
			lf := loopFrame{kind: instr.A, matches: f.ev.matches}
			switch lf.kind {
			case compiler.IterRange:
				hi, err := f.popInt()
				if err != nil {
					return false, err
				}
				lo, err := f.popInt()
				if err != nil {
					return false, err
				}
				lf.lo, lf.hi = lo, hi
				if hi >= lo {
					lf.total = int(hi-lo) + 1
				}
			case compiler.IterExprList:
				items := make([]Value, instr.B)
				for i := instr.B - 1; i >= 0; i-- {
					v, err := f.pop()
					if err != nil {
						return false, err
					}
					items[i] = v
				}
				lf.items = items
				lf.total = len(items)
			case compiler.IterStringSet:
				lf.groups = f.ev.prog.GroupSetPool[instr.B]
				lf.total = len(lf.groups)
			}
			f.loops = append(f.loops, lf)
		case compiler.OpLoopNext:
			if len(f.loops) == 0 {
				return false, &StackUnderflowError{}
			}
			lf := &f.loops[len(f.loops)-1]
			lf.varName = f.ev.prog.IdentPool[instr.A]
			if lf.idx >= lf.total {
				f.push(BoolVal(false))
				break
			}
			switch lf.kind {
			case compiler.IterRange:
				lf.cur = IntVal(lf.lo + int64(lf.idx))
			case compiler.IterExprList:
				lf.cur = lf.items[lf.idx]
			case compiler.IterStringSet:
				lf.cur = BoolVal(lf.matches.Any(lf.groups[lf.idx]))
			}
			lf.idx++
			f.push(BoolVal(true))
		case compiler.OpLoopPop:
			if len(f.loops) == 0 {
				return false, &StackUnderflowError{}
			}
			f.loops = f.loops[:len(f.loops)-1]

		case compiler.OpJump:
			pc = instr.A
			continue
		case compiler.OpJumpIfFalse:
			v, err := f.pop()
			if err != nil {
				return false, err
			}
			if !v.AsBool() {
				pc = instr.A
				continue
			}
		case compiler.OpJumpIfTrue:
			v, err := f.pop()
			if err != nil {
				return false, err
			}
			if v.AsBool() {
				pc = instr.A
				continue
			}

		case compiler.OpReturn:
			v, err := f.pop()
			if err != nil {
				return false, err
			}
			return v.AsBool(), nil

		default:
			return false, &InvalidOpcodeError{Op: instr.Op}
		}
		pc++
	}
	return false, nil
}

func (f *frame) binArith(op compiler.Opcode) error {
	b, err := f.pop()
	if err != nil {
		return err
	}
	a, err := f.pop()
	if err != nil {
		return err
	}
	if a.Kind == KindFloat || b.Kind == KindFloat {
		af, bf := a.AsFloat(), b.AsFloat()
		var r float64
		switch op {
		case compiler.OpAdd:
			r = af + bf
		case compiler.OpSub:
			r = af - bf
		case compiler.OpMul:
			r = af * bf
		case compiler.OpDiv:
			if bf == 0 {
				return &DivisionByZeroError{}
			}
			r = af / bf
		case compiler.OpMod:
			if bf == 0 {
				return &DivisionByZeroError{}
			}
			r = math.Mod(af, bf)
		}
		f.push(FloatVal(r))
		return nil
	}
	ai, bi := a.AsInt(), b.AsInt()
	var r int64
	switch op {
	case compiler.OpAdd:
		r = ai + bi
	case compiler.OpSub:
		r = ai - bi
	case compiler.OpMul:
		r = ai * bi
	case compiler.OpDiv:
		if bi == 0 {
			return &DivisionByZeroError{}
		}
		r = ai / bi
	case compiler.OpMod:
		if bi == 0 {
			return &DivisionByZeroError{}
		}
		r = ai % bi
	}
	f.push(IntVal(r))
	return nil
}

func (f *frame) binBitwise(op compiler.Opcode) error {
	b, err := f.pop()
	if err != nil {
		return err
	}
	a, err := f.pop()
	if err != nil {
		return err
	}
	ai, bi := a.AsInt(), b.AsInt()
	var r int64
	switch op {
	case compiler.OpBitAnd:
		r = ai & bi
	case compiler.OpBitOr:
		r = ai | bi
	case compiler.OpBitXor:
		r = ai ^ bi
	case compiler.OpShl:
		r = ai << uint(bi&63)
	case compiler.OpShr:
		r = ai >> uint(bi&63)
	}
	f.push(IntVal(r))
	return nil
}

func (f *frame) compare(op compiler.Opcode) error {
	b, err := f.pop()
	if err != nil {
		return err
	}
	a, err := f.pop()
	if err != nil {
		return err
	}
	switch op {
	case compiler.OpEq:
		f.push(BoolVal(valuesEqual(a, b)))
		return nil
	case compiler.OpNeq:
		f.push(BoolVal(!valuesEqual(a, b)))
		return nil
	case compiler.OpLt, compiler.OpLe, compiler.OpGt, compiler.OpGe:
		if a.Kind == KindString && b.Kind == KindString {
			cmp := strings.Compare(a.Str, b.Str)
			f.push(BoolVal(orderSatisfies(op, cmp)))
			return nil
		}
		af, bf := a.AsFloat(), b.AsFloat()
		var cmp int
		switch {
		case af < bf:
			cmp = -1
		case af > bf:
			cmp = 1
		}
		f.push(BoolVal(orderSatisfies(op, cmp)))
		return nil
	case compiler.OpContains:
		f.push(BoolVal(strings.Contains(a.Str, b.Str)))
	case compiler.OpIContains:
		f.push(BoolVal(strings.Contains(strings.ToLower(a.Str), strings.ToLower(b.Str))))
	case compiler.OpStartsWith:
		f.push(BoolVal(strings.HasPrefix(a.Str, b.Str)))
	case compiler.OpIStartsWith:
		f.push(BoolVal(strings.HasPrefix(strings.ToLower(a.Str), strings.ToLower(b.Str))))
	case compiler.OpEndsWith:
		f.push(BoolVal(strings.HasSuffix(a.Str, b.Str)))
	case compiler.OpIEndsWith:
		f.push(BoolVal(strings.HasSuffix(strings.ToLower(a.Str), strings.ToLower(b.Str))))
	case compiler.OpIEquals:
		f.push(BoolVal(strings.EqualFold(a.Str, b.Str)))
	case compiler.OpMatches:
		re, err := regexp.Compile(b.Str)
		if err != nil {
			f.push(BoolVal(false))
			return nil
		}
		f.push(BoolVal(re.MatchString(a.Str)))
	}
	return nil
}

func orderSatisfies(op compiler.Opcode, cmp int) bool {
	switch op {
	case compiler.OpLt:
		return cmp < 0
	case compiler.OpLe:
		return cmp <= 0
	case compiler.OpGt:
		return cmp > 0
	default: // OpGe
		return cmp >= 0
	}
}

func (f *frame) indexValue(base, idx Value) (Value, error) {
	if base.Kind != KindObject {
		return Undefined(), nil
	}
	ix, ok := base.Obj.(Indexable)
	if !ok {
		return Value{}, &NotIndexableError{}
	}
	return ix.Index(idx.AsInt())
}

func (f *frame) fieldValue(base Value, name string) (Value, error) {
	if base.Kind != KindObject {
		return Undefined(), nil
	}
	fl, ok := base.Obj.(Fielder)
	if !ok {
		return Value{}, &UnknownFieldError{Field: name}
	}
	return fl.Field(name)
}

func (f *frame) loadIdent(path string) (Value, error) {
	return f.ev.env.ResolveIdent(path)
}

func (f *frame) callFunction(name string, args []Value) (Value, error) {
	if v, ok, err := callBuiltinReader(f.ev.env.Buffer(), name, args); ok {
		return v, err
	}
	return f.ev.env.CallFunction(name, args)
}

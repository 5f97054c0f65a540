package compiler

import (
	"strings"

	"github.com/yaraeng/yarago/ast"
)

// Quantifier kinds, the A operand of OpQuantInit/OpLoopInit's paired
// quantifier frame.
const (
	QuantAll = iota
	QuantAny
	QuantNone
	QuantCount
	QuantPercent
)

// Iterable kinds, the A operand of OpLoopInit.
const (
	IterRange = iota
	IterExprList
	IterStringSet
)

type emitter struct {
	c     *compiler
	rc    *ruleContext
	code  []Instruction
	calls []int
}

func (e *emitter) emit(op Opcode, a, b int) int {
	e.code = append(e.code, Instruction{Op: op, A: a, B: b})
	return len(e.code) - 1
}

func (e *emitter) here() int { return len(e.code) }

func (e *emitter) patchTo(pos int) { e.code[pos].A = e.here() }

func (e *emitter) emitExpr(expr ast.Expr) error {
	switch v := expr.(type) {
	case ast.BoolLit:
		b := 0
		if v.Value {
			b = 1
		}
		e.emit(OpPushBool, b, 0)
	case ast.IntLit:
		e.emit(OpPushInt, e.c.intConst(v.Value), 0)
	case ast.FloatLit:
		e.emit(OpPushFloat, e.c.floatConst(v.Value), 0)
	case ast.StringLit:
		e.emit(OpPushStr, e.c.strConst(v.Value), 0)
	case ast.Filesize:
		e.emit(OpPushFilesize, 0, 0)
	case ast.Entrypoint:
		e.emit(OpPushEntrypoint, 0, 0)
	case ast.Identifier:
		return e.emitIdentifier(v)
	case ast.StringRef:
		gi, err := e.groupIndex(v.Name)
		if err != nil {
			return err
		}
		e.emit(OpStringMatches, gi, 0)
	case ast.StringCount:
		gi, err := e.groupIndex(v.Name)
		if err != nil {
			return err
		}
		if v.Range == nil {
			e.emit(OpStringCount, gi, 0)
			return nil
		}
		if err := e.emitExpr(v.Range.Lo); err != nil {
			return err
		}
		if err := e.emitExpr(v.Range.Hi); err != nil {
			return err
		}
		e.emit(OpStringCountIn, gi, 0)
	case ast.StringOffset:
		gi, err := e.groupIndex(v.Name)
		if err != nil {
			return err
		}
		if v.Index != nil {
			if err := e.emitExpr(v.Index); err != nil {
				return err
			}
		} else {
			e.emit(OpPushInt, e.c.intConst(0), 0)
		}
		e.emit(OpStringOffset, gi, 0)
	case ast.StringLength:
		gi, err := e.groupIndex(v.Name)
		if err != nil {
			return err
		}
		if v.Index != nil {
			if err := e.emitExpr(v.Index); err != nil {
				return err
			}
		} else {
			e.emit(OpPushInt, e.c.intConst(0), 0)
		}
		e.emit(OpStringLength, gi, 0)
	case ast.UnaryExpr:
		if err := e.emitExpr(v.Operand); err != nil {
			return err
		}
		switch v.Op {
		case "not":
			e.emit(OpNot, 0, 0)
		case "-":
			e.emit(OpNeg, 0, 0)
		case "~":
			e.emit(OpBitNot, 0, 0)
		default:
			return &UnsupportedFeatureError{Rule: e.rc.rule.Name, Feature: "unary operator " + v.Op}
		}
	case ast.BinaryExpr:
		if err := e.emitExpr(v.Left); err != nil {
			return err
		}
		if err := e.emitExpr(v.Right); err != nil {
			return err
		}
		op, ok := binOps[v.Op]
		if !ok {
			return &UnsupportedFeatureError{Rule: e.rc.rule.Name, Feature: "operator " + v.Op}
		}
		e.emit(op, 0, 0)
	case ast.ParenExpr:
		return e.emitExpr(v.Inner)
	case ast.AtExpr:
		gi, err := e.groupIndex(v.Name)
		if err != nil {
			return err
		}
		if err := e.emitExpr(v.Pos); err != nil {
			return err
		}
		e.emit(OpStringAt, gi, 0)
	case ast.InExpr:
		gi, err := e.groupIndex(v.Name)
		if err != nil {
			return err
		}
		if err := e.emitExpr(v.Range.Lo); err != nil {
			return err
		}
		if err := e.emitExpr(v.Range.Hi); err != nil {
			return err
		}
		e.emit(OpStringIn, gi, 0)
	case ast.IndexExpr:
		if err := e.emitExpr(v.Base); err != nil {
			return err
		}
		if err := e.emitExpr(v.Index); err != nil {
			return err
		}
		e.emit(OpIndex, 0, 0)
	case ast.FieldAccess:
		if err := e.emitExpr(v.Base); err != nil {
			return err
		}
		e.emit(OpField, e.c.strConst(v.Field), 0)
	case ast.FuncCall:
		name, ok := calleeName(v.Callee)
		if !ok {
			return &UnsupportedFeatureError{Rule: e.rc.rule.Name, Feature: "indirect function call"}
		}
		for _, arg := range v.Args {
			if err := e.emitExpr(arg); err != nil {
				return err
			}
		}
		e.emit(OpCall, e.c.callConst(name), len(v.Args))
	case ast.OfExpr:
		return e.emitOfExpr(v)
	case ast.ForExpr:
		return e.emitForExpr(v)
	default:
		return &UnsupportedFeatureError{Rule: e.rc.rule.Name, Feature: "unrecognized expression"}
	}
	return nil
}

var binOps = map[string]Opcode{
	"and": OpAnd, "or": OpOr,
	"==": OpEq, "!=": OpNeq, "<": OpLt, "<=": OpLe, ">": OpGt, ">=": OpGe,
	"contains": OpContains, "icontains": OpIContains,
	"startswith": OpStartsWith, "istartswith": OpIStartsWith,
	"endswith": OpEndsWith, "iendswith": OpIEndsWith,
	"matches": OpMatches, "iequals": OpIEquals,
	"+": OpAdd, "-": OpSub, "*": OpMul, "\\": OpDiv, "/": OpDiv, "%": OpMod,
	"&": OpBitAnd, "|": OpBitOr, "^": OpBitXor, "<<": OpShl, ">>": OpShr,
}

func calleeName(expr ast.Expr) (string, bool) {
	id, ok := expr.(ast.Identifier)
	if !ok {
		return "", false
	}
	return strings.Join(id.Path, "."), true
}

func (e *emitter) groupIndex(name string) (int, error) {
	gi, ok := e.rc.stringGroup[name]
	if !ok {
		return 0, &UndefinedStringError{Rule: e.rc.rule.Name, Name: name}
	}
	return gi, nil
}

func (e *emitter) emitIdentifier(id ast.Identifier) error {
	if len(id.Path) == 1 {
		name := id.Path[0]
		for i := len(e.rc.loopVars) - 1; i >= 0; i-- {
			if e.rc.loopVars[i] == name {
				e.emit(OpLoadVar, e.c.identConst(name), 0)
				return nil
			}
		}
		if ri, ok := e.c.ruleIndex[name]; ok && ri != e.rc.ruleIndex {
			e.emit(OpCallRule, ri, 0)
			e.calls = append(e.calls, ri)
			return nil
		}
	}
	e.emit(OpLoadIdent, e.c.identConst(strings.Join(id.Path, ".")), 0)
	return nil
}

func quantKind(q ast.Quantifier) int {
	switch {
	case q.All:
		return QuantAll
	case q.Any:
		return QuantAny
	case q.None:
		return QuantNone
	case q.Percent:
		return QuantPercent
	default:
		return QuantCount
	}
}

func (e *emitter) resolveStringSet(set ast.StringSet) ([]int, error) {
	if set.Them {
		out := make([]int, 0, len(e.rc.stringOrder))
		for _, name := range e.rc.stringOrder {
			out = append(out, e.rc.stringGroup[name])
		}
		return out, nil
	}
	if set.Prefix != "" {
		var out []int
		for _, name := range e.rc.stringOrder {
			if strings.HasPrefix(name, set.Prefix) {
				out = append(out, e.rc.stringGroup[name])
			}
		}
		return out, nil
	}
	out := make([]int, 0, len(set.Names))
	for _, name := range set.Names {
		gi, err := e.groupIndex(name)
		if err != nil {
			return nil, err
		}
		out = append(out, gi)
	}
	return out, nil
}

func (e *emitter) emitOfExpr(v ast.OfExpr) error {
	groups, err := e.resolveStringSet(v.Set)
	if err != nil {
		return err
	}
	kind := quantKind(v.Quantifier)
	if kind == QuantCount || kind == QuantPercent {
		if err := e.emitExpr(v.Quantifier.Count); err != nil {
			return err
		}
	}
	e.emit(OpQuantInit, kind, len(groups))
	for _, gi := range groups {
		e.emit(OpStringMatches, gi, 0)
		e.emit(OpQuantTick, 0, 0)
	}
	e.emit(OpQuantTest, 0, 0)
	e.emit(OpQuantPop, 0, 0)
	return nil
}

// emitForExpr compiles a `for <quantifier> <var> in <iterable> : (
// <body> )` expression. The contract between compiler and vm:
//
//	[push target if kind is count/percent]
//	OpQuantInit kind 0          ; total is unknown yet for dynamic iterables
//	[push Lo, Hi]               ; range iterables only
//	[push item1..itemN]         ; expr-list iterables only
//	OpLoopInit iterKind N       ; N = pushed item count (expr list) or
//	                            ; GroupSetPool index (string set) or 0 (range)
//	loopStart:
//	OpLoopNext identConst(var)  ; binds var, pushes hasMore
//	OpJumpIfFalse loopEnd
//	<body>                      ; may OpLoadVar identConst(var)
//	OpQuantTick
//	OpJump loopStart
//	loopEnd:
//	OpQuantTest
//	OpLoopPop
//	OpQuantPop
func (e *emitter) emitForExpr(v ast.ForExpr) error {
	if len(v.Vars) != 1 {
		return &UnsupportedFeatureError{Rule: e.rc.rule.Name, Feature: "for-loop with multiple induction variables"}
	}
	varName := v.Vars[0]
	kind := quantKind(v.Quantifier)
	if kind == QuantCount || kind == QuantPercent {
		if err := e.emitExpr(v.Quantifier.Count); err != nil {
			return err
		}
	}
	e.emit(OpQuantInit, kind, 0)

	switch it := v.Iterable.(type) {
	case ast.RangeIterable:
		if err := e.emitExpr(it.Range.Lo); err != nil {
			return err
		}
		if err := e.emitExpr(it.Range.Hi); err != nil {
			return err
		}
		e.emit(OpLoopInit, IterRange, 0)
	case ast.ExprListIterable:
		for _, item := range it.Items {
			if err := e.emitExpr(item); err != nil {
				return err
			}
		}
		e.emit(OpLoopInit, IterExprList, len(it.Items))
	case ast.SetIterable:
		groups, err := e.resolveStringSet(it.Set)
		if err != nil {
			return err
		}
		e.emit(OpLoopInit, IterStringSet, e.c.groupSetConst(groups))
	default:
		return &UnsupportedFeatureError{Rule: e.rc.rule.Name, Feature: "for-loop iterable"}
	}

	loopStart := e.here()
	e.emit(OpLoopNext, e.c.identConst(varName), 0)
	jmpEnd := e.emit(OpJumpIfFalse, 0, 0)

	e.rc.loopVars = append(e.rc.loopVars, varName)
	err := e.emitExpr(v.Body)
	e.rc.loopVars = e.rc.loopVars[:len(e.rc.loopVars)-1]
	if err != nil {
		return err
	}

	e.emit(OpQuantTick, 0, 0)
	e.emit(OpJump, loopStart, 0)
	e.patchTo(jmpEnd)
	// OpQuantTest must run before OpLoopPop: for a dynamic-total
	// iterable (a runtime range/expr-list) the quantifier frame only
	// knows its total via the still-live loop frame.
	e.emit(OpQuantTest, 0, 0)
	e.emit(OpLoopPop, 0, 0)
	e.emit(OpQuantPop, 0, 0)
	return nil
}

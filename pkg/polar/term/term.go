package term

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind tags which variant of the term tree a Term value holds.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindBoolean
	KindList
	KindDict
	KindPattern
	KindCall
	KindVariable
	KindRestVariable
	KindExternalInstance
	KindExpression
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindBoolean:
		return "Boolean"
	case KindList:
		return "List"
	case KindDict:
		return "Dictionary"
	case KindPattern:
		return "Pattern"
	case KindCall:
		return "Call"
	case KindVariable:
		return "Variable"
	case KindRestVariable:
		return "RestVariable"
	case KindExternalInstance:
		return "ExternalInstance"
	case KindExpression:
		return "Expression"
	default:
		return "Unknown"
	}
}

// Term is an immutable node in the value tree. All concrete variants below
// implement it; callers type-switch on Kind() rather than on the Go type,
// since more than one Go type is never needed per Kind.
type Term interface {
	Kind() Kind
	Span() Span
	String() string
	// Equal is strict structural equality, not unification. Source spans
	// never participate.
	Equal(other Term) bool
}

// Symbol is the name of a Variable or RestVariable. Two variables are the
// same variable iff their Symbol strings are equal.
type Symbol string

// ---- Number ----

// Number is either an Integer or a Float; never both. Integers are bounded
// 64-bit. NaN compares unequal to itself under Equal-as-comparison but the
// VM's unify treats NaN as equal to itself by bit pattern (see vm package);
// Number.Equal here implements the *unification* convention because that is
// the convention deep_deref/dedup rely on throughout the engine.
type Number struct {
	span    Span
	isFloat bool
	i       int64
	f       float64
}

func NewInt(i int64) *Number         { return &Number{i: i} }
func NewIntAt(i int64, s Span) *Number { return &Number{i: i, span: s} }
func NewFloat(f float64) *Number      { return &Number{isFloat: true, f: f} }
func NewFloatAt(f float64, s Span) *Number {
	return &Number{isFloat: true, f: f, span: s}
}

func (n *Number) Kind() Kind { return KindNumber }
func (n *Number) Span() Span { return n.span }
func (n *Number) IsFloat() bool { return n.isFloat }
func (n *Number) Int() (int64, bool) {
	if n.isFloat {
		return 0, false
	}
	return n.i, true
}
func (n *Number) Float() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

func (n *Number) String() string {
	if n.isFloat {
		if math.IsNaN(n.f) {
			return "nan"
		}
		if math.IsInf(n.f, 1) {
			return "inf"
		}
		if math.IsInf(n.f, -1) {
			return "-inf"
		}
		return strconv.FormatFloat(n.f, 'g', -1, 64)
	}
	return strconv.FormatInt(n.i, 10)
}

func (n *Number) Equal(other Term) bool {
	o, ok := other.(*Number)
	if !ok {
		return false
	}
	if n.isFloat != o.isFloat {
		// Cross-type numeric equality (1 == 1.0) is a comparison-level
		// concern, not structural equality; Equal stays tag-strict.
		return false
	}
	if n.isFloat {
		// Bit-pattern equality: NaN unifies with NaN (see design notes),
		// deliberately different from IEEE == semantics used by `==`.
		return math.Float64bits(n.f) == math.Float64bits(o.f)
	}
	return n.i == o.i
}

// ---- String ----

type String struct {
	span Span
	Text string
}

func NewString(s string) *String           { return &String{Text: s} }
func NewStringAt(s string, sp Span) *String { return &String{Text: s, span: sp} }

func (s *String) Kind() Kind       { return KindString }
func (s *String) Span() Span       { return s.span }
func (s *String) String() string   { return strconv.Quote(s.Text) }
func (s *String) Equal(o Term) bool {
	other, ok := o.(*String)
	return ok && other.Text == s.Text
}

// ---- Boolean ----

type Boolean struct {
	span Span
	Val  bool
}

func NewBool(b bool) *Boolean           { return &Boolean{Val: b} }
func NewBoolAt(b bool, sp Span) *Boolean { return &Boolean{Val: b, span: sp} }

func (b *Boolean) Kind() Kind     { return KindBoolean }
func (b *Boolean) Span() Span     { return b.span }
func (b *Boolean) String() string { return strconv.FormatBool(b.Val) }
func (b *Boolean) Equal(o Term) bool {
	other, ok := o.(*Boolean)
	return ok && other.Val == b.Val
}

// ---- List ----

// List is an ordered sequence that may end with a RestVariable absorbing
// the tail during unification. Rest, if non-nil, must be the logical last
// element; it is never also present in Items.
type List struct {
	span  Span
	Items []Term
	Rest  *RestVariable // nil unless the list literal ended in *rest
}

func NewList(items []Term) *List { return &List{Items: items} }
func NewListAt(items []Term, rest *RestVariable, sp Span) *List {
	return &List{Items: items, Rest: rest, span: sp}
}

func (l *List) Kind() Kind { return KindList }
func (l *List) Span() Span { return l.span }

func (l *List) String() string {
	parts := make([]string, 0, len(l.Items)+1)
	for _, it := range l.Items {
		parts = append(parts, it.String())
	}
	if l.Rest != nil {
		parts = append(parts, "*"+l.Rest.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (l *List) Equal(o Term) bool {
	other, ok := o.(*List)
	if !ok || len(l.Items) != len(other.Items) {
		return false
	}
	for i := range l.Items {
		if !l.Items[i].Equal(other.Items[i]) {
			return false
		}
	}
	if (l.Rest == nil) != (other.Rest == nil) {
		return false
	}
	if l.Rest != nil {
		return l.Rest.Equal(other.Rest)
	}
	return true
}

// ---- Dictionary ----

// Dict maps symbol keys to terms. Field order is never significant for
// equality; the parser is responsible for rejecting duplicate keys at
// construction time (see perr.DuplicateKey), so Dict itself assumes
// its Fields map already has unique keys.
type Dict struct {
	span   Span
	Fields map[string]Term
}

func NewDict(fields map[string]Term) *Dict { return &Dict{Fields: fields} }
func NewDictAt(fields map[string]Term, sp Span) *Dict {
	return &Dict{Fields: fields, span: sp}
}

func (d *Dict) Kind() Kind { return KindDict }
func (d *Dict) Span() Span { return d.span }

func (d *Dict) Keys() []string {
	keys := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *Dict) String() string {
	keys := d.Keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, d.Fields[k].String()))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (d *Dict) Equal(o Term) bool {
	other, ok := o.(*Dict)
	if !ok || len(d.Fields) != len(other.Fields) {
		return false
	}
	for k, v := range d.Fields {
		ov, present := other.Fields[k]
		if !present || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// ---- Pattern ----

// Pattern only appears in specializer position or after `matches`. Tag is
// "" for a bare dictionary pattern, or the instance class name for
// `Name{...}`.
type Pattern struct {
	span   Span
	Tag    string // "" means dictionary pattern
	Fields *Dict
}

func NewPattern(tag string, fields *Dict) *Pattern { return &Pattern{Tag: tag, Fields: fields} }
func NewPatternAt(tag string, fields *Dict, sp Span) *Pattern {
	return &Pattern{Tag: tag, Fields: fields, span: sp}
}

func (p *Pattern) Kind() Kind { return KindPattern }
func (p *Pattern) Span() Span { return p.span }
func (p *Pattern) IsInstance() bool { return p.Tag != "" }

func (p *Pattern) String() string {
	if p.Tag == "" {
		return p.Fields.String()
	}
	return p.Tag + p.Fields.String()
}

func (p *Pattern) Equal(o Term) bool {
	other, ok := o.(*Pattern)
	return ok && other.Tag == p.Tag && p.Fields.Equal(other.Fields)
}

// ---- Call ----

// Call is an unresolved rule invocation or method call: name(args, kw: ...).
type Call struct {
	span    Span
	Name    string
	Args    []Term
	Kwargs  map[string]Term // nil if none were supplied
}

func NewCall(name string, args []Term, kwargs map[string]Term) *Call {
	return &Call{Name: name, Args: args, Kwargs: kwargs}
}
func NewCallAt(name string, args []Term, kwargs map[string]Term, sp Span) *Call {
	return &Call{Name: name, Args: args, Kwargs: kwargs, span: sp}
}

func (c *Call) Kind() Kind { return KindCall }
func (c *Call) Span() Span { return c.span }

func (c *Call) String() string {
	parts := make([]string, 0, len(c.Args)+len(c.Kwargs))
	for _, a := range c.Args {
		parts = append(parts, a.String())
	}
	if len(c.Kwargs) > 0 {
		keys := make([]string, 0, len(c.Kwargs))
		for k := range c.Kwargs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, c.Kwargs[k].String()))
		}
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(parts, ", "))
}

func (c *Call) Equal(o Term) bool {
	other, ok := o.(*Call)
	if !ok || c.Name != other.Name || len(c.Args) != len(other.Args) {
		return false
	}
	for i := range c.Args {
		if !c.Args[i].Equal(other.Args[i]) {
			return false
		}
	}
	if len(c.Kwargs) != len(other.Kwargs) {
		return false
	}
	for k, v := range c.Kwargs {
		ov, present := other.Kwargs[k]
		if !present || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// ---- Variable / RestVariable ----

// Variable must never be conflated with RestVariable: the parser only
// constructs a RestVariable as the last element of a list literal.
type Variable struct {
	span Span
	Name Symbol
}

func NewVariable(name Symbol) *Variable           { return &Variable{Name: name} }
func NewVariableAt(name Symbol, sp Span) *Variable { return &Variable{Name: name, span: sp} }

func (v *Variable) Kind() Kind     { return KindVariable }
func (v *Variable) Span() Span     { return v.span }
func (v *Variable) String() string { return string(v.Name) }
func (v *Variable) Equal(o Term) bool {
	other, ok := o.(*Variable)
	return ok && other.Name == v.Name
}

type RestVariable struct {
	span Span
	Name Symbol
}

func NewRestVariable(name Symbol) *RestVariable { return &RestVariable{Name: name} }
func NewRestVariableAt(name Symbol, sp Span) *RestVariable {
	return &RestVariable{Name: name, span: sp}
}

func (v *RestVariable) Kind() Kind     { return KindRestVariable }
func (v *RestVariable) Span() Span     { return v.span }
func (v *RestVariable) String() string { return string(v.Name) }
func (v *RestVariable) Equal(o Term) bool {
	other, ok := o.(*RestVariable)
	return ok && other.Name == v.Name
}

// AsVariable lets code that treats Variable and RestVariable uniformly
// (binding, deref) recover the shared Symbol without a type switch at
// every call site.
func AsVariable(t Term) (Symbol, bool) {
	switch v := t.(type) {
	case *Variable:
		return v.Name, true
	case *RestVariable:
		return v.Name, true
	default:
		return "", false
	}
}

// ---- ExternalInstance ----

// ExternalInstance is an opaque reference to a host object. The engine can
// compare InstanceID and delegate to events but never introspects Repr.
type ExternalInstance struct {
	span        Span
	InstanceID  int64
	Constructor Term   // optional: the `new Foo(...)` call that produced it
	Repr        string // optional: host-supplied debug string
	ClassRepr   string // optional: host-supplied class name for display
	ClassID     int64  // 0 means "unknown/unregistered"
}

func NewExternalInstance(id int64) *ExternalInstance {
	return &ExternalInstance{InstanceID: id}
}

func (e *ExternalInstance) Kind() Kind { return KindExternalInstance }
func (e *ExternalInstance) Span() Span { return e.span }

func (e *ExternalInstance) String() string {
	if e.Repr != "" {
		return e.Repr
	}
	return fmt.Sprintf("^{id: %d}", e.InstanceID)
}

func (e *ExternalInstance) Equal(o Term) bool {
	other, ok := o.(*ExternalInstance)
	return ok && other.InstanceID == e.InstanceID
}

// ---- Expression ----

// Operator tags an Expression. Names follow the wire grammar in spec §6.
type Operator int

const (
	OpAnd Operator = iota
	OpOr
	OpNot
	OpUnify
	OpEq
	OpNeq
	OpLt
	OpLeq
	OpGt
	OpGeq
	OpIsa
	OpIn
	OpDot
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpRem
	OpNew
	OpCut
	OpForall
	OpPrint
	OpDebug
	OpAssign
)

var operatorNames = map[Operator]string{
	OpAnd: "and", OpOr: "or", OpNot: "not", OpUnify: "=", OpEq: "==",
	OpNeq: "!=", OpLt: "<", OpLeq: "<=", OpGt: ">", OpGeq: ">=",
	OpIsa: "matches", OpIn: "in", OpDot: ".", OpAdd: "+", OpSub: "-",
	OpMul: "*", OpDiv: "/", OpMod: "mod", OpRem: "rem", OpNew: "new",
	OpCut: "cut", OpForall: "forall", OpPrint: "print", OpDebug: "debug",
	OpAssign: ":=",
}

func (o Operator) String() string {
	if s, ok := operatorNames[o]; ok {
		return s
	}
	return "?op"
}

// Commutative reports whether swapping Args produces a syntactically
// equivalent Expression, used by the partial-eval de-duplication pass.
func (o Operator) Commutative() bool {
	switch o {
	case OpUnify, OpEq, OpNeq, OpAnd, OpOr:
		return true
	default:
		return false
	}
}

// Expression is an unresolved or residual operation.
type Expression struct {
	span Span
	Op   Operator
	Args []Term
}

func NewExpression(op Operator, args ...Term) *Expression {
	return &Expression{Op: op, Args: args}
}
func NewExpressionAt(op Operator, sp Span, args ...Term) *Expression {
	return &Expression{Op: op, Args: args, span: sp}
}

func (e *Expression) Kind() Kind { return KindExpression }
func (e *Expression) Span() Span { return e.span }

func (e *Expression) String() string {
	parts := make([]string, 0, len(e.Args))
	for _, a := range e.Args {
		parts = append(parts, a.String())
	}
	return fmt.Sprintf("%s(%s)", e.Op, strings.Join(parts, ", "))
}

func (e *Expression) Equal(o Term) bool {
	other, ok := o.(*Expression)
	if !ok || e.Op != other.Op || len(e.Args) != len(other.Args) {
		return false
	}
	direct := true
	for i := range e.Args {
		if !e.Args[i].Equal(other.Args[i]) {
			direct = false
			break
		}
	}
	if direct {
		return true
	}
	if e.Op.Commutative() && len(e.Args) == 2 {
		return e.Args[0].Equal(other.Args[1]) && e.Args[1].Equal(other.Args[0])
	}
	return false
}

// And builds a left-to-right conjunction, flattening a nil/empty slice to
// the always-true empty conjunction (`and()`).
func And(conjuncts ...Term) *Expression {
	return NewExpression(OpAnd, conjuncts...)
}

// IsEmptyConjunction reports whether e is `and()`, the canonical
// "no constraint" residual produced by get_constraints on an unbound,
// unconstrained variable.
func IsEmptyConjunction(t Term) bool {
	e, ok := t.(*Expression)
	return ok && e.Op == OpAnd && len(e.Args) == 0
}

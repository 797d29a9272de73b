package latexmath

// Node is a math AST node.
type Node interface {
	node()
}

// Seq is a juxtaposition of terms (implicit multiplication, operators in between).
type Seq struct{ Items []Node }

type Number struct{ Value string }

// Ident is a variable: a Latin letter or a Greek letter command name.
type Ident struct {
	Name  string
	Greek bool
}

// Symbol is an operator or named constant that is neither a relation nor a function.
type Symbol struct{ Name string }

type Frac struct{ Num, Den Node }

// Sqrt is a square root, or an n-th root when Index is set.
type Sqrt struct{ Index, Radicand Node }

// Script attaches a subscript and/or superscript to a base.
type Script struct{ Base, Sub, Sup Node }

type Prime struct {
	Base  Node
	Count int
}

// BigOp is a bounded operator (sum, product, integral, limit family). Body extends to the
// end of the enclosing term sequence.
type BigOp struct {
	Op           string
	Lower, Upper Node
	Body         Node
}

// Func is a named function such as \sin with an optional argument.
type Func struct {
	Name     string
	Sub, Sup Node
	Arg      Node
}

// Apply is a letter applied to a parenthesised argument list, e.g. f(x).
type Apply struct {
	Fn   Node
	Args Node
}

// Group is a delimited subexpression.
type Group struct {
	Open, Close string
	Inner       Node
}

type Relation struct {
	Op          string
	Left, Right Node
}

type Accent struct {
	Kind string
	Base Node
}

type Text struct{ Value string }

func (Seq) node()      {}
func (Number) node()   {}
func (Ident) node()    {}
func (Symbol) node()   {}
func (Frac) node()     {}
func (Sqrt) node()     {}
func (Script) node()   {}
func (Prime) node()    {}
func (BigOp) node()    {}
func (Func) node()     {}
func (Apply) node()    {}
func (Group) node()    {}
func (Relation) node() {}
func (Accent) node()   {}
func (Text) node()     {}

// Commands the parser treats specially. Exported so the narrator can share the
// vocabulary for its token fallback.
var (
	GreekLetters = setOf("alpha", "beta", "gamma", "delta", "epsilon", "varepsilon", "zeta",
		"eta", "theta", "vartheta", "iota", "kappa", "lambda", "mu", "nu", "xi", "pi", "varpi",
		"rho", "varrho", "sigma", "varsigma", "tau", "upsilon", "phi", "varphi", "chi", "psi",
		"omega", "Gamma", "Delta", "Theta", "Lambda", "Xi", "Pi", "Sigma", "Upsilon", "Phi",
		"Psi", "Omega")

	BigOperators = setOf("sum", "prod", "coprod", "int", "iint", "iiint", "oint", "lim",
		"limsup", "liminf", "max", "min", "sup", "inf", "bigcup", "bigcap")

	Functions = setOf("sin", "cos", "tan", "sec", "csc", "cot", "arcsin", "arccos", "arctan",
		"sinh", "cosh", "tanh", "log", "ln", "lg", "exp", "det", "dim", "ker", "deg", "gcd",
		"arg", "Pr")

	RelationCommands = setOf("le", "leq", "ge", "geq", "ne", "neq", "approx", "equiv", "sim",
		"simeq", "cong", "to", "rightarrow", "leftarrow", "mapsto", "in", "notin", "ni",
		"subset", "subseteq", "supset", "supseteq", "Rightarrow", "Leftarrow", "implies",
		"iff", "Leftrightarrow", "propto", "perp", "parallel", "mid")

	Accents = setOf("vec", "bar", "hat", "dot", "ddot", "tilde", "overline", "widehat",
		"widetilde", "overrightarrow")

	fontCommands = setOf("mathbf", "mathit", "mathrm", "mathsf", "mathtt", "mathcal",
		"mathbb", "mathfrak", "boldsymbol", "bm", "displaystyle", "textstyle")

	textCommands = setOf("text", "textrm", "textit", "textbf", "mbox", "operatorname")

	spacingCommands = setOf(",", ";", ":", "!", " ", "quad", "qquad", "limits", "nolimits",
		"left.", "big", "Big", "bigg", "Bigg", "bigl", "bigr", "Bigl", "Bigr")
)

var asciiRelations = setOf("=", "<", ">")

func setOf(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

package mathspeech

import "strings"

// Phrasebook holds the fixed vocabulary and phrase templates for one narration language.
// Templates are fmt verbs with explicit argument indexes, so the slot order of every
// construct is fixed by the template rather than by the visual layout.
type Phrasebook struct {
	Language string

	Greek     map[string]string
	Symbols   map[string]string
	Relations map[string]string
	Functions map[string]string
	Operators map[string]string // big operator words
	Accents   map[string]string // %[1]s = base

	Frac       string // %[1]s numerator, %[2]s denominator
	Sqrt       string // %[1]s radicand
	Root       string // %[1]s radicand, %[2]s index
	Power      string // %[1]s base, %[2]s exponent
	Subscript  string // %[1]s base, %[2]s subscript
	Prime      string // %[1]s base
	Apply      string // %[1]s function, %[2]s arguments
	FuncPower  string // %[1]s name, %[2]s exponent
	Group      string // %[1]s inner
	Abs        string // %[1]s inner
	Relation   string // %[1]s left, %[2]s operator word, %[3]s right
	Approaches string // %[1]s left, %[2]s right

	// Bounded operators. %[1]s lower, %[2]s upper, %[3]s body, %[4]s operator word.
	BoundsBoth  string
	BoundsLower string
	BoundsNone  string
	// Limit family. %[1]s lower, %[3]s body, %[4]s operator word.
	LimitLower string

	Sup     string // fallback word for ^
	Sub     string // fallback word for _
	Formula string // narration of an expression with no speakable tokens
}

// For returns the phrasebook for a BCP 47 language code. Japanese is the default.
func For(lang string) *Phrasebook {
	if strings.HasPrefix(strings.ToLower(lang), "en") {
		return English
	}
	return Japanese
}

var Japanese = &Phrasebook{
	Language: "ja",
	Greek: map[string]string{
		"alpha": "アルファ", "beta": "ベータ", "gamma": "ガンマ", "delta": "デルタ",
		"epsilon": "イプシロン", "varepsilon": "イプシロン", "zeta": "ゼータ", "eta": "イータ",
		"theta": "シータ", "vartheta": "シータ", "iota": "イオタ", "kappa": "カッパ",
		"lambda": "ラムダ", "mu": "ミュー", "nu": "ニュー", "xi": "クサイ", "pi": "パイ",
		"varpi": "パイ", "rho": "ロー", "varrho": "ロー", "sigma": "シグマ", "varsigma": "シグマ",
		"tau": "タウ", "upsilon": "ウプシロン", "phi": "ファイ", "varphi": "ファイ", "chi": "カイ",
		"psi": "プサイ", "omega": "オメガ",
		"Gamma": "大文字のガンマ", "Delta": "大文字のデルタ", "Theta": "大文字のシータ",
		"Lambda": "大文字のラムダ", "Xi": "大文字のクサイ", "Pi": "大文字のパイ",
		"Sigma": "大文字のシグマ", "Upsilon": "大文字のウプシロン", "Phi": "大文字のファイ",
		"Psi": "大文字のプサイ", "Omega": "大文字のオメガ",
	},
	Symbols: map[string]string{
		"+": "プラス", "-": "マイナス", "*": "かける", "/": "わる", "!": "の階乗",
		",": "、", ".": "点", "|": "絶対値", ":": "コロン", ";": "、",
		"times": "かける", "cdot": "かける", "div": "わる", "pm": "プラスマイナス",
		"mp": "マイナスプラス", "infty": "無限大", "partial": "パーシャル", "nabla": "ナブラ",
		"cdots": "てんてんてん", "ldots": "てんてんてん", "dots": "てんてんてん", "vdots": "てんてんてん",
		"forall": "任意の", "exists": "ある", "neg": "否定", "lnot": "否定", "land": "かつ",
		"wedge": "かつ", "lor": "または", "vee": "または", "cap": "キャップ", "cup": "カップ",
		"emptyset": "空集合", "varnothing": "空集合", "angle": "角", "circ": "丸", "prime": "ダッシュ",
		"binom": "二項係数", "setminus": "差集合", "oplus": "直和", "otimes": "テンソル積",
		"hbar": "エイチバー", "ell": "エル", "Re": "実部", "Im": "虚部", "{": "", "}": "",
		"langle": "", "rangle": "",
	},
	Relations: map[string]string{
		"=": "イコール", "<": "小なり", ">": "大なり", "le": "小なりイコール", "leq": "小なりイコール",
		"ge": "大なりイコール", "geq": "大なりイコール", "ne": "ノットイコール", "neq": "ノットイコール",
		"approx": "ニアリーイコール", "equiv": "合同", "sim": "相似", "simeq": "ほぼ等しい",
		"cong": "合同", "rightarrow": "矢印", "leftarrow": "左矢印", "mapsto": "写す",
		"in": "の要素", "notin": "の要素でない", "ni": "要素として含む", "subset": "部分集合",
		"subseteq": "部分集合", "supset": "上位集合", "supseteq": "上位集合", "Rightarrow": "ならば",
		"implies": "ならば", "Leftarrow": "逆ならば", "iff": "同値", "Leftrightarrow": "同値",
		"propto": "比例", "perp": "垂直", "parallel": "平行", "mid": "割り切る",
	},
	Functions: map[string]string{
		"sin": "サイン", "cos": "コサイン", "tan": "タンジェント", "sec": "セカント",
		"csc": "コセカント", "cot": "コタンジェント", "arcsin": "アークサイン",
		"arccos": "アークコサイン", "arctan": "アークタンジェント", "sinh": "ハイパボリックサイン",
		"cosh": "ハイパボリックコサイン", "tanh": "ハイパボリックタンジェント", "log": "ログ",
		"ln": "自然対数", "lg": "ログ", "exp": "指数関数", "det": "行列式", "dim": "次元",
		"ker": "核", "deg": "次数", "gcd": "最大公約数", "arg": "偏角", "Pr": "確率",
	},
	Operators: map[string]string{
		"sum": "総和", "prod": "総乗", "coprod": "余積", "int": "積分", "iint": "二重積分",
		"iiint": "三重積分", "oint": "周回積分", "lim": "極限", "limsup": "上極限",
		"liminf": "下極限", "max": "最大値", "min": "最小値", "sup": "上限", "inf": "下限",
		"bigcup": "和集合", "bigcap": "共通部分",
	},
	Accents: map[string]string{
		"vec": "ベクトル %[1]s", "overrightarrow": "ベクトル %[1]s", "bar": "%[1]s バー",
		"overline": "%[1]s バー", "hat": "%[1]s ハット", "widehat": "%[1]s ハット",
		"dot": "%[1]s ドット", "ddot": "%[1]s ツードット", "tilde": "%[1]s チルダ",
		"widetilde": "%[1]s チルダ",
	},
	Frac:        "%[2]s分の%[1]s",
	Sqrt:        "ルート %[1]s",
	Root:        "%[2]s 乗根 %[1]s",
	Power:       "%[1]s の %[2]s 乗",
	Subscript:   "%[1]s サブ %[2]s",
	Prime:       "%[1]s ダッシュ",
	Apply:       "%[1]s %[2]s",
	FuncPower:   "%[1]s の %[2]s 乗",
	Group:       "カッコ %[1]s カッコとじ",
	Abs:         "%[1]s の絶対値",
	Relation:    "%[1]s %[2]s %[3]s",
	Approaches:  "%[1]s が %[2]s に近づく",
	BoundsBoth:  "%[1]s から %[2]s までの %[3]s の%[4]s",
	BoundsLower: "%[1]s についての %[3]s の%[4]s",
	BoundsNone:  "%[3]s の%[4]s",
	LimitLower:  "%[1]s とき %[3]s の%[4]s",
	Sup:         "乗",
	Sub:         "サブ",
	Formula:     "数式",
}

var English = &Phrasebook{
	Language: "en",
	Greek: map[string]string{
		"alpha": "alpha", "beta": "beta", "gamma": "gamma", "delta": "delta",
		"epsilon": "epsilon", "varepsilon": "epsilon", "zeta": "zeta", "eta": "eta",
		"theta": "theta", "vartheta": "theta", "iota": "iota", "kappa": "kappa",
		"lambda": "lambda", "mu": "mu", "nu": "nu", "xi": "xi", "pi": "pi", "varpi": "pi",
		"rho": "rho", "varrho": "rho", "sigma": "sigma", "varsigma": "sigma", "tau": "tau",
		"upsilon": "upsilon", "phi": "phi", "varphi": "phi", "chi": "chi", "psi": "psi",
		"omega": "omega",
		"Gamma": "capital gamma", "Delta": "capital delta", "Theta": "capital theta",
		"Lambda": "capital lambda", "Xi": "capital xi", "Pi": "capital pi",
		"Sigma": "capital sigma", "Upsilon": "capital upsilon", "Phi": "capital phi",
		"Psi": "capital psi", "Omega": "capital omega",
	},
	Symbols: map[string]string{
		"+": "plus", "-": "minus", "*": "times", "/": "divided by", "!": "factorial",
		",": ",", ".": "point", "|": "absolute value", ":": "colon", ";": ";",
		"times": "times", "cdot": "times", "div": "divided by", "pm": "plus or minus",
		"mp": "minus or plus", "infty": "infinity", "partial": "partial", "nabla": "nabla",
		"cdots": "dot dot dot", "ldots": "dot dot dot", "dots": "dot dot dot", "vdots": "dot dot dot",
		"forall": "for all", "exists": "there exists", "neg": "not", "lnot": "not", "land": "and",
		"wedge": "and", "lor": "or", "vee": "or", "cap": "intersect", "cup": "union",
		"emptyset": "the empty set", "varnothing": "the empty set", "angle": "angle",
		"circ": "composed with", "prime": "prime", "binom": "binomial coefficient",
		"setminus": "minus", "oplus": "direct sum", "otimes": "tensor", "hbar": "h bar",
		"ell": "ell", "Re": "real part", "Im": "imaginary part", "{": "", "}": "",
		"langle": "", "rangle": "",
	},
	Relations: map[string]string{
		"=": "equals", "<": "is less than", ">": "is greater than", "le": "is less than or equal to",
		"leq": "is less than or equal to", "ge": "is greater than or equal to",
		"geq": "is greater than or equal to", "ne": "is not equal to", "neq": "is not equal to",
		"approx": "is approximately", "equiv": "is equivalent to", "sim": "is similar to",
		"simeq": "is asymptotically equal to", "cong": "is congruent to", "rightarrow": "maps to",
		"leftarrow": "is mapped from", "mapsto": "maps to", "in": "is in", "notin": "is not in",
		"ni": "contains", "subset": "is a subset of", "subseteq": "is a subset of",
		"supset": "is a superset of", "supseteq": "is a superset of", "Rightarrow": "implies",
		"implies": "implies", "Leftarrow": "is implied by", "iff": "if and only if",
		"Leftrightarrow": "if and only if", "propto": "is proportional to",
		"perp": "is perpendicular to", "parallel": "is parallel to", "mid": "divides",
	},
	Functions: map[string]string{
		"sin": "sine", "cos": "cosine", "tan": "tangent", "sec": "secant", "csc": "cosecant",
		"cot": "cotangent", "arcsin": "arc sine", "arccos": "arc cosine", "arctan": "arc tangent",
		"sinh": "hyperbolic sine", "cosh": "hyperbolic cosine", "tanh": "hyperbolic tangent",
		"log": "log", "ln": "natural log", "lg": "log", "exp": "exponential", "det": "determinant",
		"dim": "dimension", "ker": "kernel", "deg": "degree", "gcd": "gcd", "arg": "argument",
		"Pr": "probability",
	},
	Operators: map[string]string{
		"sum": "sum", "prod": "product", "coprod": "coproduct", "int": "integral",
		"iint": "double integral", "iiint": "triple integral", "oint": "contour integral",
		"lim": "limit", "limsup": "limit superior", "liminf": "limit inferior", "max": "maximum",
		"min": "minimum", "sup": "supremum", "inf": "infimum", "bigcup": "union",
		"bigcap": "intersection",
	},
	Accents: map[string]string{
		"vec": "vector %[1]s", "overrightarrow": "vector %[1]s", "bar": "%[1]s bar",
		"overline": "%[1]s bar", "hat": "%[1]s hat", "widehat": "%[1]s hat", "dot": "%[1]s dot",
		"ddot": "%[1]s double dot", "tilde": "%[1]s tilde", "widetilde": "%[1]s tilde",
	},
	Frac:        "%[1]s over %[2]s",
	Sqrt:        "the square root of %[1]s",
	Root:        "the %[2]s-th root of %[1]s",
	Power:       "%[1]s to the power %[2]s",
	Subscript:   "%[1]s sub %[2]s",
	Prime:       "%[1]s prime",
	Apply:       "%[1]s of %[2]s",
	FuncPower:   "%[1]s to the power %[2]s of",
	Group:       "open paren %[1]s close paren",
	Abs:         "the absolute value of %[1]s",
	Relation:    "%[1]s %[2]s %[3]s",
	Approaches:  "%[1]s approaches %[2]s",
	BoundsBoth:  "the %[4]s from %[1]s to %[2]s of %[3]s",
	BoundsLower: "the %[4]s over %[1]s of %[3]s",
	BoundsNone:  "the %[4]s of %[3]s",
	LimitLower:  "the %[4]s as %[1]s of %[3]s",
	Sup:         "to the power",
	Sub:         "sub",
	Formula:     "formula",
}

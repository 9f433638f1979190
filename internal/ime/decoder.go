package ime

import (
	"fmt"

	"vnime/internal/keys"
)

// Scheme selects how keys are interpreted.
type Scheme int

const (
	Telex Scheme = iota
	VNI
)

func (s Scheme) String() string {
	switch s {
	case Telex:
		return "telex"
	case VNI:
		return "vni"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// ParseScheme accepts "telex"/"vni" or the numeric method ids 0/1.
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "telex", "Telex", "TELEX", "0":
		return Telex, nil
	case "vni", "VNI", "Vni", "1":
		return VNI, nil
	}
	return Telex, fmt.Errorf("unknown input method %q", s)
}

// Tone is one of the five Vietnamese tone marks, or none.
type Tone uint8

const (
	ToneNone  Tone = iota
	ToneAcute      // sắc
	ToneGrave      // huyền
	ToneHook       // hỏi
	ToneTilde      // ngã
	ToneDot        // nặng
)

func (t Tone) combining() rune {
	switch t {
	case ToneAcute:
		return '\u0301'
	case ToneGrave:
		return '\u0300'
	case ToneHook:
		return '\u0309'
	case ToneTilde:
		return '\u0303'
	case ToneDot:
		return '\u0323'
	}
	return 0
}

// Mark is a vowel diacritic other than tone.
type Mark uint8

const (
	MarkNone Mark = iota
	MarkCircumflex
	MarkHorn
	MarkBreve
)

func (m Mark) combining() rune {
	switch m {
	case MarkCircumflex:
		return '\u0302'
	case MarkHorn:
		return '\u031b'
	case MarkBreve:
		return '\u0306'
	}
	return 0
}

// ModKind is the kind of modifier a key requests.
type ModKind uint8

const (
	// ModCircumflex puts ^ on a, e or o.
	ModCircumflex ModKind = iota
	// ModHorn puts a horn on o/u; on a (Telex w) it means breve.
	ModHorn
	ModBreve
	// ModStroke turns an initial d into đ.
	ModStroke
)

// markFor returns the mark a modifier leaves on the given base vowel.
func (k ModKind) markFor(base rune) Mark {
	switch k {
	case ModCircumflex:
		return MarkCircumflex
	case ModHorn:
		if base == 'a' {
			return MarkBreve
		}
		return MarkHorn
	case ModBreve:
		return MarkBreve
	}
	return MarkNone
}

// Modifier describes a diacritic request and the base letters it may target.
type Modifier struct {
	Kind  ModKind
	Bases string
}

// TokenKind tags the variant held by a Token.
type TokenKind uint8

const (
	TokenUnrecognized TokenKind = iota
	TokenLetter
	TokenTone
	TokenModifier
	TokenControl
)

// Control is a non-character editing key.
type Control uint8

const (
	ControlBackspace Control = iota
	ControlBoundary
)

// Token is the decoded meaning of one key under a scheme. Char is the
// lowercase character the key types, used whenever the key falls back to
// literal text.
type Token struct {
	Kind    TokenKind
	Char    rune
	Tone    Tone
	Mod     Modifier
	Control Control
}

var telexTones = map[keys.KeyCode]Tone{
	keys.S: ToneAcute,
	keys.F: ToneGrave,
	keys.R: ToneHook,
	keys.X: ToneTilde,
	keys.J: ToneDot,
	keys.Z: ToneNone,
}

var telexModifiers = map[keys.KeyCode]Modifier{
	keys.A: {ModCircumflex, "a"},
	keys.E: {ModCircumflex, "e"},
	keys.O: {ModCircumflex, "o"},
	keys.W: {ModHorn, "oua"},
	keys.D: {ModStroke, "d"},
}

var vniTones = map[keys.KeyCode]Tone{
	keys.N1: ToneAcute,
	keys.N2: ToneGrave,
	keys.N3: ToneHook,
	keys.N4: ToneTilde,
	keys.N5: ToneDot,
	keys.N0: ToneNone,
}

var vniModifiers = map[keys.KeyCode]Modifier{
	keys.N6: {ModCircumflex, "aeo"},
	keys.N7: {ModHorn, "ou"},
	keys.N8: {ModBreve, "a"},
	keys.N9: {ModStroke, "d"},
}

// Decode classifies a key under the given scheme. It is pure.
func Decode(code keys.KeyCode, scheme Scheme) Token {
	if code == keys.Delete {
		return Token{Kind: TokenControl, Control: ControlBackspace}
	}
	if keys.IsNavigation(code) {
		return Token{Kind: TokenControl, Control: ControlBoundary}
	}
	ch, printable := keys.Rune(code, false)
	if !printable {
		return Token{Kind: TokenUnrecognized}
	}

	tones, mods := telexTones, telexModifiers
	if scheme == VNI {
		tones, mods = vniTones, vniModifiers
	}
	if t, ok := tones[code]; ok {
		return Token{Kind: TokenTone, Char: ch, Tone: t}
	}
	if m, ok := mods[code]; ok {
		return Token{Kind: TokenModifier, Char: ch, Mod: m}
	}
	if keys.IsLetter(code) {
		return Token{Kind: TokenLetter, Char: ch}
	}
	// Space, punctuation and digits the scheme does not claim.
	return Token{Kind: TokenControl, Char: ch, Control: ControlBoundary}
}

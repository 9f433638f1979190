// Package keys defines the virtual key codes understood by the composition
// engine.
//
// Codes follow the macOS virtual key code layout (kVK_ANSI_*), which is also
// what the engine's hosts translate their native events into. Hosts that only
// see characters (IBus keysyms, terminals) map back with FromRune.
package keys

// KeyCode is a layout-independent virtual key code.
type KeyCode uint16

// Letters.
const (
	A KeyCode = 0x00
	S KeyCode = 0x01
	D KeyCode = 0x02
	F KeyCode = 0x03
	H KeyCode = 0x04
	G KeyCode = 0x05
	Z KeyCode = 0x06
	X KeyCode = 0x07
	C KeyCode = 0x08
	V KeyCode = 0x09
	B KeyCode = 0x0B
	Q KeyCode = 0x0C
	W KeyCode = 0x0D
	E KeyCode = 0x0E
	R KeyCode = 0x0F
	Y KeyCode = 0x10
	T KeyCode = 0x11
	O KeyCode = 0x1F
	U KeyCode = 0x20
	I KeyCode = 0x22
	P KeyCode = 0x23
	L KeyCode = 0x25
	J KeyCode = 0x26
	K KeyCode = 0x28
	N KeyCode = 0x2D
	M KeyCode = 0x2E
)

// Digits.
const (
	N1 KeyCode = 0x12
	N2 KeyCode = 0x13
	N3 KeyCode = 0x14
	N4 KeyCode = 0x15
	N6 KeyCode = 0x16
	N5 KeyCode = 0x17
	N9 KeyCode = 0x19
	N7 KeyCode = 0x1A
	N8 KeyCode = 0x1C
	N0 KeyCode = 0x1D
)

// Punctuation.
const (
	Equal        KeyCode = 0x18
	Minus        KeyCode = 0x1B
	RightBracket KeyCode = 0x1E
	LeftBracket  KeyCode = 0x21
	Quote        KeyCode = 0x27
	Semicolon    KeyCode = 0x29
	Backslash    KeyCode = 0x2A
	Comma        KeyCode = 0x2B
	Slash        KeyCode = 0x2C
	Period       KeyCode = 0x2F
	Grave        KeyCode = 0x32
)

// Control and navigation.
const (
	Return        KeyCode = 0x24
	Tab           KeyCode = 0x30
	Space         KeyCode = 0x31
	Delete        KeyCode = 0x33 // backspace
	Escape        KeyCode = 0x35
	Home          KeyCode = 0x73
	PageUp        KeyCode = 0x74
	ForwardDelete KeyCode = 0x75
	End           KeyCode = 0x77
	PageDown      KeyCode = 0x79
	Left          KeyCode = 0x7B
	Right         KeyCode = 0x7C
	Down          KeyCode = 0x7D
	Up            KeyCode = 0x7E
)

type printable struct {
	lower, upper rune
}

// Shifted values follow the US ANSI layout.
var printables = map[KeyCode]printable{
	A: {'a', 'A'}, B: {'b', 'B'}, C: {'c', 'C'}, D: {'d', 'D'},
	E: {'e', 'E'}, F: {'f', 'F'}, G: {'g', 'G'}, H: {'h', 'H'},
	I: {'i', 'I'}, J: {'j', 'J'}, K: {'k', 'K'}, L: {'l', 'L'},
	M: {'m', 'M'}, N: {'n', 'N'}, O: {'o', 'O'}, P: {'p', 'P'},
	Q: {'q', 'Q'}, R: {'r', 'R'}, S: {'s', 'S'}, T: {'t', 'T'},
	U: {'u', 'U'}, V: {'v', 'V'}, W: {'w', 'W'}, X: {'x', 'X'},
	Y: {'y', 'Y'}, Z: {'z', 'Z'},

	N1: {'1', '!'}, N2: {'2', '@'}, N3: {'3', '#'}, N4: {'4', '$'},
	N5: {'5', '%'}, N6: {'6', '^'}, N7: {'7', '&'}, N8: {'8', '*'},
	N9: {'9', '('}, N0: {'0', ')'},

	Equal: {'=', '+'}, Minus: {'-', '_'}, RightBracket: {']', '}'},
	LeftBracket: {'[', '{'}, Quote: {'\'', '"'}, Semicolon: {';', ':'},
	Backslash: {'\\', '|'}, Comma: {',', '<'}, Slash: {'/', '?'},
	Period: {'.', '>'}, Grave: {'`', '~'},

	Space: {' ', ' '},
}

type keyEntry struct {
	code  KeyCode
	upper bool
}

var fromRune = buildReverse()

func buildReverse() map[rune]keyEntry {
	m := make(map[rune]keyEntry, len(printables)*2+3)
	for code, p := range printables {
		m[p.lower] = keyEntry{code, false}
		if p.upper != p.lower {
			m[p.upper] = keyEntry{code, true}
		}
	}
	m['\r'] = keyEntry{Return, false}
	m['\n'] = keyEntry{Return, false}
	m['\t'] = keyEntry{Tab, false}
	return m
}

// Rune returns the character a key types, honoring shift. Non-printing keys
// return false.
func Rune(code KeyCode, upper bool) (rune, bool) {
	p, ok := printables[code]
	if !ok {
		return 0, false
	}
	if upper {
		return p.upper, true
	}
	return p.lower, true
}

// FromRune maps a character back to the key that types it on a US layout.
func FromRune(r rune) (code KeyCode, upper bool, ok bool) {
	e, ok := fromRune[r]
	if !ok {
		return 0, false, false
	}
	return e.code, e.upper, true
}

// IsLetter reports whether code is one of the 26 letter keys.
func IsLetter(code KeyCode) bool {
	r, ok := Rune(code, false)
	return ok && r >= 'a' && r <= 'z'
}

// IsDigit reports whether code is one of the top-row digit keys.
func IsDigit(code KeyCode) bool {
	r, ok := Rune(code, false)
	return ok && r >= '0' && r <= '9'
}

// IsNavigation reports whether code moves the caret or leaves the field.
func IsNavigation(code KeyCode) bool {
	switch code {
	case Return, Tab, Escape, Home, End, PageUp, PageDown,
		Left, Right, Up, Down, ForwardDelete:
		return true
	}
	return false
}

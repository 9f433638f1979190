package ime

import "strings"

// Nucleus flags.
const (
	// needsFinal nuclei cannot end a syllable (tiên, not tiê).
	needsFinal uint8 = 1 << iota
	// noFinal nuclei already end in a glide and take no final consonant.
	noFinal
)

// NucleusRule is one permitted vowel nucleus.
type NucleusRule struct {
	Pattern string // rendered without tone, e.g. "ươ"
	Bases   string // base letters, e.g. "uo"
	Marks   []Mark
	Target  int // slot that carries the tone
	flags   uint8
}

// NeedsFinal reports whether the nucleus must be followed by a final consonant.
func (r NucleusRule) NeedsFinal() bool { return r.flags&needsFinal != 0 }

// NoFinal reports whether the nucleus forbids a final consonant.
func (r NucleusRule) NoFinal() bool { return r.flags&noFinal != 0 }

type nucleusDef struct {
	pattern string
	target  int
	flags   uint8
}

var nucleusDefs = []nucleusDef{
	// Single vowels.
	{"a", 0, 0}, {"ă", 0, 0}, {"â", 0, 0},
	{"e", 0, 0}, {"ê", 0, 0},
	{"i", 0, 0}, {"y", 0, 0},
	{"o", 0, 0}, {"ô", 0, 0}, {"ơ", 0, 0},
	{"u", 0, 0}, {"ư", 0, 0},

	// Pairs with the tone on the first vowel.
	{"ai", 0, noFinal}, {"ao", 0, noFinal},
	{"au", 0, noFinal}, {"âu", 0, noFinal},
	{"ay", 0, noFinal}, {"ây", 0, noFinal},
	{"eo", 0, noFinal},
	{"eu", 0, noFinal}, {"êu", 0, noFinal},
	{"ia", 0, noFinal}, {"iu", 0, noFinal},
	{"oi", 0, noFinal}, {"ôi", 0, noFinal}, {"ơi", 0, noFinal},
	{"ua", 0, noFinal}, {"ưa", 0, noFinal},
	{"ui", 0, noFinal}, {"ưi", 0, noFinal}, {"ưu", 0, noFinal},

	// Pairs with the tone on the second vowel.
	{"iê", 1, needsFinal}, {"yê", 1, needsFinal},
	{"oa", 1, 0}, {"oă", 1, needsFinal}, {"oe", 1, 0},
	{"uâ", 1, needsFinal}, {"uê", 1, 0},
	{"uô", 1, needsFinal}, {"ươ", 1, needsFinal},
	{"uy", 1, 0},

	// Triples.
	{"oai", 1, noFinal}, {"oay", 1, noFinal}, {"oeo", 1, noFinal},
	{"uây", 1, noFinal}, {"uôi", 1, noFinal}, {"ươi", 1, noFinal},
	{"ươu", 1, noFinal}, {"uya", 1, noFinal}, {"uyu", 1, noFinal},
	{"iêu", 1, noFinal}, {"yêu", 1, noFinal},
	{"uyê", 2, needsFinal},
}

// decomposed maps a marked vowel to its base letter and mark.
var decomposed = map[rune]struct {
	base rune
	mark Mark
}{
	'ă': {'a', MarkBreve},
	'â': {'a', MarkCircumflex},
	'ê': {'e', MarkCircumflex},
	'ô': {'o', MarkCircumflex},
	'ơ': {'o', MarkHorn},
	'ư': {'u', MarkHorn},
}

var (
	nucleusByBases map[string][]NucleusRule
	nucleusPrefix  map[string]bool
)

func init() {
	nucleusByBases = make(map[string][]NucleusRule)
	nucleusPrefix = make(map[string]bool)
	for _, d := range nucleusDefs {
		r := NucleusRule{Pattern: d.pattern, Target: d.target, flags: d.flags}
		var bases strings.Builder
		for _, ch := range d.pattern {
			if dm, ok := decomposed[ch]; ok {
				bases.WriteRune(dm.base)
				r.Marks = append(r.Marks, dm.mark)
				continue
			}
			bases.WriteRune(ch)
			r.Marks = append(r.Marks, MarkNone)
		}
		r.Bases = bases.String()
		nucleusByBases[r.Bases] = append(nucleusByBases[r.Bases], r)
		for i := 1; i <= len(r.Bases); i++ {
			nucleusPrefix[r.Bases[:i]] = true
		}
	}
}

func basesOf(slots []VowelSlot) string {
	b := make([]byte, len(slots))
	for i, s := range slots {
		b[i] = byte(s.Base.Letter)
	}
	return string(b)
}

// IsNucleusPrefix reports whether bases begins some permitted nucleus.
func IsNucleusPrefix(bases string) bool {
	return nucleusPrefix[bases]
}

// LookupNucleus finds the rule for a nucleus. exact is false when the base
// letters are known but the marks match no permitted pattern; rule is then
// the first pattern for those bases.
func LookupNucleus(slots []VowelSlot) (rule NucleusRule, exact bool, ok bool) {
	rules := nucleusByBases[basesOf(slots)]
	if len(rules) == 0 {
		return NucleusRule{}, false, false
	}
	for _, r := range rules {
		if marksEqual(r.Marks, slots) {
			return r, true, true
		}
	}
	return rules[0], false, true
}

func marksEqual(marks []Mark, slots []VowelSlot) bool {
	for i, s := range slots {
		if marks[i] != s.Mark {
			return false
		}
	}
	return true
}

// ToneTarget returns the index of the slot that carries the tone.
func ToneTarget(slots []VowelSlot) int {
	if len(slots) == 0 {
		return -1
	}
	if r, _, ok := LookupNucleus(slots); ok {
		return r.Target
	}
	// Unknown nucleus: prefer the last marked vowel, else the first.
	for i := len(slots) - 1; i >= 0; i-- {
		if slots[i].Mark != MarkNone {
			return i
		}
	}
	return 0
}

var validInitials = map[string]bool{
	"": true, "b": true, "c": true, "ch": true, "d": true, "đ": true,
	"g": true, "gh": true, "gi": true, "h": true, "k": true, "kh": true,
	"l": true, "m": true, "n": true, "ng": true, "ngh": true, "nh": true,
	"p": true, "ph": true, "qu": true, "r": true, "s": true, "t": true,
	"th": true, "tr": true, "v": true, "x": true,
}

var validFinals = map[string]bool{
	"": true, "c": true, "ch": true, "m": true, "n": true, "ng": true,
	"nh": true, "p": true, "t": true,
}

// IsValidInitial reports whether s (lowercase) is a Vietnamese onset.
func IsValidInitial(s string) bool { return validInitials[s] }

// IsValidFinal reports whether s (lowercase) is a Vietnamese coda.
func IsValidFinal(s string) bool { return validFinals[s] }

// IsStopFinal reports whether a coda is a stop, which only admits the sắc
// and nặng tones.
func IsStopFinal(s string) bool {
	switch s {
	case "c", "ch", "p", "t":
		return true
	}
	return false
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}

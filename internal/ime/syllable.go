package ime

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CasedChar is a lowercase letter plus the case it was typed in.
type CasedChar struct {
	Letter rune
	Upper  bool
}

func (c CasedChar) rune() rune {
	if c.Upper {
		return unicode.ToUpper(c.Letter)
	}
	return c.Letter
}

// VowelSlot is one vowel of the nucleus.
type VowelSlot struct {
	Base CasedChar
	Mark Mark
}

// Syllable is the word being composed: onset, vowel nucleus, coda and one
// tone. Literal holds characters typed after the syllable was closed; they
// render verbatim and are never transformed.
type Syllable struct {
	Initial []CasedChar
	Nucleus []VowelSlot
	Final   []CasedChar
	Literal []CasedChar
	Tone    Tone
}

// IsEmpty reports whether nothing has been composed.
func (s *Syllable) IsEmpty() bool {
	return len(s.Initial) == 0 && len(s.Nucleus) == 0 &&
		len(s.Final) == 0 && len(s.Literal) == 0
}

// Closed reports whether further keys can only append literally.
func (s *Syllable) Closed() bool { return len(s.Literal) > 0 }

// Reset empties the syllable.
func (s *Syllable) Reset() { *s = Syllable{} }

// Clone returns a deep copy.
func (s *Syllable) Clone() Syllable {
	return Syllable{
		Initial: append([]CasedChar(nil), s.Initial...),
		Nucleus: append([]VowelSlot(nil), s.Nucleus...),
		Final:   append([]CasedChar(nil), s.Final...),
		Literal: append([]CasedChar(nil), s.Literal...),
		Tone:    s.Tone,
	}
}

// InsertConsonant adds c to the onset while no vowel has been typed, and to
// the coda afterwards.
func (s *Syllable) InsertConsonant(c CasedChar) {
	if len(s.Nucleus) == 0 {
		s.Initial = append(s.Initial, c)
		return
	}
	s.Final = append(s.Final, c)
}

// InsertVowel extends the nucleus with c. It returns false when c cannot
// continue the nucleus (a coda was already typed or the vowel sequence is
// not a permitted prefix); the caller then treats c as literal.
func (s *Syllable) InsertVowel(c CasedChar) bool {
	if len(s.Final) > 0 {
		return false
	}
	initial := lowerString(s.Initial)
	// q is always followed by u, which belongs to the onset.
	if initial == "q" && len(s.Nucleus) == 0 && c.Letter == 'u' {
		s.Initial = append(s.Initial, c)
		return true
	}
	// gi + vowel: the i was part of the onset.
	if initial == "g" && len(s.Nucleus) == 1 &&
		s.Nucleus[0].Base.Letter == 'i' && s.Nucleus[0].Mark == MarkNone {
		s.Initial = append(s.Initial, s.Nucleus[0].Base)
		s.Nucleus = s.Nucleus[:0]
	}
	if !IsNucleusPrefix(basesOf(s.Nucleus) + string(c.Letter)) {
		return false
	}
	s.Nucleus = append(s.Nucleus, VowelSlot{Base: c})
	return true
}

// SetMark replaces the mark of one nucleus slot.
func (s *Syllable) SetMark(slot int, m Mark) {
	s.Nucleus[slot].Mark = m
}

// SetTone replaces the syllable tone.
func (s *Syllable) SetTone(t Tone) { s.Tone = t }

// AppendLiteral closes the syllable (if it was open) and adds c verbatim.
func (s *Syllable) AppendLiteral(c CasedChar) {
	s.Literal = append(s.Literal, c)
}

// Render returns the precomposed text of the syllable. It is pure.
func (s *Syllable) Render() string {
	var b strings.Builder
	for _, c := range s.Initial {
		b.WriteRune(c.rune())
	}
	target := -1
	if s.Tone != ToneNone {
		target = ToneTarget(s.Nucleus)
	}
	for i, v := range s.Nucleus {
		tone := ToneNone
		if i == target {
			tone = s.Tone
		}
		b.WriteString(composeVowel(v, tone))
	}
	for _, c := range s.Final {
		b.WriteRune(c.rune())
	}
	for _, c := range s.Literal {
		b.WriteRune(c.rune())
	}
	return b.String()
}

func composeVowel(v VowelSlot, t Tone) string {
	buf := make([]rune, 0, 3)
	buf = append(buf, v.Base.rune())
	if m := v.Mark.combining(); m != 0 {
		buf = append(buf, m)
	}
	if c := t.combining(); c != 0 {
		buf = append(buf, c)
	}
	if len(buf) == 1 {
		return string(buf)
	}
	return norm.NFC.String(string(buf))
}

func lowerString(cs []CasedChar) string {
	var b strings.Builder
	for _, c := range cs {
		b.WriteRune(c.Letter)
	}
	return b.String()
}

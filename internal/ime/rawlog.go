package ime

import (
	"strings"

	"vnime/internal/keys"
)

// MaxRawEntries bounds the keys kept for one syllable. Past it the current
// composition is committed as displayed and a new one begins.
const MaxRawEntries = 32

// RawEntry is one consumed key as typed.
type RawEntry struct {
	Key     keys.KeyCode
	IsUpper bool
}

type effect uint8

const (
	effectLetter effect = iota
	effectLiteral
	effectTone
	effectToneClear
	effectMark
	effectStroke
	effectAbsorbed
)

// logEntry pairs a raw key with the syllable state that preceded it, which
// is the inverse backspace applies. A revert entry also remembers the entry
// it consumed so backspace can bring it back.
type logEntry struct {
	RawEntry
	char    rune
	effect  effect
	before  Syllable
	revived *logEntry
}

// rawLog is the stack of keys that produced the current syllable.
type rawLog struct {
	entries []logEntry
}

func (l *rawLog) push(e logEntry) { l.entries = append(l.entries, e) }

func (l *rawLog) pop() (logEntry, bool) {
	if len(l.entries) == 0 {
		return logEntry{}, false
	}
	e := l.entries[len(l.entries)-1]
	l.entries = l.entries[:len(l.entries)-1]
	return e, true
}

func (l *rawLog) last() (*logEntry, bool) {
	if len(l.entries) == 0 {
		return nil, false
	}
	return &l.entries[len(l.entries)-1], true
}

func (l *rawLog) len() int { return len(l.entries) }

func (l *rawLog) reset() { l.entries = l.entries[:0] }

// literal is the concatenation of the surviving keys as typed.
func (l *rawLog) literal() string {
	var b strings.Builder
	for _, e := range l.entries {
		b.WriteRune(CasedChar{Letter: e.char, Upper: e.IsUpper}.rune())
	}
	return b.String()
}

// Entries returns a copy of the raw keys in typed order.
func (l *rawLog) Entries() []RawEntry {
	out := make([]RawEntry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.RawEntry
	}
	return out
}

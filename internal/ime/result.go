package ime

import "vnime/internal/keys"

// MaxChars is the capacity of EditResult.Chars.
const MaxChars = 32

// Action tells the host what to do with a key.
type Action uint8

const (
	// ActionNone: deliver the key natively.
	ActionNone Action = iota
	// ActionSend: delete Backspace characters before the caret, insert
	// Chars[:Count], and deliver the key only if Forward is set.
	ActionSend
)

func (a Action) String() string {
	if a == ActionSend {
		return "send"
	}
	return "none"
}

// EditResult is the edit the host applies for one key.
type EditResult struct {
	Action    Action
	Backspace int
	Count     int
	Chars     [MaxChars]rune
	Forward   bool
}

// Text returns the characters to insert.
func (r EditResult) Text() string {
	return string(r.Chars[:r.Count])
}

func passThrough() EditResult { return EditResult{} }

// newSend builds a Send result. Text beyond MaxChars is dropped, which cannot
// happen while the raw log is bounded by MaxRawEntries.
func newSend(backspace int, text []rune, forward bool) EditResult {
	r := EditResult{Action: ActionSend, Backspace: backspace, Forward: forward}
	r.Count = copy(r.Chars[:], text)
	return r
}

// diff returns the number of trailing runes of prev to delete and the runes
// to insert to turn prev into next.
func diff(prev, next []rune) (int, []rune) {
	n := 0
	for n < len(prev) && n < len(next) && prev[n] == next[n] {
		n++
	}
	return len(prev) - n, next[n:]
}

// Apply performs r on text the way a host would, delivering the key itself
// when r asks for it.
func (r EditResult) Apply(text []rune, code keys.KeyCode, upper bool) []rune {
	out := append([]rune(nil), text...)
	if r.Action == ActionSend {
		del := min(r.Backspace, len(out))
		out = append(out[:len(out)-del], r.Chars[:r.Count]...)
		if !r.Forward {
			return out
		}
	}
	if code == keys.Delete {
		if len(out) > 0 {
			out = out[:len(out)-1]
		}
		return out
	}
	if ch, ok := keys.Rune(code, upper); ok {
		out = append(out, ch)
	} else if code == keys.Return {
		out = append(out, '\n')
	}
	return out
}

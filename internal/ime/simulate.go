package ime

import (
	"fmt"

	"vnime/internal/keys"
)

// BackspaceRune stands for the Delete key in Simulate input.
const BackspaceRune = '<'

// Simulate types input into e the way a host would, applying every edit
// to an in-memory document, and returns the document. trace, if set, sees
// each key's result.
func Simulate(e *Engine, input string, trace func(r rune, res EditResult)) (string, error) {
	var doc []rune
	for _, r := range input {
		code, upper := keys.Delete, false
		if r != BackspaceRune {
			var ok bool
			code, upper, ok = keys.FromRune(r)
			if !ok {
				return string(doc), fmt.Errorf("no key for %q", r)
			}
		}
		res := e.OnKey(code, upper, false)
		if trace != nil {
			trace(r, res)
		}
		if res.Backspace > len(doc) {
			return string(doc), fmt.Errorf("key %q deletes %d of %d characters", r, res.Backspace, len(doc))
		}
		doc = res.Apply(doc, code, upper)
	}
	return string(doc), nil
}

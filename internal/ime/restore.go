package ime

// IsWellFormed reports whether a syllable is a plausible Vietnamese syllable:
// a permitted nucleus with exactly matching marks, valid onset and coda, no
// literal run, and a tone that the coda allows.
func IsWellFormed(s *Syllable) bool {
	if len(s.Nucleus) == 0 || s.Closed() {
		return false
	}
	rule, exact, ok := LookupNucleus(s.Nucleus)
	if !ok || !exact {
		return false
	}
	if !IsValidInitial(lowerString(s.Initial)) {
		return false
	}
	final := lowerString(s.Final)
	if !IsValidFinal(final) {
		return false
	}
	switch {
	case final == "" && rule.NeedsFinal():
		return false
	case final != "" && rule.NoFinal():
		return false
	}
	if IsStopFinal(final) {
		switch s.Tone {
		case ToneNone, ToneAcute, ToneDot:
		default:
			return false
		}
	}
	return true
}

// Restore applies the auto-restore policy at a word boundary. It returns the
// text that should remain and whether restoring changed it: an ill-formed
// syllable whose literal keys equal its rendering (e.g. "ax") keeps its text
// and reports false.
func Restore(s *Syllable, literal string) (string, bool) {
	rendered := s.Render()
	if IsWellFormed(s) {
		return rendered, false
	}
	return literal, literal != rendered
}

package ime

import (
	"log/slog"

	"vnime/internal/keys"
)

// Method ids accepted by SetMethod.
const (
	MethodTelex = 0
	MethodVNI   = 1
)

// State is the coarse engine state.
type State uint8

const (
	StateEmpty State = iota
	StateComposing
)

func (s State) String() string {
	if s == StateComposing {
		return "composing"
	}
	return "empty"
}

// Commit describes a syllable that was finished by a word boundary.
type Commit struct {
	Text     string // what remains in the document
	Literal  string // the surviving keys as typed
	Restored bool   // the syllable was ill-formed and Text (the literal keys) differs from the rendering
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheme selects the initial input scheme.
func WithScheme(s Scheme) Option {
	return func(e *Engine) { e.scheme = s }
}

// WithAutoRestore toggles restoring literal keys for non-Vietnamese words.
func WithAutoRestore(on bool) Option {
	return func(e *Engine) { e.autoRestore = on }
}

// WithLogger sets the logger for composition decisions.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCommitObserver registers fn to be called at every word boundary that
// ends a non-empty composition.
func WithCommitObserver(fn func(Commit)) Option {
	return func(e *Engine) { e.onCommit = fn }
}

// Engine composes Vietnamese text from keystrokes.
//
// An Engine is not safe for concurrent use; hosts serialize calls to one
// instance (see Sessions for hosts with several input contexts).
type Engine struct {
	scheme      Scheme
	enabled     bool
	autoRestore bool

	syl  Syllable
	log  rawLog
	prev []rune

	logger   *slog.Logger
	onCommit func(Commit)
}

// NewEngine creates an enabled Telex engine with auto-restore on.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		scheme:      Telex,
		enabled:     true,
		autoRestore: true,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetMethod selects Telex (0) or VNI (1). Other values are ignored.
func (e *Engine) SetMethod(m int) {
	switch m {
	case MethodTelex:
		e.SetScheme(Telex)
	case MethodVNI:
		e.SetScheme(VNI)
	}
}

// SetScheme switches the input scheme, abandoning any composition.
func (e *Engine) SetScheme(s Scheme) {
	if s == e.scheme {
		return
	}
	e.scheme = s
	e.Reset()
}

// Scheme returns the active input scheme.
func (e *Engine) Scheme() Scheme { return e.scheme }

// SetEnabled turns composition on or off. A disabled engine passes every key
// through.
func (e *Engine) SetEnabled(on bool) {
	e.enabled = on
	e.Reset()
}

// Enabled reports whether composition is on.
func (e *Engine) Enabled() bool { return e.enabled }

// SetAutoRestore toggles the auto-restore policy.
func (e *Engine) SetAutoRestore(on bool) { e.autoRestore = on }

// AutoRestore reports whether auto-restore is on.
func (e *Engine) AutoRestore() bool { return e.autoRestore }

// Reset abandons the current composition without emitting anything. Hosts
// call it when the caret moves or focus changes.
func (e *Engine) Reset() {
	e.syl.Reset()
	e.log.reset()
	e.prev = e.prev[:0]
}

// Rendering returns the text of the composition currently on screen.
func (e *Engine) Rendering() string { return string(e.prev) }

// State reports whether a composition is in progress.
func (e *Engine) State() State {
	if e.syl.IsEmpty() && e.log.len() == 0 {
		return StateEmpty
	}
	return StateComposing
}

// RawEntries returns the keys that produced the current composition.
func (e *Engine) RawEntries() []RawEntry { return e.log.Entries() }

// Syllable returns a copy of the syllable being composed.
func (e *Engine) Syllable() Syllable { return e.syl.Clone() }

type outcome uint8

const (
	applied outcome = iota
	asBoundary
)

// OnKey processes one key press and returns the edit the host must apply.
// modifier is true when Control, Alt or Command is held.
func (e *Engine) OnKey(code keys.KeyCode, isUpper, modifier bool) EditResult {
	if !e.enabled {
		return passThrough()
	}
	if modifier {
		// Shortcuts may move the caret or change the text under it.
		e.Reset()
		return passThrough()
	}

	tok := Decode(code, e.scheme)
	if isUpper && keys.IsDigit(code) {
		tok = Token{Kind: TokenControl, Control: ControlBoundary}
	}

	switch tok.Kind {
	case TokenUnrecognized:
		return passThrough()
	case TokenControl:
		if tok.Control == ControlBackspace {
			return e.backspace()
		}
		return e.boundary()
	}

	if e.log.len() >= MaxRawEntries {
		e.commit(e.Rendering(), false)
		e.Reset()
	}

	c := CasedChar{Letter: tok.Char, Upper: isUpper}
	entry := logEntry{
		RawEntry: RawEntry{Key: code, IsUpper: isUpper},
		char:     tok.Char,
		before:   e.syl.Clone(),
	}

	var out outcome
	switch tok.Kind {
	case TokenLetter:
		out = e.insertLetter(&entry, c)
	case TokenTone:
		out = e.applyTone(&entry, tok.Tone, c)
	case TokenModifier:
		out = e.applyModifier(&entry, tok.Mod, c)
	}

	if out == asBoundary {
		return e.boundary()
	}

	native := append([]rune(nil), e.prev...)
	if ch, ok := keys.Rune(code, isUpper); ok {
		native = append(native, ch)
	}
	return e.emit(native)
}

// emit renders the syllable and returns the edit from the previous rendering,
// or a pass-through when the host's own handling of the key would produce
// the same text.
func (e *Engine) emit(native []rune) EditResult {
	next := []rune(e.syl.Render())
	prev := e.prev
	e.prev = next
	if equalRunes(native, next) {
		return passThrough()
	}
	del, ins := diff(prev, next)
	return newSend(del, ins, false)
}

func (e *Engine) insertLetter(entry *logEntry, c CasedChar) outcome {
	entry.effect = effectLetter
	switch {
	case e.syl.Closed():
		e.syl.AppendLiteral(c)
		entry.effect = effectLiteral
	case isVowel(c.Letter):
		if !e.syl.InsertVowel(c) {
			e.syl.AppendLiteral(c)
			entry.effect = effectLiteral
		}
	default:
		e.syl.InsertConsonant(c)
	}
	e.log.push(*entry)
	return applied
}

// fallback types the key as an ordinary letter. Keys that are not letters
// (VNI digits) end the word instead.
func (e *Engine) fallback(entry *logEntry, c CasedChar) outcome {
	if !keys.IsLetter(entry.Key) {
		return asBoundary
	}
	return e.insertLetter(entry, c)
}

// literal closes the syllable and appends the key verbatim.
func (e *Engine) literal(entry *logEntry, c CasedChar) outcome {
	if !keys.IsLetter(entry.Key) {
		return asBoundary
	}
	e.syl.AppendLiteral(c)
	entry.effect = effectLiteral
	e.log.push(*entry)
	return applied
}

// revert undoes the previous key's effect with undo, consumes that key from
// the log, and appends the current key literally.
func (e *Engine) revert(entry *logEntry, c CasedChar, undo func()) outcome {
	consumed, _ := e.log.pop()
	undo()
	e.syl.AppendLiteral(c)
	entry.effect = effectLiteral
	entry.revived = &consumed
	e.log.push(*entry)
	return applied
}

// repeats reports whether the previous key was the same key with effect ef.
func (e *Engine) repeats(entry *logEntry, ef effect) bool {
	last, ok := e.log.last()
	return ok && last.effect == ef && last.Key == entry.Key
}

func (e *Engine) applyTone(entry *logEntry, t Tone, c CasedChar) outcome {
	syl := &e.syl
	if t == ToneNone {
		if syl.Tone == ToneNone || syl.Closed() {
			return e.fallback(entry, c)
		}
		syl.SetTone(ToneNone)
		entry.effect = effectToneClear
		e.log.push(*entry)
		return applied
	}
	if len(syl.Nucleus) == 0 || syl.Closed() {
		return e.fallback(entry, c)
	}
	if syl.Tone == t {
		if e.repeats(entry, effectTone) {
			return e.revert(entry, c, func() { syl.SetTone(ToneNone) })
		}
		if !keys.IsLetter(entry.Key) {
			// A VNI digit has no letter to fall back to: re-place the tone
			// and swallow the key.
			syl.SetTone(t)
			entry.effect = effectAbsorbed
			e.log.push(*entry)
			return applied
		}
		return e.literal(entry, c)
	}
	syl.SetTone(t)
	entry.effect = effectTone
	e.log.push(*entry)
	return applied
}

func (e *Engine) applyModifier(entry *logEntry, mod Modifier, c CasedChar) outcome {
	syl := &e.syl
	if syl.Closed() {
		return e.fallback(entry, c)
	}
	if mod.Kind == ModStroke {
		return e.applyStroke(entry, c)
	}

	if mod.Kind == ModHorn {
		if i := hornPair(syl.Nucleus); i >= 0 {
			entry.effect = effectMark
			if syl.Nucleus[i].Mark == MarkHorn && syl.Nucleus[i+1].Mark == MarkHorn {
				// Already ươ: swallow the key but keep it for backspace.
				entry.effect = effectAbsorbed
			}
			syl.SetMark(i, MarkHorn)
			syl.SetMark(i+1, MarkHorn)
			e.log.push(*entry)
			return applied
		}
	}

	slot := e.pickSlot(mod, c)
	if slot < 0 {
		return e.fallback(entry, c)
	}
	mark := mod.Kind.markFor(syl.Nucleus[slot].Base.Letter)
	if syl.Nucleus[slot].Mark == mark {
		if e.repeats(entry, effectMark) {
			last, _ := e.log.last()
			marked := changedSlots(last.before.Nucleus, syl.Nucleus)
			return e.revert(entry, c, func() {
				for _, i := range marked {
					syl.SetMark(i, MarkNone)
				}
			})
		}
		return e.literal(entry, c)
	}
	syl.SetMark(slot, mark)
	entry.effect = effectMark
	e.log.push(*entry)
	return applied
}

func (e *Engine) applyStroke(entry *logEntry, c CasedChar) outcome {
	syl := &e.syl
	if len(syl.Initial) != 1 || len(syl.Final) > 0 {
		return e.fallback(entry, c)
	}
	switch syl.Initial[0].Letter {
	case 'd':
		syl.Initial[0].Letter = 'đ'
		entry.effect = effectStroke
		e.log.push(*entry)
		return applied
	case 'đ':
		if e.repeats(entry, effectStroke) {
			return e.revert(entry, c, func() { syl.Initial[0].Letter = 'd' })
		}
		return e.literal(entry, c)
	}
	return e.fallback(entry, c)
}

// pickSlot chooses the nucleus vowel a modifier applies to: the rightmost
// candidate whose new mark yields a permitted nucleus, else the rightmost
// candidate. It returns -1 when the key should be typed as a letter.
func (e *Engine) pickSlot(mod Modifier, c CasedChar) int {
	n := e.syl.Nucleus
	last := -1
	for i := len(n) - 1; i >= 0; i-- {
		if !containsRune(mod.Bases, n[i].Base.Letter) {
			continue
		}
		if last < 0 {
			last = i
		}
		trial := append([]VowelSlot(nil), n...)
		trial[i].Mark = mod.Kind.markFor(n[i].Base.Letter)
		if _, exact, _ := LookupNucleus(trial); exact {
			return i
		}
	}
	if last < 0 {
		return -1
	}
	if isVowel(c.Letter) && len(e.syl.Final) == 0 && IsNucleusPrefix(basesOf(n)+string(c.Letter)) {
		return -1
	}
	return last
}

func (e *Engine) backspace() EditResult {
	last, ok := e.log.pop()
	if !ok {
		e.Reset()
		return passThrough()
	}
	e.syl = last.before
	if last.revived != nil {
		e.log.push(*last.revived)
	}
	native := e.prev
	if len(native) > 0 {
		native = native[:len(native)-1]
	}
	native = append([]rune(nil), native...)
	res := e.emit(native)
	if e.log.len() == 0 {
		e.Reset()
	}
	return res
}

// boundary finishes the word, restoring the literal keys when the
// composition is not a Vietnamese syllable. The host always delivers the
// boundary key itself.
func (e *Engine) boundary() EditResult {
	if e.State() == StateEmpty {
		e.Reset()
		return passThrough()
	}
	text, restored := e.finalText()
	e.commit(text, restored)

	res := passThrough()
	if next := []rune(text); !equalRunes(next, e.prev) {
		del, ins := diff(e.prev, next)
		res = newSend(del, ins, true)
	}
	e.Reset()
	return res
}

func (e *Engine) finalText() (string, bool) {
	rendered := e.syl.Render()
	if !e.autoRestore {
		return rendered, false
	}
	text, restored := Restore(&e.syl, e.log.literal())
	if restored {
		e.logger.Debug("auto-restore",
			"rendered", rendered,
			"literal", text,
			"scheme", e.scheme.String())
	}
	return text, restored
}

func (e *Engine) commit(text string, restored bool) {
	if e.onCommit == nil || text == "" {
		return
	}
	e.onCommit(Commit{Text: text, Literal: e.log.literal(), Restored: restored})
}

// hornPair returns the index of an adjacent u,o pair, which takes the horn
// on both vowels (ươ), or -1.
func hornPair(n []VowelSlot) int {
	for i := 0; i+1 < len(n); i++ {
		if n[i].Base.Letter == 'u' && n[i+1].Base.Letter == 'o' {
			return i
		}
	}
	return -1
}

func changedSlots(before, after []VowelSlot) []int {
	var out []int
	for i := range after {
		if i >= len(before) || before[i].Mark != after[i].Mark {
			out = append(out, i)
		}
	}
	return out
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}

func equalRunes(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

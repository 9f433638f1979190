package ime

import (
	"strings"
	"testing"

	"vnime/internal/keys"
)

// typeString feeds input to e the way a host would and returns the document
// text. '<' stands for backspace.
func typeString(t *testing.T, e *Engine, input string) string {
	t.Helper()
	out, err := Simulate(e, input, nil)
	if err != nil {
		t.Fatalf("input %q: %v", input, err)
	}
	return out
}

func runCases(t *testing.T, scheme Scheme, cases [][2]string) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc[0], func(t *testing.T) {
			e := NewEngine(WithScheme(scheme))
			if got := typeString(t, e, tc[0]); got != tc[1] {
				t.Errorf("%s %q: got %q, want %q", scheme, tc[0], got, tc[1])
			}
		})
	}
}

func TestTelexBasics(t *testing.T) {
	runCases(t, Telex, [][2]string{
		{"a", "a"},
		{"as", "á"},
		{"af", "à"},
		{"ar", "ả"},
		{"ax", "ã"},
		{"aj", "ạ"},
		{"sa", "sa"},
		{"aa", "â"},
		{"aw", "ă"},
		{"ee", "ê"},
		{"oo", "ô"},
		{"ow", "ơ"},
		{"uw", "ư"},
		{"dd", "đ"},
		{"aas", "ấ"},
		{"asa", "ấ"},
		{"oso", "ố"},
		{"asf", "à"},
		{"asz", "a"},
		{"vieejt", "việt"},
		// s is the sắc key in the tone table, so this is viết, not việt.
		{"vieets", "viết"},
		{"dduowwcj", "được"},
		{"nguwowif", "người"},
		{"ngoafif", "ngoàif"},
		{"hello", "hello"},
		{"bcd", "bcd"},
		{"xyz", "xyz"},
		{"bs", "bs"},
		{"ts", "ts"},
		{"w", "w"},
	})
}

func TestTelexDoubleKeyRevert(t *testing.T) {
	runCases(t, Telex, [][2]string{
		{"ass", "as"},
		{"aff", "af"},
		{"arr", "ar"},
		{"axx", "ax"},
		{"ajj", "aj"},
		{"aaa", "aa"},
		{"eee", "ee"},
		{"ooo", "oo"},
		{"aww", "aw"},
		{"ddd", "dd"},
		{"tesst", "test"},
		// After a revert the syllable is closed.
		{"assa", "asa"},
	})
}

func TestVNIBasics(t *testing.T) {
	runCases(t, VNI, [][2]string{
		{"a1", "á"},
		{"a2", "à"},
		{"a3", "ả"},
		{"a4", "ã"},
		{"a5", "ạ"},
		{"a6", "â"},
		{"a8", "ă"},
		{"e6", "ê"},
		{"o6", "ô"},
		{"o7", "ơ"},
		{"u7", "ư"},
		{"d9", "đ"},
		{"a61", "ấ"},
		{"a10", "a"},
		{"vie65t", "việt"},
		{"d9u7o7c5", "được"},
		{"ngu7o72i2", "người"},
		{"to6i1", "tối"},
		{"a11", "a1"},
		{"a66", "a6"},
	})
}

func TestUppercase(t *testing.T) {
	runCases(t, Telex, [][2]string{
		{"DDUWOWNGF", "ĐƯỜNG"},
		{"Vieejt", "Việt"},
		{"viEejt", "viỆt"},
		{"Dda", "Đa"},
		{"AS", "Á"},
	})
	runCases(t, VNI, [][2]string{
		{"D9U7O7NG2", "ĐƯỜNG"},
		{"A1", "Á"},
	})
}

func TestBackspace(t *testing.T) {
	runCases(t, Telex, [][2]string{
		{"abcd<<<", "a"},
		{"a<b", "b"},
		{"ab<<cd", "cd"},
		{"toi<as", "toá"},
		{"as<", "a"},
		{"aa<", "a"},
		{"ass<", "á"},
		{"dd<", "d"},
		{"vieejt<<", "viê"},
		{"a<<", ""},
		// The last key is undone, not the tone.
		{"tasn<", "tá"},
	})
	runCases(t, VNI, [][2]string{
		{"a1<2", "à"},
		{"o6<7", "ơ"},
	})
}

// Backspace after any prefix must leave the text of the prefix one key
// shorter.
func TestBackspaceIsInverse(t *testing.T) {
	inputs := []string{
		"dduowwcj", "nguwowif", "vieejt", "tesst", "quyeens", "giaus",
		"ngoafif", "DDUWOWNGF", "aww", "oso", "assa",
	}
	for _, in := range inputs {
		for i := 1; i <= len(in); i++ {
			prefix := in[:i]
			want := typeString(t, NewEngine(), prefix[:i-1])
			got := typeString(t, NewEngine(), prefix+"<")
			if got != want {
				t.Errorf("%q + backspace: got %q, want %q", prefix, got, want)
			}
		}
	}
}

func TestAutoRestore(t *testing.T) {
	runCases(t, Telex, [][2]string{
		{"tesst ", "test "},
		{"ass ", "as "},
		{"maxx ", "max "},
		{"off ", "of "},
		{"eff ", "ef "},
		{"err ", "er "},
		{"ajj ", "aj "},
		{"maas ", "mấ "},
		{"text ", "text "},
		{"wow ", "wow "},
		{"vieejt ", "việt "},
		{"dduowwcj.", "được."},
		{"dd ", "dd "},
		{"nhaf ", "nhà "},
		{"eus ", "éu "},
		{"keus ", "kéu "},
		{"eo ", "eo "},
		{"huow ", "huow "},
	})
}

func TestAutoRestoreDisabled(t *testing.T) {
	e := NewEngine(WithAutoRestore(false))
	if got := typeString(t, e, "text "); got != "tẽt " {
		t.Errorf("got %q, want %q", got, "tẽt ")
	}
}

func TestToneTargets(t *testing.T) {
	runCases(t, Telex, [][2]string{
		// Tone on the second vowel.
		{"oas", "oá"},
		{"oes", "oé"},
		{"uys", "uý"},
		{"uees", "uế"},
		{"uoos", "uố"},
		{"uows", "ướ"},
		{"iees", "iế"},
		// Tone on the first vowel.
		{"ais", "ái"},
		{"aos", "áo"},
		{"aus", "áu"},
		{"ays", "áy"},
		{"ois", "ói"},
		{"uis", "úi"},
		{"eos", "éo"},
		{"eus", "éu"},
		{"ius", "íu"},
		{"ias", "ía"},
		{"uwas", "ứa"},
		// Three vowels.
		{"oais", "oái"},
		{"oays", "oáy"},
		{"uoois", "uối"},
		{"uowis", "ưới"},
		{"uyees", "uyế"},
	})
}

func TestSyllables(t *testing.T) {
	runCases(t, Telex, [][2]string{
		{"ngheef", "nghề"},
		{"ghes", "ghé"},
		{"kes", "ké"},
		{"achs", "ách"},
		{"oans", "oán"},
		{"ieens", "iến"},
		{"gias", "giá"},
		{"giaus", "giáu"},
		{"gieos", "giéo"},
		{"gif", "gì"},
		{"quas", "quá"},
		{"quans", "quán"},
		{"quoocs", "quốc"},
		{"quys", "quý"},
		{"quyeens", "quyến"},
		{"hoaf", "hoà"},
		{"thuowngr", "thưởng"},
		{"khuyeen", "khuyên"},
	})
}

func TestBoundaryResets(t *testing.T) {
	e := NewEngine()
	if got := typeString(t, e, "as as"); got != "á á" {
		t.Errorf("got %q", got)
	}
	if e.State() != StateComposing {
		t.Errorf("state = %s", e.State())
	}
	typeString(t, e, " ")
	if e.State() != StateEmpty {
		t.Errorf("state after boundary = %s", e.State())
	}
	if len(e.RawEntries()) != 0 {
		t.Errorf("raw log not empty after boundary")
	}
}

func TestBoundaryForwardsKey(t *testing.T) {
	e := NewEngine()
	typeString(t, e, "text")
	res := e.OnKey(keys.Space, false, false)
	if res.Action != ActionSend || !res.Forward {
		t.Fatalf("expected forwarded send, got %+v", res)
	}
	if res.Backspace != 2 || res.Text() != "ext" {
		t.Errorf("got backspace=%d text=%q", res.Backspace, res.Text())
	}
}

func TestPassThrough(t *testing.T) {
	e := NewEngine()
	res := e.OnKey(keys.B, false, false)
	if res.Action != ActionNone {
		t.Errorf("plain consonant should pass through, got %+v", res)
	}
	res = e.OnKey(keys.Delete, false, false)
	if res.Action != ActionNone {
		t.Errorf("backspace of a native char should pass through")
	}
	res = e.OnKey(keys.Delete, false, false)
	if res.Action != ActionNone {
		t.Errorf("backspace with empty log should pass through")
	}
	res = e.OnKey(keys.KeyCode(0x60), false, false) // F5
	if res.Action != ActionNone {
		t.Errorf("unrecognized key should pass through")
	}
}

func TestSendResult(t *testing.T) {
	e := NewEngine()
	e.OnKey(keys.A, false, false)
	res := e.OnKey(keys.S, false, false)
	if res.Action != ActionSend || res.Forward {
		t.Fatalf("got %+v", res)
	}
	if res.Backspace != 1 || res.Count != 1 || res.Chars[0] != 'á' {
		t.Errorf("got backspace=%d chars=%q", res.Backspace, res.Text())
	}
}

func TestAbsorbedHorn(t *testing.T) {
	e := NewEngine()
	typeString(t, e, "uow")
	res := e.OnKey(keys.W, false, false)
	if res.Action != ActionSend || res.Backspace != 0 || res.Count != 0 {
		t.Errorf("second horn should be swallowed, got %+v", res)
	}
}

func TestModifierKeyResets(t *testing.T) {
	e := NewEngine()
	typeString(t, e, "vie")
	res := e.OnKey(keys.C, false, true)
	if res.Action != ActionNone {
		t.Errorf("shortcut should pass through")
	}
	if e.State() != StateEmpty {
		t.Errorf("shortcut should reset composition")
	}
}

func TestSetMethod(t *testing.T) {
	e := NewEngine()
	e.SetMethod(MethodVNI)
	if e.Scheme() != VNI {
		t.Fatalf("scheme = %s", e.Scheme())
	}
	if got := typeString(t, e, "a1"); got != "á" {
		t.Errorf("got %q", got)
	}
	e.SetMethod(MethodTelex)
	if e.State() != StateEmpty {
		t.Errorf("switching method should reset")
	}
	e.SetMethod(7)
	if e.Scheme() != Telex {
		t.Errorf("invalid method should be ignored")
	}
}

func TestTelexDigitsAreBoundaries(t *testing.T) {
	runCases(t, Telex, [][2]string{
		{"as1", "á1"},
		{"bx1", "bx1"},
		{"tex1", "tẽ1"},
	})
}

func TestVNIInapplicableDigits(t *testing.T) {
	runCases(t, VNI, [][2]string{
		{"b1", "b1"},
		{"17", "17"},
		{"a9", "a9"},
		{"ba1 ", "bá "},
	})
}

func TestDisabled(t *testing.T) {
	e := NewEngine()
	e.SetEnabled(false)
	if got := typeString(t, e, "vieejt "); got != "vieejt " {
		t.Errorf("got %q", got)
	}
}

func TestRawLogOverflow(t *testing.T) {
	e := NewEngine()
	long := strings.Repeat("b", MaxRawEntries+5)
	if got := typeString(t, e, long); got != long {
		t.Errorf("got %q", got)
	}
	if n := len(e.RawEntries()); n > MaxRawEntries {
		t.Errorf("raw log grew to %d", n)
	}
}

func TestCommitObserver(t *testing.T) {
	var commits []Commit
	e := NewEngine(WithCommitObserver(func(c Commit) { commits = append(commits, c) }))
	typeString(t, e, "vieejt text ")
	if len(commits) != 2 {
		t.Fatalf("got %d commits", len(commits))
	}
	if commits[0].Text != "việt" || commits[0].Restored {
		t.Errorf("first commit = %+v", commits[0])
	}
	if commits[1].Text != "text" || !commits[1].Restored || commits[1].Literal != "text" {
		t.Errorf("second commit = %+v", commits[1])
	}
}

func TestRevertConsumesKey(t *testing.T) {
	e := NewEngine()
	typeString(t, e, "tess")
	var got strings.Builder
	for _, r := range e.RawEntries() {
		ch, _ := keys.Rune(r.Key, r.IsUpper)
		got.WriteRune(ch)
	}
	if got.String() != "tes" {
		t.Errorf("raw log = %q, want %q", got.String(), "tes")
	}
}

func TestVNIRepeatedToneDigitIsAbsorbed(t *testing.T) {
	runCases(t, VNI, [][2]string{
		{"ngu7o72i2", "người"},
		{"ngu7o72i2 ", "người "},
		{"ngu7o72i2<", "người"},
		{"ngu7o72i2<<", "ngườ"},
		{"to1i1 ", "tói "},
	})

	e := NewEngine(WithScheme(VNI))
	typeString(t, e, "ngu7o72i")
	res := e.OnKey(keys.N2, false, false)
	if res.Action != ActionSend || res.Backspace != 0 || res.Count != 0 || res.Forward {
		t.Errorf("repeated tone digit: got %+v, want an empty consumed edit", res)
	}
	if e.State() != StateComposing {
		t.Error("repeated tone digit ended the word")
	}
}

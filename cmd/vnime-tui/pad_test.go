package main

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vnime/internal/ime"
)

func typeRunes(p *Pad, s string) {
	for _, r := range s {
		p.key(tcell.KeyRune, r, tcell.ModNone)
	}
}

func TestPadComposes(t *testing.T) {
	p := NewPad(nil, ime.NewEngine())
	typeRunes(p, "vieejt nam")
	assert.Equal(t, "việt nam", p.Text())

	p.key(tcell.KeyBackspace2, 0, tcell.ModNone)
	assert.Equal(t, "việt na", p.Text())

	p.key(tcell.KeyEnter, 0, tcell.ModNone)
	typeRunes(p, "xin")
	assert.Equal(t, "việt na\nxin", p.Text())
}

func TestPadToggles(t *testing.T) {
	p := NewPad(nil, ime.NewEngine())

	p.key(tcell.KeyCtrlT, 0, tcell.ModCtrl)
	assert.Equal(t, ime.VNI, p.engine.Scheme())
	typeRunes(p, "a1 ")
	assert.Equal(t, "á ", p.Text())

	p.key(tcell.KeyCtrlT, 0, tcell.ModCtrl)
	assert.Equal(t, ime.Telex, p.engine.Scheme())

	require.True(t, p.engine.AutoRestore())
	p.key(tcell.KeyCtrlR, 0, tcell.ModCtrl)
	assert.False(t, p.engine.AutoRestore())
	typeRunes(p, "text ")
	assert.Equal(t, "á tẽt ", p.Text())
	assert.Contains(t, p.status(), "restore off")
}

func TestPadQuit(t *testing.T) {
	p := NewPad(nil, ime.NewEngine())
	assert.False(t, p.key(tcell.KeyEscape, 0, tcell.ModNone))
	assert.False(t, p.key(tcell.KeyCtrlC, 0, tcell.ModCtrl))
	assert.True(t, p.key(tcell.KeyRune, 'a', tcell.ModNone))
}

func TestPadOffLayoutRuneEndsWord(t *testing.T) {
	p := NewPad(nil, ime.NewEngine())
	typeRunes(p, "a")
	p.key(tcell.KeyRune, 'ư', tcell.ModNone)
	typeRunes(p, "s")
	assert.Equal(t, "aưs", p.Text())
}

func TestPadModifierKeysDoNotType(t *testing.T) {
	p := NewPad(nil, ime.NewEngine())
	typeRunes(p, "a")
	p.key(tcell.KeyRune, 'f', tcell.ModAlt)
	typeRunes(p, "s")
	assert.Equal(t, "as", p.Text())
}

func TestPadDraw(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	defer screen.Fini()
	screen.SetSize(40, 4)

	p := NewPad(screen, ime.NewEngine())
	typeRunes(p, "vieejt")
	p.draw()

	cells, width, height := screen.GetContents()
	require.Equal(t, 40, width)
	require.Equal(t, 4, height)

	var line []rune
	for x := 0; x < 4; x++ {
		line = append(line, cells[x].Runes...)
	}
	assert.Equal(t, "việt", string(line))

	var bar []rune
	for x := 0; x < 7; x++ {
		bar = append(bar, cells[3*width+x].Runes...)
	}
	assert.Equal(t, " telex ", string(bar))
}

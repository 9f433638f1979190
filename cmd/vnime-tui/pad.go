package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"vnime/internal/ime"
	"vnime/internal/keys"
)

const statusHelp = "Ctrl+T method  Ctrl+R restore  Esc quit"

// Pad is a scratch buffer typed through one engine.
type Pad struct {
	screen tcell.Screen
	engine *ime.Engine
	doc    []rune
}

// NewPad returns a pad drawing to screen. screen may be nil in tests.
func NewPad(screen tcell.Screen, engine *ime.Engine) *Pad {
	return &Pad{screen: screen, engine: engine}
}

// Text returns the buffer contents.
func (p *Pad) Text() string { return string(p.doc) }

// handleEvent returns false when the pad should close.
func (p *Pad) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return p.key(ev.Key(), ev.Rune(), ev.Modifiers())
	case *tcell.EventResize:
		p.screen.Sync()
	}
	return true
}

func (p *Pad) key(k tcell.Key, r rune, mod tcell.ModMask) bool {
	switch k {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyCtrlT:
		if p.engine.Scheme() == ime.Telex {
			p.engine.SetScheme(ime.VNI)
		} else {
			p.engine.SetScheme(ime.Telex)
		}
	case tcell.KeyCtrlR:
		p.engine.SetAutoRestore(!p.engine.AutoRestore())
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		p.press(keys.Delete, false, false)
	case tcell.KeyEnter:
		p.press(keys.Return, false, false)
	case tcell.KeyTab:
		p.press(keys.Tab, false, false)
	case tcell.KeyRune:
		code, upper, ok := keys.FromRune(r)
		if !ok {
			// Characters off the US layout end the word and go in as typed.
			p.engine.Reset()
			p.doc = append(p.doc, r)
			return true
		}
		p.press(code, upper, mod&(tcell.ModAlt|tcell.ModCtrl|tcell.ModMeta) != 0)
	default:
		p.engine.Reset()
	}
	return true
}

func (p *Pad) press(code keys.KeyCode, upper, modifier bool) {
	res := p.engine.OnKey(code, upper, modifier)
	if modifier && res.Action == ime.ActionNone {
		return
	}
	p.doc = res.Apply(p.doc, code, upper)
}

func (p *Pad) status() string {
	restore := "off"
	if p.engine.AutoRestore() {
		restore = "on"
	}
	return fmt.Sprintf(" %s | restore %s | %s ", p.engine.Scheme(), restore, statusHelp)
}

func (p *Pad) draw() {
	s := p.screen
	s.Clear()
	width, height := s.Size()

	x, y := 0, 0
	for _, r := range p.doc {
		if r == '\n' || x >= width {
			x, y = 0, y+1
			if r == '\n' {
				continue
			}
		}
		if y >= height-1 {
			break
		}
		s.SetContent(x, y, r, nil, tcell.StyleDefault)
		x++
	}
	s.ShowCursor(x, y)

	bar := tcell.StyleDefault.Reverse(true)
	status := []rune(p.status())
	for i := 0; i < width; i++ {
		r := ' '
		if i < len(status) {
			r = status[i]
		}
		s.SetContent(i, height-1, r, nil, bar)
	}
	s.Show()
}

func (p *Pad) run() {
	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := p.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	p.draw()
	for ev := range events {
		if !p.handleEvent(ev) {
			return
		}
		p.draw()
	}
}

// Package ime implements Vietnamese Telex and VNI key composition.
//
// # Architecture Overview
//
// Each keystroke is decoded under the active scheme, applied to a
// structured syllable model, and answered with the smallest edit that
// turns the previous on-screen composition into the new one:
//
//	Key Event → Decode → Syllable → Render (NFC) → Diff → EditResult
//	                                   ↑
//	                               raw log (undo + restore)
//
// # Input Schemes
//
//	┌──────────┬──────────────┬──────────────┬──────────────────────────┐
//	│ Scheme   │ Tones        │ Tone removal │ Modifiers                │
//	├──────────┼──────────────┼──────────────┼──────────────────────────┤
//	│ Telex    │ s f r x j    │ z            │ aa ee oo, w (ơ ư ă), dd  │
//	│ VNI      │ 1 2 3 4 5    │ 0            │ 6 (â ê ô), 7 (ơ ư), 8, 9 │
//	└──────────┴──────────────┴──────────────┴──────────────────────────┘
//
// Repeating a modifier key immediately undoes it and types the key
// literally ("ss" → "s", "aaa" → "aa"). Punctuation, space and
// navigation keys end the syllable.
//
// # Auto-Restore
//
// At a word boundary a composition that is not a well-formed Vietnamese
// syllable is replaced by the keys the user actually typed, so English
// words such as "text" and "off" survive Telex intact.
//
// # Hosts
//
//	┌──────────┬───────────────────────────────────────────────────────┐
//	│ Host     │ Integration                                           │
//	├──────────┼───────────────────────────────────────────────────────┤
//	│ Linux    │ IBus engine over D-Bus (IBusHost, one session per     │
//	│          │ input context, per-application scheme on focus)       │
//	│ Terminal │ vnime-tui preview and vnimectl type                   │
//	└──────────┴───────────────────────────────────────────────────────┘
//
// Engine is not safe for concurrent use; Sessions serializes access for
// hosts that serve several input contexts.
package ime

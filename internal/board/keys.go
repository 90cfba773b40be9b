package board

import "fmt"

// KeyKind tags the four classes of keys. The kind decides whether a key may
// move during mutation and which slots it may occupy.
type KeyKind uint8

const (
	// Letter is a mobile alphabetic key.
	Letter KeyKind = iota
	// StaticLetter is an alphabetic key pinned to the home-row index slots.
	StaticLetter
	// Number is a pinned number/shift pair.
	Number
	// Punctuation is a punctuation key; some are pinned, some mobile.
	Punctuation
)

// Key is a typed key symbol carrying its lower and upper (shifted) runes.
// Keys are small value types and compare with ==, which is what layout
// equality and the optimizer's memoization rely on.
type Key struct {
	Kind  KeyKind
	Lower rune
	Upper rune
}

// Matches reports whether the key produces r in either slot.
func (k Key) Matches(r rune) bool {
	return k.Lower == r || k.Upper == r
}

// Label returns the lower rune as a string, for rendering.
func (k Key) Label() string {
	return string(k.Lower)
}

// MarshalJSON serializes a key as {"lower": ..., "upper": ...}. The kind is
// not exposed externally.
func (k Key) MarshalJSON() ([]byte, error) {
	return fmt.Appendf(nil, "{%q:%q,%q:%q}", "lower", string(k.Lower), "upper", string(k.Upper)), nil
}

func letter(lower, upper rune) Key      { return Key{Letter, lower, upper} }
func static(lower, upper rune) Key      { return Key{StaticLetter, lower, upper} }
func number(lower, upper rune) Key      { return Key{Number, lower, upper} }
func punctuation(lower, upper rune) Key { return Key{Punctuation, lower, upper} }

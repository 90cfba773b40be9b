package board

import (
	"math/rand/v2"
	"strings"
)

// mobileSlots lists the 19 positions whose keys may move during mutation.
var mobileSlots = [19]uint8{15, 16, 19, 20, 21, 22, 23, 24, 28, 30, 35, 36, 39, 40, 41, 42, 43, 44, 45}

// letterOnlySlots must always hold a Letter.
var letterOnlySlots = [2]uint8{19, 20}

// nonLetterOnlySlots are reserved for non-letter mobile keys.
var nonLetterOnlySlots = [6]uint8{21, 22, 23, 24, 36, 45}

// mobilePool is the canonical ordering of the 19 mobile keys, matching
// mobileSlots index for index in the canonical starting layout.
var mobilePool = [19]Key{
	letter('i', 'I'),
	letter('o', 'O'),
	letter('f', 'F'),
	letter('n', 'N'),
	letter('w', 'W'),
	letter('g', 'G'),
	letter('q', 'Q'),
	letter('z', 'Z'),
	letter('b', 'B'),
	letter('m', 'M'),
	letter('x', 'X'),
	letter('u', 'U'),
	letter('d', 'D'),
	letter('p', 'P'),
	letter('v', 'V'),
	letter('r', 'R'),
	letter('t', 'T'),
	letter('c', 'C'),
	letter('y', 'Y'),
}

// pinnedSkeleton returns the 47-key array with every pinned position filled
// and the mobile slots zeroed.
func pinnedSkeleton() [NumPositions]Key {
	var keys [NumPositions]Key
	keys[0] = punctuation('`', '~')
	keys[1] = number('1', '!')
	keys[2] = number('2', '@')
	keys[3] = number('3', '#')
	keys[4] = number('4', '$')
	keys[5] = number('5', '%')
	keys[6] = number('6', '^')
	keys[7] = number('7', '&')
	keys[8] = number('8', '*')
	keys[9] = number('9', '(')
	keys[10] = number('0', ')')
	keys[11] = punctuation(',', '<')
	keys[12] = punctuation('.', '>')
	keys[13] = punctuation('[', '{')
	keys[14] = punctuation(']', '}')
	keys[17] = punctuation('-', '_')
	keys[18] = punctuation('=', '+')
	keys[25] = punctuation('\\', '|')
	keys[26] = letter('a', 'A')
	keys[27] = letter('s', 'S')
	keys[29] = letter('e', 'E')
	keys[31] = static('h', 'H')
	keys[32] = static('j', 'J')
	keys[33] = static('k', 'K')
	keys[34] = static('l', 'L')
	keys[37] = punctuation(';', ';')
	keys[38] = punctuation('\'', '"')
	keys[46] = punctuation('/', '?')
	return keys
}

// Layout assigns 47 keys to the 47 board positions. The char index is a
// direct ASCII table rebuilt on construction and mutation so the scorer's
// inner loop avoids a 47-key scan per rune.
type Layout struct {
	keys      [NumPositions]Key
	charIndex [128]int8
}

// New returns the canonical starting layout: the pinned skeleton with the
// mobile pool placed in canonical order.
func New() *Layout {
	l := &Layout{keys: pinnedSkeleton()}
	for i, slot := range mobileSlots {
		l.keys[slot] = mobilePool[i]
	}
	l.rebuildIndex()
	return l
}

// NewRandom returns a layout built from the pinned skeleton by independently
// shuffling the mobile slots and the mobile key pool and zipping them.
//
// The slot-class rules of Reproduce are not applied here; the initial
// population may be "illegal" and reproduction drifts it toward legality.
func NewRandom(rng *rand.Rand) *Layout {
	slots := mobileSlots
	pool := mobilePool
	rng.Shuffle(len(slots), func(i, j int) {
		slots[i], slots[j] = slots[j], slots[i]
	})
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	l := &Layout{keys: pinnedSkeleton()}
	for i, slot := range slots {
		l.keys[slot] = pool[i]
	}
	l.rebuildIndex()
	return l
}

func (l *Layout) rebuildIndex() {
	for i := range l.charIndex {
		l.charIndex[i] = -1
	}
	for pos, k := range l.keys {
		if k.Lower < 128 {
			l.charIndex[k.Lower] = int8(pos)
		}
		if k.Upper < 128 {
			l.charIndex[k.Upper] = int8(pos)
		}
	}
}

// Key returns the key at a position.
func (l *Layout) Key(pos uint8) Key {
	return l.keys[pos]
}

// PositionOf returns the position whose key produces r, if any.
func (l *Layout) PositionOf(r rune) (uint8, bool) {
	if r < 0 || r >= 128 {
		return 0, false
	}
	pos := l.charIndex[r]
	if pos < 0 {
		return 0, false
	}
	return uint8(pos), true
}

// Distance returns the bigram effort of striking position b immediately
// after position a. Same-hand reaches to a higher row cost the most;
// same-row rolls are cheapest; alternating hands sits in between.
func (l *Layout) Distance(a, b uint8) float64 {
	if a == b {
		return 0
	}
	h := heatmap[b]
	if handTable[a] != handTable[b] {
		return h * 1.25
	}
	ra, rb := RowOf(a), RowOf(b)
	switch {
	case ra == rb:
		return h * 0.75
	case rb < ra:
		return h * 1.5
	default:
		return h
	}
}

// Equal reports element-wise key identity. Two layouts that are Equal score
// identically against any corpus, which is what the optimizer's
// cross-generation memoization relies on.
func (l *Layout) Equal(other *Layout) bool {
	return l.keys == other.keys
}

// Clone returns a copy of the layout.
func (l *Layout) Clone() *Layout {
	c := *l
	return &c
}

// MarshalJSON serializes the layout as an ordered sequence of 47
// {lower, upper} objects.
func (l *Layout) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, NumPositions*24)
	buf = append(buf, '[')
	for i, k := range l.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := k.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
	}
	return append(buf, ']'), nil
}

// rowBounds delimit the four rows for rendering.
var rowBounds = [4][2]uint8{{0, 13}, {13, 26}, {26, 37}, {37, 47}}

// rowIndent gives each row its staircase offset.
var rowIndent = [4]string{"", "      ", "       ", "         "}

// String renders the layout in the four-row staircase shape of the board.
func (l *Layout) String() string {
	var sb strings.Builder
	for row, bounds := range rowBounds {
		sb.WriteString(rowIndent[row])
		for pos := bounds[0]; pos < bounds[1]; pos++ {
			if pos > bounds[0] {
				sb.WriteString("   ")
			}
			sb.WriteString(l.keys[pos].Label())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

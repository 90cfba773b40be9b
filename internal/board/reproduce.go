package board

import "math/rand/v2"

// Reproduce returns a mutated child: a clone of the layout with the given
// number of independent pair swaps applied over the mobile slots.
//
// Each swap classifies the first slot to pick a legal partner:
//   - a letter-only slot swaps with a slot currently holding a Letter,
//   - a slot holding Punctuation swaps with a non-letter-only slot,
//   - anything else swaps with any mobile slot.
//
// Pinned positions and StaticLetter/Number keys are never touched.
func (l *Layout) Reproduce(rng *rand.Rand, mutations int) *Layout {
	child := l.Clone()
	for range mutations {
		i := mobileSlots[rng.IntN(len(mobileSlots))]

		var j uint8
		switch {
		case isLetterOnly(i):
			letters := child.mobileLetterSlots()
			j = letters[rng.IntN(len(letters))]
		case child.keys[i].Kind == Punctuation:
			j = nonLetterOnlySlots[rng.IntN(len(nonLetterOnlySlots))]
		default:
			j = mobileSlots[rng.IntN(len(mobileSlots))]
		}

		child.keys[i], child.keys[j] = child.keys[j], child.keys[i]
	}
	child.rebuildIndex()
	return child
}

func isLetterOnly(pos uint8) bool {
	for _, p := range letterOnlySlots {
		if p == pos {
			return true
		}
	}
	return false
}

// mobileLetterSlots returns the mobile slots currently holding a Letter.
func (l *Layout) mobileLetterSlots() []uint8 {
	slots := make([]uint8, 0, len(mobileSlots))
	for _, p := range mobileSlots {
		if l.keys[p].Kind == Letter {
			slots = append(slots, p)
		}
	}
	return slots
}

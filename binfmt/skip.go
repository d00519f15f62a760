// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package binfmt

// SkipArrayElements consumes a pending array KeyedItem entirely,
// without the caller iterating it via TryBeginArray/TryValue/
// TryEndArray, and returns the bytes spanned. If the element type has
// a statically known size this is a single bulk advance; otherwise
// each element is skipped individually via skipOneEvent.
func (f *Formatter) SkipArrayElements() ([]byte, bool) {
	if f.PeekNext() != KeyedItem {
		return nil, false
	}
	fr := f.top()
	if !fr.pendingIsArray {
		return nil, false
	}
	count, elemID, ok := f.TryBeginArray()
	if !ok {
		return nil, false
	}
	start := f.pos
	if size, fixed := f.ec.TryCalculateFixedSize(elemID); fixed {
		total := size * int(count)
		if _, ok := f.take(total); !ok {
			f.fail(errf(UnexpectedEnd, fr.blockName, "", f.pos, "skipping %d-byte array", total))
			return nil, false
		}
		fr.arrayRemaining = 0
	} else {
		for fr.arrayRemaining > 0 {
			if _, ok := f.skipOneEvent(); !ok {
				return nil, false
			}
		}
	}
	if !f.TryEndArray() {
		return nil, false
	}
	return f.buf[start:f.pos], true
}

// SkipNextBlob reads and discards the next complete event (a value,
// an entire array, or an entire block) and returns the bytes
// consumed. It is a convenience over TryValue/TryBeginArray+.../
// TryBeginBlock+... for callers that only want to advance the cursor.
func (f *Formatter) SkipNextBlob() ([]byte, bool) {
	return f.skipOneEvent()
}

func (f *Formatter) skipOneEvent() ([]byte, bool) {
	start := f.pos
	fr := f.top()

	if fr.inArray {
		switch f.PeekNext() {
		case ValueMember:
			if _, ok := f.TryValue(); !ok {
				return nil, false
			}
			return f.buf[start:f.pos], true
		case BeginBlock:
			if _, ok := f.TryBeginBlock(); !ok {
				return nil, false
			}
			if !f.drainBlock() {
				return nil, false
			}
			return f.buf[start:f.pos], true
		default:
			return nil, false
		}
	}

	switch f.PeekNext() {
	case KeyedItem:
		if fr.pendingIsArray {
			return f.SkipArrayElements()
		}
		// peek at the member's type without consuming it to decide
		// whether this is a scalar value or a nested block.
		id := fr.typeStack[len(fr.typeStack)-1]
		if f.ec.GetType(id).IsBlock {
			if _, ok := f.TryBeginBlock(); !ok {
				return nil, false
			}
			if !f.drainBlock() {
				return nil, false
			}
			return f.buf[start:f.pos], true
		}
		if _, ok := f.TryValue(); !ok {
			return nil, false
		}
		return f.buf[start:f.pos], true
	default:
		return nil, false
	}
}

// drainBlock consumes events on the current (just-pushed) frame until
// its matching EndBlock.
func (f *Formatter) drainBlock() bool {
	for {
		switch f.PeekNext() {
		case EndBlock:
			return f.TryEndBlock()
		case None:
			return false
		default:
			if _, ok := f.skipOneEvent(); !ok {
				return false
			}
		}
	}
}

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

// Blob identifies the kind of event the formatter's cursor is
// currently positioned at.
type Blob uint8

const (
	None Blob = iota
	KeyedItem
	ValueMember
	BeginBlock
	EndBlock
	BeginArray
	EndArray
)

func (b Blob) String() string {
	switch b {
	case None:
		return "None"
	case KeyedItem:
		return "KeyedItem"
	case ValueMember:
		return "ValueMember"
	case BeginBlock:
		return "BeginBlock"
	case EndBlock:
		return "EndBlock"
	case BeginArray:
		return "BeginArray"
	case EndArray:
		return "EndArray"
	default:
		return "Unknown"
	}
}

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

package schema

import "github.com/sneller-labs/contentval/token"

// Schemata is the parsed form of one schema source file (plus any
// files it transitively #included): the union of every named block,
// alias, bitfield and literals declaration, each immutable once
// Parse returns. A *Schemata may be shared freely across goroutines.
type Schemata struct {
	// Dict is shared by every top-level declaration that needs to
	// intern an expression outside of any block body (currently:
	// Alias template arguments of Expression kind).
	Dict *token.Dict

	blocks     []BlockDef
	blockIndex map[string]BlockID

	aliases     []Alias
	aliasIndex  map[string]AliasID
	bitfields   []BitField
	bfIndex     map[string]BitFieldID
	literalTbls []Literals
	litIndex    map[string]LiteralsID
}

func newSchemata() *Schemata {
	return &Schemata{
		Dict:        token.NewDict(),
		blockIndex:  make(map[string]BlockID),
		aliasIndex:  make(map[string]AliasID),
		bfIndex:     make(map[string]BitFieldID),
		litIndex:    make(map[string]LiteralsID),
	}
}

// FindBlockDefinition looks up a block definition by name.
func (s *Schemata) FindBlockDefinition(name string) (BlockID, bool) {
	id, ok := s.blockIndex[name]
	return id, ok
}

// GetBlockDefinition returns the block definition for id.
func (s *Schemata) GetBlockDefinition(id BlockID) *BlockDef {
	return &s.blocks[id]
}

// BlockDefinitionName returns the name of the block definition for id.
func (s *Schemata) BlockDefinitionName(id BlockID) string {
	return s.blocks[id].Name
}

func (s *Schemata) addBlock(b BlockDef) BlockID {
	id := BlockID(len(s.blocks))
	s.blocks = append(s.blocks, b)
	s.blockIndex[b.Name] = id
	return id
}

// FindAlias looks up an alias by name.
func (s *Schemata) FindAlias(name string) (AliasID, bool) {
	id, ok := s.aliasIndex[name]
	return id, ok
}

// GetAlias returns the alias definition for id.
func (s *Schemata) GetAlias(id AliasID) *Alias {
	return &s.aliases[id]
}

func (s *Schemata) addAlias(a Alias) AliasID {
	id := AliasID(len(s.aliases))
	s.aliases = append(s.aliases, a)
	s.aliasIndex[a.Name] = id
	return id
}

// FindBitField looks up a bitfield definition by name.
func (s *Schemata) FindBitField(name string) (BitFieldID, bool) {
	id, ok := s.bfIndex[name]
	return id, ok
}

// GetBitField returns the bitfield definition for id.
func (s *Schemata) GetBitField(id BitFieldID) *BitField {
	return &s.bitfields[id]
}

func (s *Schemata) addBitField(b BitField) BitFieldID {
	id := BitFieldID(len(s.bitfields))
	s.bitfields = append(s.bitfields, b)
	s.bfIndex[b.Name] = id
	return id
}

// FindLiterals looks up a literal table by name.
func (s *Schemata) FindLiterals(name string) (LiteralsID, bool) {
	id, ok := s.litIndex[name]
	return id, ok
}

// GetLiterals returns the literal table for id.
func (s *Schemata) GetLiterals(id LiteralsID) *Literals {
	return &s.literalTbls[id]
}

func (s *Schemata) addLiterals(l Literals) LiteralsID {
	id := LiteralsID(len(s.literalTbls))
	s.literalTbls = append(s.literalTbls, l)
	s.litIndex[l.Name] = id
	return id
}

// PutLiterals adds l as a new named literal table, or replaces the
// table already parsed under that name, last-wins. It exists for
// schemacfg's configuration-overlay pattern (spec.md section 4.10 in
// SPEC_FULL.md): literal tables supplied outside the schema source
// itself still need a name-addressable home in the same Schemata.
func (s *Schemata) PutLiterals(l Literals) LiteralsID {
	if id, ok := s.litIndex[l.Name]; ok {
		s.literalTbls[id] = l
		return id
	}
	return s.addLiterals(l)
}

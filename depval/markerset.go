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

package depval

import "golang.org/x/exp/slices"

// The file-link and asset-link reverse indexes are kept as sorted
// []Marker slices rather than nested maps, exactly as spec.md section
// 4.6 prescribes ("sorted/range-queryable tables... sorted merge is
// used so closure computation is O((V+E) log V)"), using
// golang.org/x/exp/slices the same way ion.Symtab keeps its sorted
// auxiliary tables in the teacher.

func insertMarkerSorted(s []Marker, m Marker) []Marker {
	i, found := slices.BinarySearch(s, m)
	if found {
		return s
	}
	return slices.Insert(s, i, m)
}

func removeMarkerSorted(s []Marker, m Marker) []Marker {
	i, found := slices.BinarySearch(s, m)
	if !found {
		return s
	}
	return slices.Delete(s, i, i+1)
}

func containsMarkerSorted(s []Marker, m Marker) bool {
	_, found := slices.BinarySearch(s, m)
	return found
}

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

import (
	"encoding/binary"

	"github.com/sneller-labs/contentval/evalctx"
	"github.com/sneller-labs/contentval/schema"
	"github.com/sneller-labs/contentval/token"
)

// CastInt64 casts a decoded primitive's raw bytes to an int64 using
// the same rules applied internally to populate a frame's local
// variable context. It is exported for blockmatch's As-typed
// navigation, which performs the identical cast over an
// already-materialized Member.
func CastInt64(data []byte, order binary.ByteOrder, cat schema.Category) (int64, bool) {
	return readInt(data, order, cat)
}

// readInt casts a decoded primitive's raw bytes to an int64, when
// the category has an integral interpretation. Float/Double have
// none, reported via the second return; Void casts to 0.
func readInt(data []byte, order binary.ByteOrder, cat schema.Category) (int64, bool) {
	switch cat {
	case schema.Bool, schema.Int8:
		if len(data) < 1 {
			return 0, false
		}
		return int64(int8(data[0])), true
	case schema.UInt8:
		if len(data) < 1 {
			return 0, false
		}
		return int64(data[0]), true
	case schema.Int16:
		if len(data) < 2 {
			return 0, false
		}
		return int64(int16(order.Uint16(data))), true
	case schema.UInt16:
		if len(data) < 2 {
			return 0, false
		}
		return int64(order.Uint16(data)), true
	case schema.Int32:
		if len(data) < 4 {
			return 0, false
		}
		return int64(int32(order.Uint32(data))), true
	case schema.UInt32:
		if len(data) < 4 {
			return 0, false
		}
		return int64(order.Uint32(data)), true
	case schema.Int64:
		if len(data) < 8 {
			return 0, false
		}
		return int64(order.Uint64(data)), true
	case schema.UInt64:
		if len(data) < 8 {
			return 0, false
		}
		return int64(order.Uint64(data)), true
	case schema.Void:
		return 0, true
	default:
		return 0, false
	}
}

// evaluateExpr runs expr against fr's three-tier resolver (locals,
// template parameters, global parameters), wrapping any evaluation
// failure in a FormatError.
func evaluateExpr(fr *frame, ec *evalctx.Context, expr token.ExprTokens) (int64, error) {
	v, err := token.Evaluate(fr.dict, expr, fr.resolve(ec))
	if err != nil {
		return 0, errf(UnknownCommand, fr.blockName, "", 0, "evaluating expression: %s", err)
	}
	return v, nil
}

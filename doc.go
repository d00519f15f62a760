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

// Package contentval ties together a small binary-schema interpreter
// and a free-threaded dependency-validation graph.
//
// token, schema and cpptok parse a C-like schema language (templated
// blocks, aliases, bitfields, literal tables, #if-conditional members)
// into a schema.Schemata. evalctx resolves and hash-conses the
// concrete types that schema produces once template parameters are
// bound. binfmt walks a raw byte buffer against a Schemata/Context
// pair as a stream of typed events; blockmatch builds the same walk
// into an indexed, queryable tree using only binfmt's public API.
//
// filemon and depval are a second, independent half: filemon adapts a
// host's file-watching primitive into an append-only per-path state
// history, and depval is a refcounted graph of opaque markers whose
// validation index is bumped through the transitive closure of file
// and asset dependencies whenever a watched file changes.
//
// schemacfg and cmd/schemadump are convenience layers built on top of
// the above: schemacfg overlays declarative YAML configuration onto a
// parsed Schemata and Context, and cmd/schemadump is a CLI that prints
// the event stream produced by walking a named block.
package contentval

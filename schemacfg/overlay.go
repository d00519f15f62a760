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

// Package schemacfg loads declarative configuration that sits
// alongside a schema source file but is not itself schema syntax:
// default bindings for global parameters, additional or overriding
// literal tables, and include search paths.
//
// This is the same "declarative file read before the real work
// starts" shape as db.Definition in the teacher pack, YAML-encoded
// via sigs.k8s.io/yaml the way db/sync.go reads table definitions.
// Nothing in the token/schema/evalctx/binfmt core depends on this
// package; it is purely a convenience a host may use.
package schemacfg

import (
	"fmt"
	"io"
	"sort"

	"sigs.k8s.io/yaml"

	"github.com/sneller-labs/contentval/evalctx"
	"github.com/sneller-labs/contentval/schema"
)

// Overlay is the parsed form of a configuration file.
type Overlay struct {
	// GlobalParams binds names applied to an evalctx.Context via
	// SetGlobalParameter, in Apply.
	GlobalParams map[string]int64 `json:"global_params,omitempty"`
	// Literals overlays named literal tables atop whatever the
	// schema source itself declared, last-wins on name collision.
	Literals map[string]map[string]int64 `json:"literals,omitempty"`
	// IncludePaths lists additional search-path roots a host's
	// schema.IncludeResolver implementation may consult; this
	// package does not interpret them itself.
	IncludePaths []string `json:"include_paths,omitempty"`
}

// Load parses an Overlay from r, which must contain YAML (or,
// incidentally, JSON, since sigs.k8s.io/yaml round-trips through
// encoding/json).
func Load(r io.Reader) (*Overlay, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("schemacfg: reading overlay: %w", err)
	}
	var o Overlay
	if err := yaml.Unmarshal(body, &o); err != nil {
		return nil, fmt.Errorf("schemacfg: parsing overlay: %w", err)
	}
	return &o, nil
}

// Apply binds every entry of o.GlobalParams onto ec.
func (o *Overlay) Apply(ec *evalctx.Context) {
	// sorted iteration only matters for deterministic log output in
	// a caller that wraps SetGlobalParameter; the bindings themselves
	// are order-independent.
	names := make([]string, 0, len(o.GlobalParams))
	for name := range o.GlobalParams {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ec.SetGlobalParameter(name, o.GlobalParams[name])
	}
}

// MergeLiterals overlays o.Literals onto s, last-wins on duplicate
// table names against whatever the schema source itself declared.
func (o *Overlay) MergeLiterals(s *schema.Schemata) {
	names := make([]string, 0, len(o.Literals))
	for name := range o.Literals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		values := o.Literals[name]
		order := make([]string, 0, len(values))
		for k := range values {
			order = append(order, k)
		}
		sort.Strings(order)
		s.PutLiterals(schema.Literals{Name: name, Order: order, Values: values})
	}
}

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

// schemadump parses a schema file, walks a named block over a data
// file, and prints the resulting event stream to stdout. It mirrors
// the shape of cmd/dump in the teacher pack: a thin flag-driven
// wrapper around a single library call, writing to a buffered
// stdout writer.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sneller-labs/contentval/binfmt"
	"github.com/sneller-labs/contentval/depval"
	"github.com/sneller-labs/contentval/evalctx"
	"github.com/sneller-labs/contentval/filemon"
	"github.com/sneller-labs/contentval/schema"
	"github.com/sneller-labs/contentval/schemacfg"
)

// dirResolver opens #include targets relative to a fixed base
// directory, the simplest possible schema.IncludeResolver / cpptok
// host a CLI can offer.
type dirResolver struct{ base string }

func (d dirResolver) Open(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(d.base, path))
}

// osHost adapts the local filesystem to filemon.Host for -deps mode:
// it does not actually watch anything (no inotify dependency in the
// example pack to ground one on) but serves GetDesc so depval can
// register real file dependencies against schemadump's own inputs.
type osHost struct{}

func (osHost) Watch(path string, callback func(path string)) error { return nil }

func (osHost) FakeChange(path string) error { return filemon.ErrFakeChangeUnsupported }

func (osHost) GetDesc(path string) (filemon.Desc, error) {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return filemon.Desc{Status: filemon.DoesNotExist}, nil
	}
	if err != nil {
		return filemon.Desc{}, err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return filemon.Desc{}, err
	}
	return filemon.Desc{Status: filemon.Normal, ModTime: fi.ModTime(), Size: fi.Size(), Body: body}, nil
}

func main() {
	schemaPath := flag.String("schema", "", "path to the .schema source file")
	blockName := flag.String("block", "", "name of the top-level block to walk")
	cfgPath := flag.String("cfg", "", "optional schemacfg overlay (YAML)")
	compressed := flag.Bool("z", false, "treat the data file as a zstd-compressed frame")
	useMmap := flag.Bool("mmap", false, "map the data file into memory read-only instead of reading it")
	trackDeps := flag.Bool("deps", false, "register schema/data inputs with a dependency graph and print its stats")
	flag.Parse()

	if *schemaPath == "" || *blockName == "" {
		fmt.Fprintln(os.Stderr, "usage: schemadump -schema FILE -block NAME [-cfg FILE] [-z] [-deps] DATAFILE")
		os.Exit(2)
	}
	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "schemadump: exactly one data file argument is required")
		os.Exit(2)
	}
	dataPath := args[0]

	schemaSrc, err := os.ReadFile(*schemaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schemadump: %s\n", err)
		os.Exit(1)
	}
	resolver := dirResolver{base: filepath.Dir(*schemaPath)}
	s, includes, err := schema.Parse(filepath.Base(*schemaPath), schemaSrc, resolver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schemadump: parsing %s: %s\n", *schemaPath, err)
		os.Exit(1)
	}

	ec := evalctx.New(s)
	if *cfgPath != "" {
		f, err := os.Open(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "schemadump: %s\n", err)
			os.Exit(1)
		}
		overlay, err := schemacfg.Load(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "schemadump: %s\n", err)
			os.Exit(1)
		}
		overlay.Apply(ec)
		overlay.MergeLiterals(s)
	}

	var g *depval.Graph
	var marker depval.Marker
	if *trackDeps {
		g = depval.NewGraph(osHost{})
		marker = g.Make()
		if err := g.RegisterFileDependency(marker, *schemaPath); err != nil {
			fmt.Fprintf(os.Stderr, "schemadump: %s\n", err)
			os.Exit(1)
		}
		for _, inc := range includes {
			if err := g.RegisterFileDependency(marker, filepath.Join(resolver.base, inc)); err != nil {
				fmt.Fprintf(os.Stderr, "schemadump: %s\n", err)
				os.Exit(1)
			}
		}
		if err := g.RegisterFileDependency(marker, dataPath); err != nil {
			fmt.Fprintf(os.Stderr, "schemadump: %s\n", err)
			os.Exit(1)
		}
	}

	var f *binfmt.Formatter
	if *useMmap {
		var closeMmap func() error
		f, closeMmap, err = binfmt.OpenMmap(dataPath, ec, s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "schemadump: %s\n", err)
			os.Exit(1)
		}
		defer closeMmap()
	} else if *compressed {
		in, err := os.Open(dataPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "schemadump: %s\n", err)
			os.Exit(1)
		}
		defer in.Close()
		f, err = binfmt.OpenCompressed(in, ec, s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "schemadump: %s\n", err)
			os.Exit(1)
		}
	} else {
		buf, err := os.ReadFile(dataPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "schemadump: %s\n", err)
			os.Exit(1)
		}
		f = binfmt.Open(buf, ec, s)
	}

	if err := f.PushPattern(*blockName, nil); err != nil {
		fmt.Fprintf(os.Stderr, "schemadump: %s\n", err)
		os.Exit(1)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	depth := 0
	for {
		switch f.PeekNext() {
		case binfmt.None:
			if f.Err() != nil {
				fmt.Fprintf(os.Stderr, "schemadump: %s\n", f.Err())
				os.Exit(1)
			}
			if *trackDeps {
				st := g.Stats()
				fmt.Fprintf(out, "# deps: markers=%d files=%d assets=%d\n", st.LiveMarkers, st.FileLinks, st.AssetLinks)
			}
			return
		case binfmt.EndBlock:
			f.TryEndBlock()
			depth--
		case binfmt.EndArray:
			f.TryEndArray()
			fmt.Fprintf(out, "%s]\n", strings.Repeat("  ", depth))
			depth--
		case binfmt.BeginBlock:
			id, _ := f.TryBeginBlock()
			fmt.Fprintf(out, "%s%s {\n", strings.Repeat("  ", depth), ec.TypeString(id))
			depth++
		case binfmt.ValueMember:
			v, ok := f.TryValue()
			if !ok {
				fmt.Fprintf(out, "%s<skip>\n", strings.Repeat("  ", depth))
				continue
			}
			printValue(out, depth, "", v, ec)
		case binfmt.KeyedItem:
			name, _ := f.TryKeyedItem()
			if id, ok := f.TryBeginBlock(); ok {
				fmt.Fprintf(out, "%s%s %s {\n", strings.Repeat("  ", depth), ec.TypeString(id), name)
				depth++
				continue
			}
			if count, id, ok := f.TryBeginArray(); ok {
				fmt.Fprintf(out, "%s%s %s[%d] [\n", strings.Repeat("  ", depth), ec.TypeString(id), name, count)
				depth++
				continue
			}
			v, ok := f.TryValue()
			if !ok {
				fmt.Fprintf(out, "%s%s: <skip>\n", strings.Repeat("  ", depth), name)
				continue
			}
			printValue(out, depth, name, v, ec)
		}
	}
}

// printValue renders one scalar as "TypeName name = value".
func printValue(out *bufio.Writer, depth int, name string, v binfmt.Value, ec *evalctx.Context) {
	indent := strings.Repeat("  ", depth)
	typeName := ec.TypeString(v.TypeID)
	var rendered string
	switch {
	case v.Desc.Hint == schema.StringHint:
		rendered = fmt.Sprintf("%q", string(v.Data))
	default:
		if n, ok := binfmt.CastInt64(v.Data, ec.ByteOrder, v.Desc.Category); ok {
			rendered = strconv.FormatInt(n, 10)
		} else {
			rendered = fmt.Sprintf("<%d bytes>", len(v.Data))
		}
	}
	if name != "" {
		fmt.Fprintf(out, "%s%s %s = %s\n", indent, typeName, name, rendered)
	} else {
		fmt.Fprintf(out, "%s%s = %s\n", indent, typeName, rendered)
	}
}

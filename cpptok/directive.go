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

package cpptok

import "strings"

// handleDirective consumes a '#...' directive line starting at the
// current position and updates the condition stack (or the include
// stack, for #include). It returns true once it has consumed a
// directive (the caller should loop back to Next). An unrecognized
// directive word, or a malformed directive, is returned as an error
// (a *DirectiveError, or an *IncludeError for a failed #include).
func (l *Lexer) handleDirective() (bool, error) {
	f := l.top()
	start := f.pos
	line := l.restOfLine()
	word, rest := splitWord(line)
	switch word {
	case "if":
		l.condStack = append(l.condStack, condFrame{positive: strings.TrimSpace(rest)})
	case "ifdef":
		name := strings.TrimSpace(rest)
		l.condStack = append(l.condStack, condFrame{positive: "defined(" + name + ")"})
	case "ifndef":
		name := strings.TrimSpace(rest)
		l.condStack = append(l.condStack, condFrame{positive: "!defined(" + name + ")"})
	case "elif":
		if len(l.condStack) == 0 {
			return false, &DirectiveError{File: f.name, Offset: start, Msg: "#elif without matching #if"}
		}
		top := &l.condStack[len(l.condStack)-1]
		if top.sawElse {
			return false, &DirectiveError{File: f.name, Offset: start, Msg: "#elif after #else"}
		}
		cond := strings.TrimSpace(rest)
		combinedNeg := orJoin(top.negative, top.positive)
		top.negative = combinedNeg
		top.positive = cond
	case "else":
		if len(l.condStack) == 0 {
			return false, &DirectiveError{File: f.name, Offset: start, Msg: "#else without matching #if"}
		}
		top := &l.condStack[len(l.condStack)-1]
		if top.sawElse {
			return false, &DirectiveError{File: f.name, Offset: start, Msg: "duplicate #else"}
		}
		combinedNeg := orJoin(top.negative, top.positive)
		top.negative = combinedNeg
		if combinedNeg == "" {
			top.positive = "1"
		} else {
			top.positive = "!(" + combinedNeg + ")"
		}
		top.sawElse = true
	case "endif":
		if len(l.condStack) == 0 {
			return false, &DirectiveError{File: f.name, Offset: start, Msg: "#endif without matching #if"}
		}
		l.condStack = l.condStack[:len(l.condStack)-1]
	case "include":
		path, err := parseIncludePath(rest)
		if err != nil {
			return false, &DirectiveError{File: f.name, Offset: start, Msg: err.Error()}
		}
		if l.resolver == nil {
			return false, &DirectiveError{File: f.name, Offset: start, Msg: "#include used with no include resolver configured"}
		}
		body, err := l.resolver.Open(path)
		if err != nil {
			return false, &IncludeError{File: f.name, Path: path, Err: err}
		}
		l.Includes = append(l.Includes, path)
		l.files = append(l.files, fileState{name: path, src: stripBOM(body)})
	default:
		return false, &DirectiveError{File: f.name, Offset: start, Msg: "unrecognized preprocessor directive '#" + word + "'"}
	}
	return true, nil
}

// restOfLine consumes (but does not return the '#' itself) the
// remainder of the current logical line, honoring backslash-newline
// continuations, and advances the cursor past it including the
// terminating newline.
func (l *Lexer) restOfLine() string {
	f := l.top()
	f.pos++ // consume '#'
	start := f.pos
	var sb strings.Builder
	for f.pos < len(f.src) {
		c := f.src[f.pos]
		if c == '\\' && f.pos+1 < len(f.src) && f.src[f.pos+1] == '\n' {
			sb.WriteByte(' ')
			f.pos += 2
			continue
		}
		if c == '\n' {
			f.pos++
			break
		}
		sb.WriteByte(c)
		f.pos++
	}
	_ = start
	return sb.String()
}

func splitWord(s string) (word, rest string) {
	s = strings.TrimLeft(s, " \t")
	i := 0
	for i < len(s) && (isIdentByte(s[i])) {
		i++
	}
	return s[:i], s[i:]
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func orJoin(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return "(" + a + ") || (" + b + ")"
}

func parseIncludePath(rest string) (string, error) {
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 {
		return "", errInvalidInclude
	}
	open, close := byte('"'), byte('"')
	if rest[0] == '<' {
		open, close = '<', '>'
	} else if rest[0] != '"' {
		return "", errInvalidInclude
	}
	if rest[0] != open || rest[len(rest)-1] != close {
		return "", errInvalidInclude
	}
	return rest[1 : len(rest)-1], nil
}

var errInvalidInclude = &DirectiveError{Msg: `expected #include "path" or #include <path>`}

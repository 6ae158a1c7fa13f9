// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"strings"
	"unicode"
)

// scrubString turns punctuation into separators and collapses whitespace.
// Hyphens and underscores are kept since tags use them.
func scrubString(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return r
		}
		if unicode.IsPunct(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// repairJSON turns a model reply into something encoding/json can read. It
// drops markdown fences and prose around the outermost object, quotes bare
// or half-quoted keys and removes trailing commas.
func repairJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	if start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); start >= 0 && end > start {
		s = s[start : end+1]
	}
	return dropTrailingCommas(quoteKeys(s))
}

// quoteKeys fixes `{key": 1}` and `{key: 1}`. String contents are left alone.
func quoteKeys(s string) string {
	in := []rune(s)
	var out strings.Builder
	out.Grow(len(s) + 16)

	inString := false
	for i := 0; i < len(in); i++ {
		ch := in[i]
		out.WriteRune(ch)

		if inString {
			switch ch {
			case '\\':
				if i+1 < len(in) {
					i++
					out.WriteRune(in[i])
				}
			case '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			continue
		}
		if ch != '{' && ch != ',' {
			continue
		}

		j := i + 1
		for j < len(in) && unicode.IsSpace(in[j]) {
			j++
		}
		k := j
		for k < len(in) && isKeyRune(in[k]) {
			k++
		}
		if k == j {
			continue
		}
		key := string(in[j:k])
		switch {
		case k+1 < len(in) && in[k] == '"' && in[k+1] == ':':
			out.WriteString(string(in[i+1 : j]))
			out.WriteString(`"` + key + `"`)
			i = k
		case nextNonSpace(in, k) == ':':
			out.WriteString(string(in[i+1 : j]))
			out.WriteString(`"` + key + `"`)
			i = k - 1
		}
	}
	return out.String()
}

// dropTrailingCommas removes commas directly before a closing bracket.
func dropTrailingCommas(s string) string {
	in := []rune(s)
	var out strings.Builder
	out.Grow(len(s))

	inString := false
	for i := 0; i < len(in); i++ {
		ch := in[i]
		if inString {
			out.WriteRune(ch)
			switch ch {
			case '\\':
				if i+1 < len(in) {
					i++
					out.WriteRune(in[i])
				}
			case '"':
				inString = false
			}
			continue
		}
		if ch == ',' {
			if next := nextNonSpace(in, i+1); next == '}' || next == ']' {
				continue
			}
		}
		if ch == '"' {
			inString = true
		}
		out.WriteRune(ch)
	}
	return out.String()
}

func nextNonSpace(in []rune, from int) rune {
	for i := from; i < len(in); i++ {
		if !unicode.IsSpace(in[i]) {
			return in[i]
		}
	}
	return 0
}

func isKeyRune(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

package analyzer

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/gnames/gmlas/pkg/model"
)

// MinIdentifierMaxLength is the smallest accepted identifier length limit.
const MinIdentifierMaxLength = 10

// TruncateIdentifier shortens name to maxLen characters. Underscore and
// camelCase separated parts are shortened one character at a time,
// starting with the longest one, so that every part keeps a recognizable
// start. The last part is kept intact unless it is much longer than the
// others.
func TruncateIdentifier(name string, maxLen int) string {
	extra := len(name) - maxLen
	if extra <= 0 {
		return name
	}

	var tokens []string
	var delims []bool
	for j, tok := range strings.Split(name, "_") {
		parts, ok := camelParts(tok)
		if !ok {
			parts = []string{tok}
		}
		for k, p := range parts {
			delims = append(delims, j > 0 && k == 0)
			tokens = append(tokens, p)
		}
	}

	last := len(tokens) - 1
	if last == 0 {
		if len(tokens[0]) > extra {
			tokens[0] = tokens[0][:len(tokens[0])-extra]
			extra = 0
		}
	} else {
		for extra > 0 {
			longest := 0
			for j := 1; j < last; j++ {
				if len(tokens[j]) > len(tokens[longest]) {
					longest = j
				}
			}
			size := len(tokens[longest])
			if len(tokens[last]) > 2*size {
				tokens[last] = tokens[last][:len(tokens[last])-1]
			} else if size > 1 {
				tokens[longest] = tokens[longest][:size-1]
			} else {
				break
			}
			extra--
		}
	}

	var sb strings.Builder
	for j, tok := range tokens {
		if delims[j] {
			sb.WriteByte('_')
		}
		sb.WriteString(tok)
	}
	res := sb.String()
	if extra > 0 && extra < len(res) {
		res = res[extra:]
	}
	return res
}

// camelParts splits camelCase or CamelCase tokens. Tokens with two
// consecutive upper case letters are not split.
func camelParts(tok string) ([]string, bool) {
	if len(tok) < 2 || !isLower(tok[1]) {
		return nil, false
	}
	var res []string
	lastIsLower := true
	cur := tok[:2]
	for k := 2; k < len(tok); k++ {
		c := tok[k]
		if isUpper(c) {
			if !lastIsLower {
				return nil, false
			}
			res = append(res, cur)
			cur = ""
			lastIsLower = false
		} else {
			lastIsLower = true
		}
		cur += string(c)
	}
	if cur != "" {
		res = append(res, cur)
	}
	return res, true
}

func isLower(c byte) bool { return c >= 'a' && c <= 'z' }
func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

// AddSerialNumber appends occurrence number i (1-based) of n to name,
// zero-padded to the width of n. With a length limit the name is shortened
// when the suffix would not fit.
func AddSerialNumber(name string, i, n, maxLen int) string {
	digits := 3
	switch {
	case n < 10:
		digits = 1
	case n < 100:
		digits = 2
	}
	suffix := fmt.Sprintf("%0*d", digits, i)
	if maxLen >= MinIdentifierMaxLength && len(name)+digits > maxLen {
		cut := max(maxLen-digits, 0)
		if cut < len(name) {
			name = name[:cut]
		}
	}
	return name + suffix
}

// LaunderPG lowercases name and replaces characters other than letters,
// digits and underscore.
func LaunderPG(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '_':
			return r
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return '_'
		}
	}, name)
}

func (a *Analyzer) dedupKey(name string) string {
	if a.cfg.CaseInsensitiveIdentifier {
		return strings.ToUpper(name)
	}
	return name
}

func (a *Analyzer) hasMaxLength() bool {
	return a.cfg.IdentifierMaxLength >= MinIdentifierMaxLength
}

// launderFieldNames makes names of regular fields unique within a class,
// first by qualifying them with their namespace prefix or an _attr suffix,
// then by numbering.
func (a *Analyzer) launderFieldNames(fc *model.FeatureClass) {
	fields := fc.Fields
	classNS := NamespaceOfLastStep(fc.XPath)

	for renamed := true; renamed; {
		renamed = false
		groups := regularGroups(fields, func(s string) string { return s })
		for _, name := range slices.Sorted(maps.Keys(groups)) {
			idx := groups[name]
			if len(idx) < 2 {
				continue
			}
			done := false
			for _, i := range idx {
				f := &fields[i]
				ns := NamespaceOfLastStep(f.XPath)
				if ns != "" && ns != classNS &&
					!strings.HasPrefix(f.Name, ns+"_") {
					f.Name = ns + "_" + f.Name
					done = true
					break
				}
				if ns == "" && strings.Contains(f.XPath, "@") &&
					!strings.Contains(f.Name, "_attr") {
					f.Name += "_attr"
					done = true
					break
				}
			}
			if !done {
				for k, i := range idx[1:] {
					fields[i].Name = fmt.Sprintf("%s%d", fields[i].Name, k+2)
				}
			}
			renamed = true
		}
	}

	for i := range fields {
		if a.hasMaxLength() && len(fields[i].Name) > a.cfg.IdentifierMaxLength {
			fields[i].Name = TruncateIdentifier(
				fields[i].Name, a.cfg.IdentifierMaxLength,
			)
		}
		if a.cfg.PGIdentifierLaundering {
			fields[i].Name = LaunderPG(fields[i].Name)
		}
	}

	groups := regularGroups(fields, a.dedupKey)
	for _, name := range slices.Sorted(maps.Keys(groups)) {
		idx := groups[name]
		if len(idx) < 2 {
			continue
		}
		for k, i := range idx {
			fields[i].Name = AddSerialNumber(
				fields[i].Name, k+1, len(idx), a.cfg.IdentifierMaxLength,
			)
		}
	}

	for _, v := range fc.Nested {
		a.launderFieldNames(v)
	}
}

func regularGroups(
	fields []model.Field,
	key func(string) string,
) map[string][]int {
	res := make(map[string][]int)
	for i := range fields {
		if fields[i].Category == model.Regular {
			k := key(fields[i].Name)
			res[k] = append(res[k], i)
		}
	}
	return res
}

// launderClassNames truncates class names and numbers duplicates across
// the whole class tree.
func (a *Analyzer) launderClassNames() {
	var all []*model.FeatureClass
	for _, v := range a.classes {
		v.Walk(func(fc *model.FeatureClass) { all = append(all, fc) })
	}

	groups := make(map[string][]int)
	for i, fc := range all {
		if a.hasMaxLength() && len(fc.Name) > a.cfg.IdentifierMaxLength {
			fc.Name = TruncateIdentifier(fc.Name, a.cfg.IdentifierMaxLength)
		}
		if a.cfg.PGIdentifierLaundering {
			fc.Name = LaunderPG(fc.Name)
		}
		k := a.dedupKey(fc.Name)
		groups[k] = append(groups[k], i)
	}

	for _, name := range slices.Sorted(maps.Keys(groups)) {
		idx := groups[name]
		if len(idx) < 2 {
			continue
		}
		for k, i := range idx {
			all[i].Name = AddSerialNumber(
				all[i].Name, k+1, len(idx), a.cfg.IdentifierMaxLength,
			)
		}
	}
}

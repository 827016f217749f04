package selection

import (
	"fmt"
	"strings"

	language "github.com/hanpama/rsgate/internal/language"
)

// printFieldSet prints each top-level selection on its own line in compact
// single-line form, e.g. `... on User { id friends(first: 2) { name } }`.
func printFieldSet(ss language.SelectionSet) string {
	lines := make([]string, 0, len(ss))
	for _, sel := range ss {
		var b strings.Builder
		writeSelection(&b, sel)
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func writeSelection(b *strings.Builder, sel language.Selection) {
	switch sel := sel.(type) {
	case *language.Field:
		if sel.Alias != "" && sel.Alias != sel.Name {
			b.WriteString(sel.Alias)
			b.WriteString(": ")
		}
		b.WriteString(sel.Name)
		if len(sel.Arguments) > 0 {
			b.WriteByte('(')
			for i, arg := range sel.Arguments {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(arg.Name)
				b.WriteString(": ")
				writeValue(b, arg.Value)
			}
			b.WriteByte(')')
		}
		writeDirectives(b, sel.Directives)
		writeSelectionSet(b, sel.SelectionSet)
	case *language.InlineFragment:
		b.WriteString("...")
		if sel.TypeCondition != "" {
			b.WriteString(" on ")
			b.WriteString(sel.TypeCondition)
		}
		writeDirectives(b, sel.Directives)
		writeSelectionSet(b, sel.SelectionSet)
	case *language.FragmentSpread:
		b.WriteString("...")
		b.WriteString(sel.Name)
		writeDirectives(b, sel.Directives)
	}
}

func writeSelectionSet(b *strings.Builder, ss language.SelectionSet) {
	if len(ss) == 0 {
		return
	}
	b.WriteString(" {")
	for _, sel := range ss {
		b.WriteByte(' ')
		writeSelection(b, sel)
	}
	b.WriteString(" }")
}

func writeDirectives(b *strings.Builder, directives language.DirectiveList) {
	for _, d := range directives {
		b.WriteString(" @")
		b.WriteString(d.Name)
		if len(d.Arguments) == 0 {
			continue
		}
		b.WriteByte('(')
		for i, arg := range d.Arguments {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(arg.Name)
			b.WriteString(": ")
			writeValue(b, arg.Value)
		}
		b.WriteByte(')')
	}
}

func writeValue(b *strings.Builder, v *language.Value) {
	if v == nil {
		b.WriteString("null")
		return
	}
	switch v.Kind {
	case language.Variable:
		b.WriteByte('$')
		b.WriteString(v.Raw)
	case language.StringValue, language.BlockValue:
		writeString(b, v.Raw)
	case language.NullValue:
		b.WriteString("null")
	case language.ListValue:
		b.WriteByte('[')
		for i, child := range v.Children {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, child.Value)
		}
		b.WriteByte(']')
	case language.ObjectValue:
		b.WriteByte('{')
		for i, child := range v.Children {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(child.Name)
			b.WriteString(": ")
			writeValue(b, child.Value)
		}
		b.WriteByte('}')
	default:
		b.WriteString(v.Raw)
	}
}

// writeString writes s as a GraphQL string literal.
func writeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}

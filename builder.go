package kin

import (
	"strings"

	"github.com/syssam/kin/dialect"
)

// builder assembles one parameterized statement. Identifier quoting and
// placeholder punctuation go through the dialect; the builder itself never
// hardcodes either. Compilation is side-effect free: builders are created
// per Compile call and discarded.
type builder struct {
	d    dialect.Dialect
	sb   strings.Builder
	args []any
}

func newBuilder(d dialect.Dialect) *builder {
	return &builder{d: d}
}

// raw appends literal SQL text.
func (b *builder) raw(s string) *builder {
	b.sb.WriteString(s)
	return b
}

// ident appends a quoted identifier. Dotted table.column identifiers are
// quoted per part.
func (b *builder) ident(name string) *builder {
	b.sb.WriteString(b.d.Quote(name))
	return b
}

// arg appends the next positional placeholder and records its value.
func (b *builder) arg(v any) *builder {
	b.args = append(b.args, v)
	b.sb.WriteString(b.d.Placeholder(len(b.args)))
	return b
}

// fragment appends a caller-supplied condition, rewriting each ? to the
// dialect's positional placeholder. Question marks inside string literals
// are not distinguished; conditions must keep values in args.
func (b *builder) fragment(cond string, args ...any) *builder {
	n := 0
	for {
		i := strings.IndexByte(cond, '?')
		if i < 0 {
			b.sb.WriteString(cond)
			break
		}
		b.sb.WriteString(cond[:i])
		if n < len(args) {
			b.arg(args[n])
			n++
		} else {
			// More markers than args; keep the marker so the driver
			// reports the mismatch instead of silently dropping it.
			b.sb.WriteByte('?')
		}
		cond = cond[i+1:]
	}
	return b
}

// String returns the assembled SQL.
func (b *builder) String() string {
	return b.sb.String()
}

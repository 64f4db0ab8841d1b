package hdconf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Write renders the children of root in libconfig syntax.
func Write(w io.Writer, root *Setting) error {
	bw := bufio.NewWriter(w)
	for _, s := range root.Children {
		if err := writeSetting(bw, s, 0); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Write renders the document.
func (d *Document) Write(w io.Writer) error {
	return Write(w, d.Root)
}

func writeSetting(w *bufio.Writer, s *Setting, depth int) error {
	if s.Name == "" {
		return fmt.Errorf("hdconf: unnamed setting inside group")
	}
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s = ", indent, s.Name)
	if err := writeValue(w, s, depth); err != nil {
		return err
	}
	_, err := w.WriteString(";\n")
	return err
}

func writeValue(w *bufio.Writer, s *Setting, depth int) error {
	switch s.Kind {
	case KindGroup:
		w.WriteString("{\n")
		for _, c := range s.Children {
			if err := writeSetting(w, c, depth+1); err != nil {
				return err
			}
		}
		w.WriteString(strings.Repeat("  ", depth) + "}")
	case KindArray, KindList:
		opening, closing := "[ ", " ]"
		if s.Kind == KindList {
			opening, closing = "( ", " )"
		}
		w.WriteString(opening)
		for i, c := range s.Children {
			if i > 0 {
				w.WriteString(", ")
			}
			if err := writeValue(w, c, depth+1); err != nil {
				return err
			}
		}
		w.WriteString(closing)
	case KindInt, KindInt64:
		suffix := ""
		if s.Kind == KindInt64 {
			suffix = "L"
		}
		if s.Format == FormatHex && s.Int >= 0 {
			fmt.Fprintf(w, "0x%X%s", s.Int, suffix)
		} else {
			fmt.Fprintf(w, "%d%s", s.Int, suffix)
		}
	case KindFloat:
		f := strconv.FormatFloat(s.Float, 'g', -1, 64)
		if !strings.ContainsAny(f, ".eE") {
			f += ".0"
		}
		w.WriteString(f)
	case KindBool:
		w.WriteString(strconv.FormatBool(s.Bool))
	case KindString:
		w.WriteString(quote(s.Str))
	default:
		return fmt.Errorf("hdconf: cannot write setting %q of kind %s", s.Name, s.Kind)
	}
	return nil
}

func quote(v string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			if c < 0x20 {
				fmt.Fprintf(&sb, `\x%02X`, c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/stream"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Printer renders results for humans on a terminal and as JSON lines otherwise.
type Printer struct {
	w    io.Writer
	out  *termenv.Output
	json bool
}

// NewPrinter writes to w. JSON is used when forced or when w is not a terminal.
func NewPrinter(w io.Writer, forceJSON bool) *Printer {
	return &Printer{
		w:    w,
		out:  termenv.NewOutput(w),
		json: forceJSON || !isTerminal(w),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// JSON reports whether the printer emits JSON.
func (p *Printer) JSON() bool {
	return p.json
}

// Outcome prints the result of a one-shot request.
func (p *Printer) Outcome(o domain.Outcome) error {
	if p.json {
		return p.encode(o)
	}
	if err := o.Err(); err != nil {
		_, werr := fmt.Fprintf(p.w, "%s %s\n", p.out.String("✗").Foreground(p.out.Color("1")), err)
		return werr
	}
	mark := p.out.String("✓").Foreground(p.out.Color("2"))
	var b strings.Builder
	switch v := o.Value().(type) {
	case domain.NetworkResponse:
		fmt.Fprintf(&b, "%s %d\n", mark, v.StatusCode)
		for _, h := range v.Headers {
			fmt.Fprintf(&b, "%s %s\n", p.out.String(h.Name+":").Faint(), h.Value)
		}
		b.WriteString(printable(v.Body))
	case domain.FileReadResponse:
		if !v.Exists {
			fmt.Fprintf(&b, "%s %s does not exist\n", mark, v.Path)
		} else {
			b.WriteString(printable(v.Contents))
		}
	case domain.FileWriteResponse:
		fmt.Fprintf(&b, "%s %s\n", mark, v.Status)
	default:
		fmt.Fprintf(&b, "%s %v\n", mark, v)
	}
	_, err := io.WriteString(p.w, b.String())
	return err
}

// Value prints one value delivered by a subscription.
func (p *Printer) Value(v any) error {
	if p.json {
		return p.encode(v)
	}
	_, err := fmt.Fprintf(p.w, "%s %v\n", p.out.String("»").Foreground(p.out.Color("4")), v)
	return err
}

// Subscriptions prints a subscription listing.
func (p *Printer) Subscriptions(infos []stream.Info) error {
	if p.json {
		return p.encode(infos)
	}
	for _, info := range infos {
		state := p.out.String(info.State.String())
		if info.State.Live() {
			state = state.Foreground(p.out.Color("2"))
		} else {
			state = state.Faint()
		}
		if _, err := fmt.Fprintf(p.w, "%s  %-12s %s delivered=%d suppressed=%d\n",
			info.ID, info.Name, state, info.Delivered, info.Suppressed); err != nil {
			return err
		}
	}
	return nil
}

// Message prints a system line (">>> ...") in human mode. JSON mode stays silent.
func (p *Printer) Message(format string, args ...any) {
	if p.json {
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.out.String(">>>").Faint(), fmt.Sprintf(format, args...))
}

func (p *Printer) encode(v any) error {
	return json.NewEncoder(p.w).Encode(v)
}

func printable(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	s := string(b)
	if !utf8.ValidString(s) {
		return fmt.Sprintf("<%d bytes of binary data>\n", len(b))
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}

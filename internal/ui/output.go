package ui

import (
	"fmt"
	"io"
	"os"
)

// Out and ErrOut receive CLI status lines.
var (
	Out    io.Writer = os.Stdout
	ErrOut io.Writer = os.Stderr
)

func OK(msg string) {
	t := Current()
	fmt.Fprintln(Out, t.Success.Render(t.SymOK+" "+msg))
}

func Fail(msg string) {
	t := Current()
	fmt.Fprintln(ErrOut, t.Error.Render(t.SymFail+" "+msg))
}

// Hint prints a muted follow-up line to stderr.
func Hint(msg string) {
	fmt.Fprintln(ErrOut, Current().Muted.Render(msg))
}

// Package prompt decides whether an existing download destination may be
// replaced.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Question is printed before every answer is read.
const Question = "Dest already exists. Do you want to overwrite?\ny(yes) or n(no) "

// Confirmer answers overwrite questions.
type Confirmer interface {
	ConfirmOverwrite(ctx context.Context, dest string) (bool, error)
}

// Ask reads the answer from the terminal, asking again until it gets one of
// y, yes, n or no. In must be the reader the command loop uses, so buffered
// input is not lost.
type Ask struct {
	In  *bufio.Reader
	Out io.Writer
}

// ConfirmOverwrite implements Confirmer.
func (a *Ask) ConfirmOverwrite(ctx context.Context, dest string) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprint(a.Out, Question)

		line, err := a.In.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("overwrite %s: %w", dest, err)
		}
	}
}

// Always overwrites without asking.
type Always struct{}

// ConfirmOverwrite implements Confirmer.
func (Always) ConfirmOverwrite(context.Context, string) (bool, error) { return true, nil }

// Never keeps every existing destination.
type Never struct{}

// ConfirmOverwrite implements Confirmer.
func (Never) ConfirmOverwrite(context.Context, string) (bool, error) { return false, nil }

// ForPolicy returns the Confirmer for an overwrite policy name. Unknown
// names ask.
func ForPolicy(policy string, in *bufio.Reader, out io.Writer) Confirmer {
	switch policy {
	case "always":
		return Always{}
	case "never":
		return Never{}
	default:
		return &Ask{In: in, Out: out}
	}
}

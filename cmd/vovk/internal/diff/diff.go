// Package diff implements "vovk diff": print the change report between two
// schema files.
package diff

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/finom/vovk/schema"
)

// ErrChanged is returned with --exit-code when the documents differ.
var ErrChanged = errors.New("schema changed")

type Cmd struct {
	Previous string `arg:"" help:"Previous schema file." type:"existingfile"`
	Next     string `arg:"" help:"Next schema file." type:"existingfile"`
	ExitCode bool   `help:"Exit with an error status when the files differ." name:"exit-code"`

	Out io.Writer `kong:"-"`
}

func (c *Cmd) Run() error {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	res, err := Files(c.Previous, c.Next)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, res)
	if c.ExitCode && !res.IsEmpty() {
		return ErrChanged
	}
	return nil
}

// Files parses both schema files and diffs them.
func Files(previous, next string) (*schema.DiffResult, error) {
	prev, err := readDocument(previous)
	if err != nil {
		return nil, err
	}
	nxt, err := readDocument(next)
	if err != nil {
		return nil, err
	}
	return schema.Diff(prev, nxt), nil
}

func readDocument(path string) (*schema.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := schema.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

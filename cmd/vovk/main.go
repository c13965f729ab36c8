package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/finom/vovk/cmd/vovk/internal/app"
	"github.com/finom/vovk/cmd/vovk/internal/diff"
	"github.com/finom/vovk/cmd/vovk/internal/ensure"
	"github.com/finom/vovk/cmd/vovk/internal/gen"
)

type CLI struct {
	app.Globals

	Version VersionCmd `cmd:"" help:"Print version information."`
	Gen     gen.Cmd    `cmd:"" help:"Generate the client modules from the schema directory."`
	Ensure  ensure.Cmd `cmd:"" help:"Reconcile the schema directory with the active segments."`
	Diff    diff.Cmd   `cmd:"" help:"Print the changes between two schema files."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("vovk"),
		kong.Description("Vovk CLI for schema maintenance and client generation."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

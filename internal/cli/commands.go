package cli

import "github.com/alecthomas/kong"

var (
	Version   = "dev"
	CommitSHA = ""
)

// Globals defines global flags available to all commands.
type Globals struct {
	Version kong.VersionFlag `help:"Print version and exit."`
}

type Commands struct {
	Globals

	Calc  CalcCmd  `cmd:"" help:"Resolve dates and compute totals of one document without rendering."`
	Build BuildCmd `cmd:"" help:"Compute and render documents to PDF once."`
	Serve ServeCmd `cmd:"" help:"Watch the documents directory and serve the live preview." default:"1"`
}

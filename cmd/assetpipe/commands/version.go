package commands

import (
	"fmt"

	"git.home.luguber.info/inful/assetpipe/internal/version"
)

// VersionCmd prints build information.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Global) error {
	_, err := fmt.Fprintln(g.out(), version.String())
	return err
}

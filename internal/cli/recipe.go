package cli

import (
	"context"
	"os"

	"github.com/cruciblehq/cruxslim/internal/settings"
	"github.com/cruciblehq/cruxslim/internal/slim"
)

// Represents the 'cruxslim recipe' command.
type RecipeCmd struct {
	Image   string `arg:"" help:"Image reference or path to an OCI archive."`
	Base    string `help:"Base image reference. Defaults to the image's base annotation." placeholder:"REF"`
	Slimmed bool   `name:"slim" help:"Print the recipe as rewritten for the slimmed image."`
}

// Executes the recipe command.
func (c *RecipeCmd) Run(ctx context.Context, s *settings.Settings) error {
	rt, err := openRuntime(s)
	if err != nil {
		return err
	}
	defer rt.Close()

	r, err := slim.DeriveRecipe(ctx, rt, c.Image, c.Base)
	if err != nil {
		return err
	}
	if c.Slimmed {
		r = r.Slim(slim.DeltaArchive)
	}

	return r.Render(os.Stdout)
}

package slim

import (
	"context"
	"fmt"

	containerd "github.com/containerd/containerd/v2/client"

	"github.com/cruciblehq/cruxslim/internal/recipe"
	"github.com/cruciblehq/cruxslim/internal/runtime"
)

// Derives the recipe of an image from its history.
//
// The base image is taken from base when given, otherwise from the image's
// base name annotation. The history inherited from the base image is left
// out of the recipe. Returns [recipe.ErrNoBase] when no base can be told.
func DeriveRecipe(ctx context.Context, rt *runtime.Runtime, ref, base string) (*recipe.Recipe, error) {
	ref, err := NormalizeReference(ref)
	if err != nil {
		return nil, err
	}

	ctx, done, err := rt.WithLease(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSlim, err)
	}
	defer done(context.WithoutCancel(ctx))

	image, err := rt.Image(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSlim, err)
	}
	ic, err := rt.ReadImage(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSlim, err)
	}

	from, err := identifyBase(base, ic)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSlim, ref, err)
	}

	baseImage, err := rt.Image(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSlim, err)
	}

	return deriveRecipe(ctx, rt, ic, from, baseImage)
}

// Returns the normalized reference of an image's base image.
//
// A draft recipe is derived with the base hint as its FROM line; the base
// is whatever that recipe names.
func identifyBase(explicit string, ic *runtime.ImageContent) (string, error) {
	draft := recipe.FromImage(ic.Config, recipe.HistoryOptions{From: baseHint(explicit, ic)})
	from, err := draft.BaseImage()
	if err != nil {
		return "", err
	}
	return NormalizeReference(from)
}

// Derives a recipe against a resolved base image, skipping the history
// inherited from it.
func deriveRecipe(ctx context.Context, rt *runtime.Runtime, ic *runtime.ImageContent, from string, base containerd.Image) (*recipe.Recipe, error) {
	baseContent, err := rt.ReadImage(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSlim, err)
	}

	return recipe.FromImage(ic.Config, recipe.HistoryOptions{
		From: from,
		Base: &baseContent.Config,
	}), nil
}

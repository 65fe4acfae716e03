// Package recipe reverse-engineers and rewrites Dockerfile-style recipes.
//
// A [Recipe] is an ordered list of instructions. [FromImage] derives one from
// an image's OCI config: each history entry's CreatedBy field becomes an
// instruction, with the quirks of legacy builders normalized, and the first
// line names the base image. [Recipe.Slim] rewrites a recipe for the slimmed
// image by dropping every instruction that adds content and appending a
// single ADD of the delta archive.
//
// Example usage:
//
//	r := recipe.FromImage(cfg, recipe.HistoryOptions{From: "debian:12"})
//	base, err := r.BaseImage()
//	if err != nil {
//	    return err
//	}
//	slim := r.Slim("rootfs.tar")
//	slim.Render(w)
package recipe

package build

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cruciblehq/cruxslim/internal/recipe"
)

// Instructions accepted but without effect on the committed image.
var ignoredKeywords = []string{"ARG", "SHELL", "HEALTHCHECK", "ONBUILD"}

// Suffix marking history entries written by this builder.
const historyComment = " # cruxslim"

// Executes the instructions in order.
func (b *builder) execute(ctx context.Context, instructions []recipe.Instruction) error {
	for i, ins := range instructions {
		if err := b.executeInstruction(ctx, ins); err != nil {
			return fmt.Errorf("%w: instruction %d (%s): %w", ErrBuild, i+1, ins.Keyword, err)
		}
	}
	return nil
}

// Executes a single instruction, dispatching to layer creation or config
// mutation depending on its keyword.
func (b *builder) executeInstruction(ctx context.Context, ins recipe.Instruction) error {
	switch {
	case ins.Keyword == "FROM":
		b.froms++
		if b.froms > 1 {
			return fmt.Errorf("%w: multi-stage recipes", ErrUnsupported)
		}
		return nil

	case ins.Keyword == "ADD":
		l, err := b.executeAdd(ctx, ins.Args)
		if err != nil {
			return err
		}
		b.layers = append(b.layers, l)
		b.record(ins, false)
		return nil

	case ins.Keyword == "RUN" || ins.Keyword == "COPY":
		return fmt.Errorf("%w: %s requires a build container", ErrUnsupported, ins.Keyword)

	case slices.Contains(ignoredKeywords, ins.Keyword):
		slog.Debug("ignoring instruction", "instruction", ins.String())
		return nil
	}

	if err := b.state.apply(ins); err != nil {
		return err
	}
	b.record(ins, true)
	return nil
}

// Appends a history entry for an executed instruction.
func (b *builder) record(ins recipe.Instruction, empty bool) {
	created := b.now().UTC()
	b.history = append(b.history, ocispec.History{
		Created:    &created,
		CreatedBy:  ins.String() + historyComment,
		EmptyLayer: empty,
	})
}

// Package slim drives the end-to-end slimming of an image.
//
// A run resolves the target image, derives its recipe and base image, and
// starts a container whose primary process is the cruxslim guest tracing
// the image's command. Once the guest has removed every unused file, the
// container and base filesystems are exported and diffed, and the delta
// is added on top of the base image by replaying the recipe's metadata
// instructions:
//
//	image ──► guest container ──► slim.tar ─┐
//	base  ─────────────────────► base.tar ──┴─► rootfs.tar ──► <image>-slim
//
// Every stage runs strictly after the previous one. Intermediate files
// live in a run-scoped workspace, removed when the run ends unless kept.
package slim

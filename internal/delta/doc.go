// Package delta computes the archive of files a slimmed filesystem adds on
// top of its base.
//
// Both inputs are tar snapshots of complete filesystems. The base archive is
// read once to collect its entry names; the slim archive is then streamed,
// and every entry whose normalized name is absent from the base is copied to
// the output with its original header and content. Names are normalized to
// clean absolute paths, so "./usr/bin/app", "usr/bin/app" and "/usr/bin/app"
// are the same entry.
//
// Under the default [RegularOnly] policy only regular files are emitted. The
// [AllTypes] policy also emits directories and symlinks, and hardlinks whose
// target is itself part of the delta. Files present in both archives with
// different content are reported in [Report.Changed] and left out of the
// delta.
//
// The output depends only on the inputs: diffing the same archives twice
// gives byte-identical results.
package delta

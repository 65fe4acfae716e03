// Package build executes a rewritten recipe against the container runtime.
//
// The recipe's FROM instruction names the base image. Each ADD of a local
// tar archive becomes a new gzip-compressed layer written to the content
// store; metadata instructions (ENV, WORKDIR, USER, CMD, ENTRYPOINT, EXPOSE,
// LABEL, VOLUME, STOPSIGNAL) update the image config as they are
// encountered. Nothing is run: instructions that would need a build
// container are rejected. The result is committed as a new image on top of
// the base image's layers and optionally exported as an OCI archive.
//
// Example usage:
//
//	result, err := build.Run(ctx, rt, build.Options{
//	    Recipe:  rec,
//	    Context: "build",
//	    Name:    "docker.io/library/nginx:latest-slim",
//	    Output:  "dist/image.tar",
//	})
//	if err != nil {
//	    return err
//	}
package build

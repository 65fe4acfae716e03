// Package runtime manages images and containers backed by containerd.
//
// A [Runtime] connects to a containerd daemon and resolves image references.
// References that name an OCI archive on disk are imported and tagged with a
// deterministic content hash; anything else is looked up in the image store
// and pulled when missing. Images are unpacked into the configured
// snapshotter for the runtime's platform.
//
// A [Container] is created from an image with a caller-supplied primary
// process, bind mounts and capabilities. It runs to completion once, after
// which its filesystem can be exported as a tar stream. Filesystems of
// images are exported the same way through a read-only snapshot view.
//
// New images are committed by mutating a base image's manifest and config:
// extra layers are appended, the config is rewritten, the result is written
// to the content store as new blobs and recorded under a new name. The base
// image record is never modified.
//
// Example usage:
//
//	rt, err := runtime.New(runtime.Config{Address: "/run/containerd/containerd.sock", Namespace: "cruxslim"})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	img, err := rt.Image(ctx, "docker.io/library/nginx:latest")
//	if err != nil {
//	    return err
//	}
//
//	ctr, err := rt.NewContainer(ctx, img, "slim-1", runtime.ContainerSpec{Args: []string{"nginx", "-t"}})
//	if err != nil {
//	    return err
//	}
//	defer ctr.Destroy(ctx)
//
//	code, err := ctr.Run(ctx, os.Stdout, os.Stderr)
package runtime

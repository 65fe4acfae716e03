// Loads runtime configuration from a TOML file.
//
// The file is looked up in the XDG config search path unless an explicit
// path is given. Every field is optional; missing fields keep the values
// returned by [Defaults]. Command-line flags override the loaded values.
//
//	[containerd]
//	address     = "/run/containerd/containerd.sock"
//	namespace   = "cruxslim"
//	snapshotter = "overlayfs"
//	platform    = "linux/amd64"
//
//	[guest]
//	strace      = "/usr/local/bin/strace-static"
//	roots       = ["/usr", "/lib", "/var", "/root", "/sbin", "/bin"]
//	resolver    = "scoped"
//	strict      = false
//	allow_empty = false
//	timeout     = "2m"
//
//	[diff]
//	policy = "regular"
package settings

package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/cruciblehq/cruxslim/internal"
)

const (

	// Name of the configuration file.
	configFile = "config.toml"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Path to the directory holding per-run workspaces.
//
//	Linux:   $XDG_CACHE_HOME/cruxslim/runs
//	macOS:   ~/Library/Caches/cruxslim/runs
func Runs() string {
	return filepath.Join(xdg.CacheHome, internal.Name, "runs")
}

// Path to the workspace of a single run.
func Run(id string) string {
	return filepath.Join(Runs(), id)
}

// Default path to the configuration file.
//
//	Linux:   $XDG_CONFIG_HOME/cruxslim/config.toml
//	macOS:   ~/Library/Application Support/cruxslim/config.toml
func ConfigFile() string {
	return filepath.Join(xdg.ConfigHome, internal.Name, configFile)
}

// Returns the first existing configuration file in the XDG config search
// path, or "" when there is none.
func FindConfigFile() string {
	p, err := xdg.SearchConfigFile(filepath.Join(internal.Name, configFile))
	if err != nil {
		return ""
	}
	return p
}

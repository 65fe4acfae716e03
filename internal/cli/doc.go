// Parses flags, loads configuration and configures logging for cruxslim.
//
// Global flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Enable verbose output.
//	-d, --debug     Enable debug output.
//	    --config    Configuration file path.
//
// Flags override build-time defaults set via linker flags, and values from
// the configuration file. After parsing, the global logger is reconfigured
// to reflect the final level and verbosity before the command runs.
package cli

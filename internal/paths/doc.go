// Provides platform-appropriate paths for cruxslim.
//
// All paths follow XDG conventions on Linux and platform-native conventions
// on macOS. The program name is used as the subdirectory under each base
// path.
package paths

// Package urls provides centralized constants for all documentation URLs used
// throughout the application.
//
// All documentation URLs are defined here as exported constants and can be
// updated in a single location before release.
//
// Usage:
//
//	import "github.com/muurk/fwdump/internal/urls"
//
//	fmt.Printf("Start a GDB server first, see: %s\n", urls.OpenOCDGDBServer)
package urls

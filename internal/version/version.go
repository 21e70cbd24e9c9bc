// Package version reports what build of the bot is running. The MCP server
// advertises Version to clients, and the connection diagnostics quote
// SupportedMinecraftVersion.
//
// Release builds stamp the first three through the linker:
//
//	-ldflags "-X github.com/domocarroll/dannicraft/internal/version.Version=v0.3.0 -X ...Commit=$(git rev-parse --short HEAD)"
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown" // UTC, RFC 3339

	// SupportedMinecraftVersion is the game release the bridge is tested against.
	SupportedMinecraftVersion = "1.21.4"
)

// String renders the build for --print-version.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

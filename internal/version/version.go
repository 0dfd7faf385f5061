// Package version provides build and version information for the dialogue player.
package version

// Version is the current release version of the dialogue player.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/SentientDialogue/internal/version.Version=x.y.z"
var Version = "0.3.0"

package conventions

import (
	"path/filepath"

	"k8s.io/client-go/util/homedir"
)

const (
	// DefaultDataDir is the default pdfwatch data directory name (relative to home).
	DefaultDataDir = ".pdfwatch"
	// DBFile is the local session store filename.
	DBFile = "pdfwatch.db"
	// ProfileFile is the user profile filename.
	ProfileFile = "profile.yaml"

	// EnvarPrefix is the prefix of the environment variables mapped to flags.
	EnvarPrefix = "PDFWATCH"

	// DevServerAddress is the default listen address of the simulated PDF service.
	DevServerAddress = "127.0.0.1:4567"
)

// DataDir returns the pdfwatch data directory of the current user.
func DataDir() string {
	return filepath.Join(homedir.HomeDir(), DefaultDataDir)
}

// DBPath returns the session store path inside a data directory.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// ProfilePath returns the profile path inside a data directory.
func ProfilePath(dataDir string) string {
	return filepath.Join(dataDir, ProfileFile)
}

package storage

import (
	"os"
	"path/filepath"
	"runtime"
)

// PathManager handles cross-platform path resolution for DocuMiner storage
type PathManager struct {
	documinerDir string
}

// NewPathManager creates a new path manager with platform-aware defaults
func NewPathManager() *PathManager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir is not available
		homeDir = "."
	}

	return &PathManager{
		documinerDir: filepath.Join(homeDir, ".documiner"),
	}
}

// NewPathManagerAt creates a path manager rooted at an explicit data directory
func NewPathManagerAt(dataDir string) *PathManager {
	pm := NewPathManager()
	if dataDir != "" {
		pm.documinerDir = dataDir
	}
	return pm
}

// GetDataDir returns the main DocuMiner data directory.
// Creates the directory if it doesn't exist
func (pm *PathManager) GetDataDir() (string, error) {
	if err := os.MkdirAll(pm.documinerDir, 0755); err != nil {
		return "", err
	}
	return pm.documinerDir, nil
}

// GetLogsDir returns the directory for log files
func (pm *PathManager) GetLogsDir() (string, error) {
	return pm.subDir("logs")
}

// GetTempDir returns a platform-appropriate temporary directory for uploads
func (pm *PathManager) GetTempDir() (string, error) {
	var tempBase string

	switch runtime.GOOS {
	case "windows":
		tempBase = os.Getenv("TEMP")
		if tempBase == "" {
			tempBase = os.Getenv("TMP")
		}
		if tempBase == "" {
			tempBase = "C:\\temp"
		}
	default:
		tempBase = os.TempDir()
	}

	tempDir := filepath.Join(tempBase, "documiner")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return "", err
	}
	return tempDir, nil
}

func (pm *PathManager) subDir(name string) (string, error) {
	dir, err := pm.GetDataDir()
	if err != nil {
		return "", err
	}
	sub := filepath.Join(dir, name)
	if err := os.MkdirAll(sub, 0755); err != nil {
		return "", err
	}
	return sub, nil
}

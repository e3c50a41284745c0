// Package assets manages local media assets and resolves ordered asset
// sequences for script sections, fetching stock photos when the local
// library is empty.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/book-expert/logger"
)

const dirPermissions = 0o750

// Manager owns the assets, output, and temp directories of a run workspace.
type Manager struct {
	assetsDir string
	outputDir string
	tempDir   string
	log       *logger.Logger
}

// NewManager creates a manager over the configured workspace directories.
func NewManager(assetsDir, outputDir, tempDir string, log *logger.Logger) *Manager {
	return &Manager{
		assetsDir: assetsDir,
		outputDir: outputDir,
		tempDir:   tempDir,
		log:       log,
	}
}

// EnsureDirectories creates the workspace directories if they do not exist.
func (m *Manager) EnsureDirectories() error {
	for _, directory := range []string{m.assetsDir, m.outputDir, m.tempDir} {
		err := os.MkdirAll(directory, dirPermissions)
		if err != nil {
			return fmt.Errorf("failed to create directory %q: %w", directory, err)
		}
	}

	return nil
}

// ListImages returns the image files in the assets directory in name order.
func (m *Manager) ListImages() ([]string, error) {
	entries, err := os.ReadDir(m.assetsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read assets directory %q: %w", m.assetsDir, err)
	}

	var images []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".jpg", ".jpeg":
			images = append(images, filepath.Join(m.assetsDir, entry.Name()))
		}
	}

	sort.Strings(images)
	m.log.Info("Found %d images in %s", len(images), m.assetsDir)

	return images, nil
}

// AssetsDir returns the assets directory path.
func (m *Manager) AssetsDir() string {
	return m.assetsDir
}

// TempDir returns the temp directory path.
func (m *Manager) TempDir() string {
	return m.tempDir
}

// TempPath builds a path within the temp directory.
func (m *Manager) TempPath(filename string) string {
	return filepath.Join(m.tempDir, filename)
}

// OutputPath builds a path within the output directory.
func (m *Manager) OutputPath(filename string) string {
	return filepath.Join(m.outputDir, filename)
}

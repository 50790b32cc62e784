package director

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/choreo/internal/clip"
)

// WriteChoreography writes a choreography to a YAML file.
func WriteChoreography(ch *clip.Choreography, path string) error {
	data, err := yaml.Marshal(ch)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// ReadChoreography reads a choreography from a YAML file.
func ReadChoreography(path string) (*clip.Choreography, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var ch clip.Choreography
	if err := yaml.Unmarshal(data, &ch); err != nil {
		return nil, err
	}

	return &ch, nil
}

// GenerateChoreographyPath creates a timestamped choreography filename in dir.
func GenerateChoreographyPath(dir string) string {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("choreography_%s.yaml", timestamp))
}

// FindLatestChoreography finds the most recent choreography file in dir.
func FindLatestChoreography(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read choreographies directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".yaml") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	if len(files) == 0 {
		return "", fmt.Errorf("no choreography files found in %s", dir)
	}

	// Sort by modification time (newest first)
	sort.Slice(files, func(i, j int) bool {
		infoI, _ := os.Stat(files[i])
		infoJ, _ := os.Stat(files[j])
		return infoI.ModTime().After(infoJ.ModTime())
	})

	return files[0], nil
}

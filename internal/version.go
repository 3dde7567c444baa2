package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GetVersion читает версию из файла tag.txt, поднимаясь от текущей
// директории к корню.
func GetVersion() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	for {
		tagPath := filepath.Join(dir, "tag.txt")
		if _, err := os.Stat(tagPath); err == nil {
			content, err := os.ReadFile(tagPath)
			if err != nil {
				return "", fmt.Errorf("failed to read tag.txt: %w", err)
			}
			version := strings.TrimSpace(string(content))
			if version == "" {
				return "", fmt.Errorf("tag.txt is empty")
			}
			return version, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "unknown", nil
}

// GetVersionInfo возвращает строку с полной информацией о версии.
func GetVersionInfo() string {
	version, err := GetVersion()
	if err != nil {
		return fmt.Sprintf("FEC Simulator (version: unknown, error: %v)", err)
	}
	if strings.HasPrefix(version, "v") {
		return fmt.Sprintf("FEC Simulator %s", version)
	}
	return fmt.Sprintf("FEC Simulator v%s", version)
}

// PrintVersion выводит информацию о версии.
func PrintVersion() {
	fmt.Println(GetVersionInfo())
}

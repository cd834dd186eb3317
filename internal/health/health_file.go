package health

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/linanwx/chatball/client"
)

func inspectFile(path string) *FileInfo {
	info := &FileInfo{Path: path}

	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			info.Exists = false
			return info
		}
		info.ParseError = err.Error()
		return info
	}

	info.Exists = true
	info.FileSizeBytes = stat.Size()
	info.UpdatedAt = stat.ModTime().Format(time.RFC3339)
	return info
}

// inspectConfigFile also checks that the file parses as YAML.
func inspectConfigFile(path string) *FileInfo {
	info := inspectFile(path)
	if !info.Exists {
		return info
	}

	data, err := os.ReadFile(path)
	if err != nil {
		info.ParseError = err.Error()
		return info
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		info.ParseError = err.Error()
	}
	return info
}

// isReachableError reports whether err came back from the backend itself
// rather than from the network or a cancelled probe.
func isReachableError(err error) bool {
	var se *client.StatusError
	return errors.As(err, &se)
}

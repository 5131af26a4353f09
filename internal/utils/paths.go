package utils

import "path/filepath"

// GetAbsolutePath returns path if it was absolute, otherwise joins it with baseDir
func GetAbsolutePath(path, baseDir string) string {
	if filepath.IsAbs(path) {
		return path
	}

	absolutePath := filepath.Join(baseDir, path)

	return filepath.Clean(absolutePath)
}

// Package utils holds small file system helpers of the commands.
package utils

import (
	"os"
)

// IsFile tests whether the given path exists and is a regular file
func IsFile(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}

	return info.Mode().IsRegular()
}

// IsDirectory tests whether the given path exists and is a directory
func IsDirectory(dirPath string) bool {
	info, err := os.Stat(dirPath)
	if err != nil {
		return false
	}

	return info.IsDir()
}

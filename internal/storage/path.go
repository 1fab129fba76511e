// internal/storage/path.go
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FullPath joins basePath and key with exactly one slash between them.
func FullPath(basePath, key string) string {
	if basePath == "" {
		return key
	}
	return strings.TrimRight(basePath, "/") + "/" + strings.TrimLeft(key, "/")
}

func attachmentDisposition(fileName string) string {
	return fmt.Sprintf(`attachment; filename="%s"`, fileName)
}

func contentTypeOrDefault(contentType string) string {
	if contentType == "" {
		return defaultContentType
	}
	return contentType
}

// writeToFile streams r into destPath, creating parent directories.
func writeToFile(r io.Reader, destPath string) error {
	if dir := filepath.Dir(destPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

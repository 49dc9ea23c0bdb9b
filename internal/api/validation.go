package api

import (
	"fmt"
	"path"
	"strings"
)

// validateRelpath rejects a relative path with any ".." segment, an
// absolute path, or an empty value. Every files/directories route takes an
// arbitrary relpath rooted at the container's own working directory, so the
// guard here is purely lexical: no segment may escape upward.
func validateRelpath(relpath string) error {
	if relpath == "" {
		return fmt.Errorf("path is required")
	}
	cleaned := path.Clean("/" + relpath)
	if cleaned == "/" {
		return fmt.Errorf("path must not be empty")
	}
	for _, seg := range strings.Split(relpath, "/") {
		if seg == ".." {
			return fmt.Errorf("path must not contain '..' segments")
		}
	}
	if strings.HasPrefix(relpath, "/") {
		return fmt.Errorf("path must be relative")
	}
	return nil
}

// validateDirectoryArchiveName requires the upload be named as a tar
// archive, plain (.tar) or gzip-compressed (.tar.gz, .tgz). Only the file
// name is checked, not the content.
func validateDirectoryArchiveName(filename string) error {
	lower := strings.ToLower(filename)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") || strings.HasSuffix(lower, ".tar") {
		return nil
	}
	return fmt.Errorf("directory upload must be a .tar, .tar.gz, or .tgz archive")
}

package utils

import (
	"path"
	"strings"

	"github.com/Mayank-software/dropboxfs/pkg/errors"
)

// NormalizeRemotePath converts a mount-facing path into the form the remote
// API expects: leading slash, no trailing slash, and the account root
// expressed as the empty string.
func NormalizeRemotePath(p string) string {
	if p == "" || p == "/" {
		return ""
	}
	cleaned := path.Clean(p)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	if cleaned == "/" {
		return ""
	}
	return strings.TrimSuffix(cleaned, "/")
}

// ValidateRemotePath rejects paths the remote API cannot address.
func ValidateRemotePath(p string) error {
	if strings.Contains(p, "\x00") {
		return errors.InvalidPath(p, "path contains NUL byte")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return errors.InvalidPath(p, "path contains parent traversal")
		}
	}
	return nil
}

// ParentPath returns the remote parent of p, with the root as "".
func ParentPath(p string) string {
	p = NormalizeRemotePath(p)
	if p == "" {
		return ""
	}
	parent := path.Dir(p)
	if parent == "/" || parent == "." {
		return ""
	}
	return parent
}

// BaseName returns the final path element of p, or "/" for the root.
func BaseName(p string) string {
	p = NormalizeRemotePath(p)
	if p == "" {
		return "/"
	}
	return path.Base(p)
}

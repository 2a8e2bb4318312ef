package utils

import (
	"testing"

	"github.com/Mayank-software/dropboxfs/pkg/errors"
)

func TestNormalizeRemotePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", ""},
		{"", ""},
		{"/foo", "/foo"},
		{"/foo/", "/foo"},
		{"foo/bar", "/foo/bar"},
		{"/foo//bar", "/foo/bar"},
		{"/foo/./bar", "/foo/bar"},
	}

	for _, tt := range tests {
		if got := NormalizeRemotePath(tt.in); got != tt.want {
			t.Errorf("NormalizeRemotePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParentPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/foo/bar", "/foo"},
		{"/foo", ""},
		{"/", ""},
	}

	for _, tt := range tests {
		if got := ParentPath(tt.in); got != tt.want {
			t.Errorf("ParentPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBaseName(t *testing.T) {
	if got := BaseName("/foo/bar.txt"); got != "bar.txt" {
		t.Errorf("BaseName = %q, want bar.txt", got)
	}
	if got := BaseName("/"); got != "/" {
		t.Errorf("BaseName(/) = %q, want /", got)
	}
}

func TestValidateRemotePath(t *testing.T) {
	if err := ValidateRemotePath("/ok/path"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateRemotePath("/a/../b"); err == nil {
		t.Error("expected error for parent traversal")
	} else if !errors.IsInvalidPath(err) {
		t.Errorf("expected PATH_INVALID, got %v", err)
	}
	if err := ValidateRemotePath("/a\x00b"); !errors.IsInvalidPath(err) {
		t.Errorf("expected PATH_INVALID for NUL byte, got %v", err)
	}
}

package fuse

import (
	"log/slog"
	"sync"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/Mayank-software/dropboxfs/pkg/errors"
)

// Host owns the mount lifecycle around a FileSystem.
type Host struct {
	mu      sync.Mutex
	fsys    *FileSystem
	host    *fuse.FileSystemHost
	mounted bool
}

// NewHost creates an unmounted host for the filesystem.
func NewHost(fsys *FileSystem) *Host {
	return &Host{fsys: fsys}
}

// Mount blocks serving the filesystem until Unmount is called or the
// kernel tears the mount down. It returns once the mount loop exits.
func (h *Host) Mount() error {
	h.mu.Lock()
	if h.mounted {
		h.mu.Unlock()
		return errors.NewError(errors.ErrCodeMountFailed, "filesystem already mounted")
	}
	host := fuse.NewFileSystemHost(h.fsys)
	h.host = host
	h.mounted = true
	h.mu.Unlock()

	cfg := h.fsys.config
	options := []string{"-o", "fsname=" + cfg.FSName}
	if cfg.AllowOther {
		options = append(options, "-o", "allow_other")
	}
	if cfg.ReadOnly {
		options = append(options, "-o", "ro")
	}

	slog.Info("mounting filesystem", "mountpoint", cfg.Mountpoint, "fsname", cfg.FSName)
	ok := host.Mount(cfg.Mountpoint, options)

	h.mu.Lock()
	h.mounted = false
	h.mu.Unlock()

	if !ok {
		return errors.NewError(errors.ErrCodeMountFailed, "mount loop exited with failure").
			WithContext("mountpoint", cfg.Mountpoint)
	}
	return nil
}

// Unmount asks the kernel to detach the mount; the blocked Mount call
// returns once teardown completes.
func (h *Host) Unmount() error {
	h.mu.Lock()
	host := h.host
	mounted := h.mounted
	h.mu.Unlock()

	if !mounted || host == nil {
		return errors.NewError(errors.ErrCodeUnmountFailed, "filesystem not mounted")
	}
	if !host.Unmount() {
		return errors.NewError(errors.ErrCodeUnmountFailed, "kernel rejected unmount")
	}
	return nil
}

// IsMounted reports whether the mount loop is live.
func (h *Host) IsMounted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mounted
}

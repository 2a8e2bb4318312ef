package types

import (
	"time"
)

// Metadata describes one remote entry as reported by the storage API.
// Rev is the provider's opaque revision token; it is empty for folders
// and for providers that do not version the entry.
type Metadata struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	IsDir    bool      `json:"is_dir"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Rev      string    `json:"rev,omitempty"`
}

// CacheStats reports attribute-cache performance counters.
type CacheStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
}

// FilesystemGeometry is the fixed block accounting reported by statfs.
// The remote API exposes no usable quota information, so the numbers are
// constants chosen to keep tools like df from misbehaving.
type FilesystemGeometry struct {
	BlockSize       uint64
	Blocks          uint64
	BlocksAvailable uint64
}

// DefaultGeometry returns the geometry reported to the kernel.
func DefaultGeometry() FilesystemGeometry {
	return FilesystemGeometry{
		BlockSize:       512,
		Blocks:          4096,
		BlocksAvailable: 2048,
	}
}

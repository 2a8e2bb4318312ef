/*
Package types provides the shared data structures and interfaces for
dropboxfs.

The central contract is the RemoteClient interface, which abstracts the
storage provider behind the filesystem adapter. The Dropbox HTTP client
and the S3 client both implement it, so the FUSE layer, the attribute
cache, and the handle table never depend on a concrete provider.

	┌─────────────────────────────────────────────┐
	│              FUSE Interface                 │
	│        (cmd/dropboxfs, internal/fuse)       │
	└─────────────────────────────────────────────┘
	          │            │            │
	┌─────────┴───┐ ┌──────┴──────┐ ┌───┴─────────┐
	│ RemoteClient│ │ Attr Cache  │ │ Handle Table│
	│ (storage/*) │ │ (cache)     │ │ (handle)    │
	└─────────────┘ └─────────────┘ └─────────────┘

Metadata carries the provider's view of one entry, including the opaque
revision token used as the optimistic-concurrency precondition on upload.
*/
package types

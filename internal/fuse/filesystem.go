// Package fuse translates POSIX filesystem operations into remote storage
// API calls. It implements the cgofuse path-based interface: every handler
// receives the request path, operates through the attribute cache and the
// handle table, and maps structured storage errors to errno values at the
// return boundary.
package fuse

import (
	"context"
	"log/slog"
	"time"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/Mayank-software/dropboxfs/internal/cache"
	"github.com/Mayank-software/dropboxfs/internal/handle"
	"github.com/Mayank-software/dropboxfs/pkg/errors"
	"github.com/Mayank-software/dropboxfs/pkg/types"
	"github.com/Mayank-software/dropboxfs/pkg/utils"
)

// invalidHandle is the fh value the kernel passes on path-only calls.
const invalidHandle = ^uint64(0)

// Config represents mount-surface settings
type Config struct {
	Mountpoint string
	FSName     string
	AllowOther bool
	ReadOnly   bool
	UID        uint32
	GID        uint32
	FileMode   uint32
	DirMode    uint32
}

// FileSystem is the POSIX operation dispatcher. Handlers may run
// concurrently; shared state lives behind the cache and table locks and
// no lock is ever held across a remote call.
type FileSystem struct {
	fuse.FileSystemBase

	remote  types.RemoteClient
	attrs   *cache.AttrCache
	handles *handle.Table
	metrics types.MetricsCollector
	config  *Config
	logger  *slog.Logger

	// shutdown runs from Destroy after the sweep stops.
	shutdown func()
}

// NewFileSystem creates the dispatcher.
func NewFileSystem(remote types.RemoteClient, attrs *cache.AttrCache,
	handles *handle.Table, collector types.MetricsCollector, config *Config) *FileSystem {

	if config.FileMode == 0 {
		config.FileMode = 0644
	}
	if config.DirMode == 0 {
		config.DirMode = 0755
	}

	return &FileSystem{
		remote:  remote,
		attrs:   attrs,
		handles: handles,
		metrics: collector,
		config:  config,
		logger:  slog.Default().With("component", "fuse"),
	}
}

// errno maps a storage error to the errno returned to the kernel. This is
// the single translation point; handlers never inspect error text.
func errno(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.IsNotFound(err):
		return -fuse.ENOENT
	case errors.IsInvalidPath(err):
		return -fuse.EINVAL
	case errors.IsUnsupported(err):
		return -fuse.EROFS
	default:
		return -fuse.EIO
	}
}

// remotePath validates a mount-facing path and normalizes it for the
// remote API. Handlers that introduce new names go through this; read
// paths arrive from the kernel already resolved.
func remotePath(p string) (string, error) {
	if err := utils.ValidateRemotePath(p); err != nil {
		return "", err
	}
	return utils.NormalizeRemotePath(p), nil
}

func (fs *FileSystem) record(op string, start time.Time, code int) int {
	fs.metrics.RecordOperation(op, time.Since(start), code == 0)
	if code != 0 && code != -fuse.ENOENT {
		fs.logger.Debug("operation failed", "op", op, "errno", code)
	}
	return code
}

// fillStat converts remote metadata into the kernel stat record.
func (fs *FileSystem) fillStat(stat *fuse.Stat_t, meta types.Metadata) {
	if meta.IsDir {
		stat.Mode = fuse.S_IFDIR | fs.config.DirMode
		stat.Nlink = 2
	} else {
		stat.Mode = fuse.S_IFREG | fs.config.FileMode
		stat.Nlink = 1
		stat.Size = meta.Size
	}
	stat.Uid = fs.config.UID
	stat.Gid = fs.config.GID
	if !meta.Modified.IsZero() {
		ts := fuse.NewTimespec(meta.Modified)
		stat.Mtim = ts
		stat.Atim = ts
		stat.Ctim = ts
	}
}

// attributes resolves metadata for a path through the cache, refreshing
// from the remote on a miss.
func (fs *FileSystem) attributes(path string) (types.Metadata, error) {
	if meta, ok := fs.attrs.Lookup(path); ok {
		fs.metrics.RecordCacheHit()
		return meta, nil
	}
	fs.metrics.RecordCacheMiss()
	return fs.attrs.Refresh(context.Background(), path)
}

// Getattr returns file attributes. The root is always a directory and
// never consults the remote.
func (fs *FileSystem) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	start := time.Now()

	if path == "/" {
		fs.fillStat(stat, types.Metadata{IsDir: true})
		return fs.record("getattr", start, 0)
	}

	meta, err := fs.attributes(utils.NormalizeRemotePath(path))
	if err != nil {
		return fs.record("getattr", start, errno(err))
	}
	fs.fillStat(stat, meta)
	return fs.record("getattr", start, 0)
}

// Statfs reports fixed filesystem geometry; the remote exposes no quota.
func (fs *FileSystem) Statfs(path string, stat *fuse.Statfs_t) int {
	geo := types.DefaultGeometry()
	stat.Bsize = geo.BlockSize
	stat.Frsize = geo.BlockSize
	stat.Blocks = geo.Blocks
	stat.Bfree = geo.BlocksAvailable
	stat.Bavail = geo.BlocksAvailable
	return 0
}

// Mknod is rejected: the backend can only materialize regular files
// through the create/upload path.
func (fs *FileSystem) Mknod(path string, mode uint32, dev uint64) int {
	return -fuse.EROFS
}

// Mkdir creates a remote folder.
func (fs *FileSystem) Mkdir(path string, mode uint32) int {
	start := time.Now()
	rp, err := remotePath(path)
	if err != nil {
		return fs.record("mkdir", start, errno(err))
	}

	err = fs.remote.CreateFolder(context.Background(), rp)
	fs.metrics.RecordRemoteCall("create_folder", err)
	if err != nil {
		return fs.record("mkdir", start, errno(err))
	}
	fs.attrs.Store(rp, types.Metadata{
		Path: rp, Name: utils.BaseName(rp), IsDir: true, Modified: time.Now(),
	})
	return fs.record("mkdir", start, 0)
}

// Unlink removes a file.
func (fs *FileSystem) Unlink(path string) int {
	return fs.removeEntry("unlink", path)
}

// Rmdir removes a folder. The remote delete is recursive, matching the
// provider's semantics rather than POSIX ENOTEMPTY.
func (fs *FileSystem) Rmdir(path string) int {
	return fs.removeEntry("rmdir", path)
}

func (fs *FileSystem) removeEntry(op, path string) int {
	start := time.Now()
	rp := utils.NormalizeRemotePath(path)

	err := fs.remote.Delete(context.Background(), rp)
	fs.metrics.RecordRemoteCall("delete", err)
	if err != nil {
		return fs.record(op, start, errno(err))
	}
	fs.attrs.Invalidate(rp)
	// The parent folder's remote timestamp moved.
	fs.attrs.Invalidate(utils.ParentPath(rp))
	return fs.record(op, start, 0)
}

// Rename moves an entry, folders recursively.
func (fs *FileSystem) Rename(oldpath, newpath string) int {
	start := time.Now()
	src := utils.NormalizeRemotePath(oldpath)
	dst, err := remotePath(newpath)
	if err != nil {
		return fs.record("rename", start, errno(err))
	}

	err = fs.remote.Move(context.Background(), src, dst)
	fs.metrics.RecordRemoteCall("move", err)
	if err != nil {
		return fs.record("rename", start, errno(err))
	}
	fs.attrs.Invalidate(src)
	fs.attrs.Invalidate(dst)
	fs.attrs.Invalidate(utils.ParentPath(src))
	fs.attrs.Invalidate(utils.ParentPath(dst))
	return fs.record("rename", start, 0)
}

// Link approximates a hard link with a server-side copy: the backend has
// no link concept, so the entries diverge after the copy.
func (fs *FileSystem) Link(oldpath, newpath string) int {
	return fs.copyEntry("link", oldpath, newpath)
}

// Symlink approximates a symlink the same way. The link target must be an
// existing remote path.
func (fs *FileSystem) Symlink(target, newpath string) int {
	return fs.copyEntry("symlink", target, newpath)
}

func (fs *FileSystem) copyEntry(op, src, dst string) int {
	start := time.Now()
	sp := utils.NormalizeRemotePath(src)
	dp, err := remotePath(dst)
	if err != nil {
		return fs.record(op, start, errno(err))
	}

	err = fs.remote.Copy(context.Background(), sp, dp)
	fs.metrics.RecordRemoteCall("copy", err)
	if err != nil {
		return fs.record(op, start, errno(err))
	}
	fs.attrs.Invalidate(dp)
	return fs.record(op, start, 0)
}

// Readlink returns file content as the link target, the inverse of the
// copy-based Symlink above.
func (fs *FileSystem) Readlink(path string) (int, string) {
	start := time.Now()
	rp := utils.NormalizeRemotePath(path)

	data, _, err := fs.remote.Download(context.Background(), rp)
	fs.metrics.RecordRemoteCall("download", err)
	if err != nil {
		return fs.record("readlink", start, errno(err)), ""
	}
	return fs.record("readlink", start, 0), string(data)
}

// Chmod is accepted and discarded; the backend stores no mode bits.
func (fs *FileSystem) Chmod(path string, mode uint32) int {
	return 0
}

// Chown is accepted and discarded.
func (fs *FileSystem) Chown(path string, uid, gid uint32) int {
	return 0
}

// Utimens is accepted and discarded; timestamps come from the remote.
func (fs *FileSystem) Utimens(path string, tmsp []fuse.Timespec) int {
	return 0
}

// Setxattr is accepted and discarded.
func (fs *FileSystem) Setxattr(path, name string, value []byte, flags int) int {
	return 0
}

// Getxattr reports an empty value for any name; the backend stores no
// extended attributes.
func (fs *FileSystem) Getxattr(path, name string) (int, []byte) {
	return 0, []byte{}
}

// Listxattr reports an empty set.
func (fs *FileSystem) Listxattr(path string, fill func(name string) bool) int {
	return 0
}

// Removexattr is accepted and discarded.
func (fs *FileSystem) Removexattr(path, name string) int {
	return 0
}

// Create materializes a new empty file: the zero-length upload runs
// immediately so the entry exists remotely, and its revision anchors the
// upload on release.
func (fs *FileSystem) Create(path string, flags int, mode uint32) (int, uint64) {
	start := time.Now()
	rp, err := remotePath(path)
	if err != nil {
		return fs.record("create", start, errno(err)), invalidHandle
	}

	rev, err := fs.remote.Upload(context.Background(), rp, nil, "")
	fs.metrics.RecordRemoteCall("upload", err)
	if err != nil {
		return fs.record("create", start, errno(err)), invalidHandle
	}

	fs.attrs.Store(rp, types.Metadata{
		Path: rp, Name: utils.BaseName(rp), Size: 0, Modified: time.Now(), Rev: rev,
	})
	fh := fs.handles.OpenFile(rp, nil, rev)
	fs.metrics.SetOpenHandles(fs.handles.OpenCount())
	return fs.record("create", start, 0), fh
}

// Open downloads the full file into a new handle buffer. Opening with
// truncation discards the remote content but keeps its revision as the
// concurrency anchor.
func (fs *FileSystem) Open(path string, flags int) (int, uint64) {
	start := time.Now()
	rp := utils.NormalizeRemotePath(path)

	if flags&fuse.O_TRUNC != 0 {
		meta, err := fs.remote.GetMetadata(context.Background(), rp)
		fs.metrics.RecordRemoteCall("get_metadata", err)
		if err != nil {
			return fs.record("open", start, errno(err)), invalidHandle
		}
		rev, err := fs.remote.Upload(context.Background(), rp, nil, meta.Rev)
		fs.metrics.RecordRemoteCall("upload", err)
		if err != nil {
			return fs.record("open", start, errno(err)), invalidHandle
		}
		fs.attrs.Store(rp, types.Metadata{
			Path: rp, Name: utils.BaseName(rp), Size: 0, Modified: time.Now(), Rev: rev,
		})
		fh := fs.handles.OpenFile(rp, nil, rev)
		fs.metrics.SetOpenHandles(fs.handles.OpenCount())
		return fs.record("open", start, 0), fh
	}

	data, rev, err := fs.remote.Download(context.Background(), rp)
	fs.metrics.RecordRemoteCall("download", err)
	if err != nil {
		return fs.record("open", start, errno(err)), invalidHandle
	}

	fh := fs.handles.OpenFile(rp, data, rev)
	fs.metrics.SetOpenHandles(fs.handles.OpenCount())
	return fs.record("open", start, 0), fh
}

// Read serves entirely from the handle buffer.
func (fs *FileSystem) Read(path string, buff []byte, ofst int64, fh uint64) int {
	start := time.Now()

	f, err := fs.handles.File(fh)
	if err != nil {
		return fs.record("read", start, -fuse.EBADF)
	}
	n := f.ReadAt(buff, ofst)
	fs.record("read", start, 0)
	return n
}

// Write lands entirely in the handle buffer, growing it with zero fill
// on writes past the end. Nothing reaches the remote until release.
func (fs *FileSystem) Write(path string, buff []byte, ofst int64, fh uint64) int {
	start := time.Now()

	f, err := fs.handles.File(fh)
	if err != nil {
		return fs.record("write", start, -fuse.EBADF)
	}
	n := f.WriteAt(buff, ofst)
	fs.record("write", start, 0)
	return n
}

// Truncate resizes a file. With a live handle it is a buffer operation;
// without one it is a remote read-modify-write anchored on the downloaded
// revision. The path variant is not atomic against concurrent writers.
func (fs *FileSystem) Truncate(path string, size int64, fh uint64) int {
	start := time.Now()

	if fh != invalidHandle {
		if f, err := fs.handles.File(fh); err == nil {
			f.Truncate(size)
			return fs.record("truncate", start, 0)
		}
	}

	rp := utils.NormalizeRemotePath(path)
	ctx := context.Background()

	data, rev, err := fs.remote.Download(ctx, rp)
	fs.metrics.RecordRemoteCall("download", err)
	if err != nil {
		return fs.record("truncate", start, errno(err))
	}

	switch {
	case int64(len(data)) > size:
		data = data[:size]
	case int64(len(data)) < size:
		grown := make([]byte, size)
		copy(grown, data)
		data = grown
	}

	newRev, err := fs.remote.Upload(ctx, rp, data, rev)
	fs.metrics.RecordRemoteCall("upload", err)
	if err != nil {
		return fs.record("truncate", start, errno(err))
	}
	fs.attrs.Store(rp, types.Metadata{
		Path: rp, Name: utils.BaseName(rp), Size: size, Modified: time.Now(), Rev: newRev,
	})
	return fs.record("truncate", start, 0)
}

// Flush is a success no-op: the buffer commits on release only.
func (fs *FileSystem) Flush(path string, fh uint64) int {
	return 0
}

// Fsync is a success no-op for the same reason.
func (fs *FileSystem) Fsync(path string, datasync bool, fh uint64) int {
	return 0
}

// Release commits the whole buffer with the handle's base revision as the
// precondition. A conflict fails the close; it is never retried and the
// handle is removed either way.
func (fs *FileSystem) Release(path string, fh uint64) int {
	start := time.Now()

	f, err := fs.handles.ReleaseFile(fh)
	fs.metrics.SetOpenHandles(fs.handles.OpenCount())
	if err != nil {
		return fs.record("release", start, -fuse.EBADF)
	}

	data := f.Snapshot()
	rev, err := fs.remote.Upload(context.Background(), f.Path(), data, f.Rev())
	fs.metrics.RecordRemoteCall("upload", err)
	if err != nil {
		fs.attrs.Invalidate(f.Path())
		if errors.IsConflict(err) {
			fs.logger.Warn("revision conflict on close, remote content wins",
				"path", f.Path(), "base_rev", f.Rev())
		}
		return fs.record("release", start, errno(err))
	}

	fs.attrs.Store(f.Path(), types.Metadata{
		Path:     f.Path(),
		Name:     utils.BaseName(f.Path()),
		Size:     int64(len(data)),
		Modified: time.Now(),
		Rev:      rev,
	})
	fs.logger.Debug("buffer committed",
		"path", f.Path(), "size", utils.FormatBytes(int64(len(data))), "rev", rev)
	return fs.record("release", start, 0)
}

// Opendir issues a stateless directory handle.
func (fs *FileSystem) Opendir(path string) (int, uint64) {
	return 0, fs.handles.OpenDir(utils.NormalizeRemotePath(path))
}

// Readdir lists the folder remotely and pre-warms the attribute cache
// with every child, so the stat storm that follows a listing is served
// without further remote calls.
func (fs *FileSystem) Readdir(path string,
	fill func(name string, stat *fuse.Stat_t, ofst int64) bool,
	ofst int64, fh uint64) int {

	start := time.Now()
	rp := utils.NormalizeRemotePath(path)

	entries, err := fs.remote.ListFolder(context.Background(), rp)
	fs.metrics.RecordRemoteCall("list_folder", err)
	if err != nil {
		return fs.record("readdir", start, errno(err))
	}

	fill(".", nil, 0)
	fill("..", nil, 0)
	for _, meta := range entries {
		fs.attrs.Store(utils.NormalizeRemotePath(meta.Path), meta)

		stat := &fuse.Stat_t{}
		fs.fillStat(stat, meta)
		if !fill(meta.Name, stat, 0) {
			break
		}
	}
	return fs.record("readdir", start, 0)
}

// Releasedir drops the directory handle.
func (fs *FileSystem) Releasedir(path string, fh uint64) int {
	fs.handles.ReleaseDir(fh)
	return 0
}

// Fsyncdir is a success no-op.
func (fs *FileSystem) Fsyncdir(path string, datasync bool, fh uint64) int {
	return 0
}

// OnShutdown registers a hook that Destroy runs after stopping the
// attribute-cache sweep. The bootstrap uses it to stop the metrics
// server on kernel-initiated teardown.
func (fs *FileSystem) OnShutdown(fn func()) {
	fs.shutdown = fn
}

// Destroy runs when the mount is torn down: the background sweep stops
// and the shutdown hook fires before Mount returns.
func (fs *FileSystem) Destroy() {
	fs.attrs.Stop()
	if fs.shutdown != nil {
		fs.shutdown()
	}
}

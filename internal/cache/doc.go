/*
Package cache implements the path-keyed attribute cache that sits between
the FUSE dispatcher and the remote storage API.

Entries are full Metadata records stamped with their observation time.
A lookup is served only while the entry is younger than the freshness
window; anything older falls through to a remote refresh. A background
sweep evicts entries past the cleanup threshold regardless of access,
bounding both memory and the staleness a reader can ever observe.
*/
package cache

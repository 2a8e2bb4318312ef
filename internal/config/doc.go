/*
Package config defines the YAML configuration surface for dropboxfs.

Configuration is resolved in three layers: NewDefault provides defaults,
LoadFromFile overlays a YAML file, and LoadFromEnv overlays DROPBOXFS_*
environment variables. Validate is called once, after all layers.

The cache section keeps freshness_window and cleanup_threshold as two
independent durations: the first bounds how stale an attribute lookup may
be, the second decides when the background sweep drops an entry.
*/
package config

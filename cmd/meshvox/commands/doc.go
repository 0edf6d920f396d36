// Package commands implements the meshvox CLI: key-package generation and
// inspection, and a local demo that drives the group engine end to end.
// The CLI performs no network I/O; delivery of the printed blobs is the
// transport layer's job.
package commands

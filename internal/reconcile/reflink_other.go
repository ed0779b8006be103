//go:build !linux

package reconcile

import "errors"

// reflinkCopy is unsupported outside Linux's FICLONE-capable filesystems;
// materialize falls through to plainCopy.
func reflinkCopy(src, dst string) error {
	return errors.New("reconcile: reflink not supported on this platform")
}

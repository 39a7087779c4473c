//go:build linux

package image

import (
	"archive/tar"

	"golang.org/x/sys/unix"
)

// mknodEntry recreates a character or block device tar entry on disk.
// Layer tarballs commonly carry /dev entries (e.g. /dev/null) even though
// lwc's container-init creates its own after pivot_root; extracting
// them faithfully keeps layer contents byte-for-byte reproducible.
func mknodEntry(path string, h *tar.Header) error {
	mode := uint32(h.Mode) & 0o7777
	switch h.Typeflag {
	case tar.TypeChar:
		mode |= unix.S_IFCHR
	case tar.TypeBlock:
		mode |= unix.S_IFBLK
	}
	dev := unix.Mkdev(uint32(h.Devmajor), uint32(h.Devminor))
	return unix.Mknod(path, mode, int(dev))
}

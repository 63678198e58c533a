package format

import "hash/crc32"

// Checksum computes the CRC32 (IEEE polynomial) of b. Used to detect torn
// writes in the allocator-state file; no third-party checksum library is
// warranted for a format-internal integrity check.
func Checksum(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

// Package hash provides the checksum used for snapshot and blob integrity.
//
// Everything checksummed in osmloc uses CRC32-Castagnoli (CRC32C): it is
// hardware accelerated on x86 (SSE4.2) and ARM, and it is the polynomial S3
// validates uploads against, so one checksum serves both the snapshot
// footer and object-store publishing.
package hash

import (
	"hash"
	"hash/crc32"
)

// crc32cTable is pre-computed for the Castagnoli polynomial; computing it
// once avoids repeated MakeTable calls.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a new CRC32-Castagnoli hash.Hash32.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}

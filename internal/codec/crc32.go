package codec

import "hash/crc32"

// CRC32 computes the IEEE 802.3 CRC-32 (polynomial 0xEDB88320 reflected,
// init/xorout 0xFFFFFFFF) used by the Ethernet/ZIP checksum family.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

package worker

import "github.com/OneOfOne/xxhash"

// eventFingerprint hashes a message's raw wire payload for the recent-
// delivery dedup filter, the same xxhash digest idiom model.Host.Digest
// uses.
func eventFingerprint(payload []byte) []byte {
	sum := xxhash.Checksum64(payload)
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(sum >> (8 * i))
	}
	return out
}

package mpegts

const (
	maxSeekRatio    = 0.9995
	seekTailPackets = 8192
)

// SeekOffset maps a target time to a packet-aligned byte offset for reopening
// a stream that cannot seek natively. The last 188*8192 bytes are never
// chosen so the reopened stream has something to play. It returns false when
// size or duration is unknown.
func SeekOffset(target, duration float64, size int64) (int64, bool) {
	if size <= 0 || !(duration > 0) {
		return 0, false
	}

	ratio := target / duration
	if !(ratio > 0) {
		ratio = 0
	}
	ratio = min(ratio, maxSeekRatio)

	safeTail := min(size, PacketSize*seekTailPackets)
	start := int64(float64(size) * ratio)
	start = max(0, min(start, size-safeTail))

	return start - start%PacketSize, true
}

// Package mpegts reads just enough of an MPEG transport stream to estimate
// its duration from PCR or PTS timestamps.
package mpegts

const (
	PacketSize = 188
	SyncByte   = 0x47

	// ClockRate is the tick rate of the 33-bit PCR base and PTS fields.
	ClockRate        = 90000
	TimestampModulus = 1 << 33
)

type Kind int

const (
	KindPTS Kind = iota
	KindPCR
)

func (k Kind) String() string {
	switch k {
	case KindPTS:
		return "pts"
	case KindPCR:
		return "pcr"
	default:
		return "unknown"
	}
}

type Sample struct {
	PID   uint16
	Value uint64
}

// FindSyncOffset returns the first offset in [0, PacketSize) holding a sync
// byte that recurs one and two packets later (when those lie inside buf),
// or -1.
func FindSyncOffset(buf []byte) int {
	if len(buf) < PacketSize {
		return -1
	}

	for offset := 0; offset < PacketSize && offset < len(buf); offset++ {
		if buf[offset] != SyncByte {
			continue
		}
		if p2 := offset + PacketSize; p2 < len(buf) && buf[p2] != SyncByte {
			continue
		}
		if p3 := offset + 2*PacketSize; p3 < len(buf) && buf[p3] != SyncByte {
			continue
		}

		return offset
	}

	return -1
}

func pid(packet []byte) uint16 {
	return uint16(packet[1]&0x1f)<<8 | uint16(packet[2])
}

func adaptationFieldControl(packet []byte) byte {
	return (packet[3] >> 4) & 0x03
}

// collect walks whole packets from the sync offset and gathers the values
// extract accepts. Packets that lost sync are skipped.
func collect(buf []byte, extract func(packet []byte) (uint64, bool)) []Sample {
	offset := FindSyncOffset(buf)
	if offset < 0 {
		return nil
	}

	var samples []Sample
	for pos := offset; pos+PacketSize <= len(buf); pos += PacketSize {
		packet := buf[pos : pos+PacketSize]
		if packet[0] != SyncByte {
			continue
		}

		if value, ok := extract(packet); ok {
			samples = append(samples, Sample{PID: pid(packet), Value: value})
		}
	}

	return samples
}

func Collect(buf []byte, kind Kind) []Sample {
	if kind == KindPCR {
		return CollectPCR(buf)
	}

	return CollectPTS(buf)
}

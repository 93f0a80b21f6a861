package mpegts

func CollectPCR(buf []byte) []Sample {
	return collect(buf, readPCR)
}

// readPCR returns the 33-bit program clock reference base. The 9-bit
// extension is ignored.
func readPCR(packet []byte) (uint64, bool) {
	afc := adaptationFieldControl(packet)
	if afc != 2 && afc != 3 {
		return 0, false
	}

	adaptationLength := int(packet[4])
	if adaptationLength < 7 || adaptationLength > PacketSize-5 {
		return 0, false
	}

	if packet[5]&0x10 == 0 {
		return 0, false
	}

	b := packet[6:11]
	base := uint64(b[0])<<25 |
		uint64(b[1])<<17 |
		uint64(b[2])<<9 |
		uint64(b[3])<<1 |
		uint64(b[4]>>7)

	return base, true
}

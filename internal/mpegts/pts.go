package mpegts

func CollectPTS(buf []byte) []Sample {
	return collect(buf, readPTS)
}

// readPTS returns the presentation timestamp of a PES header starting in
// this packet.
func readPTS(packet []byte) (uint64, bool) {
	if packet[1]&0x40 == 0 {
		return 0, false
	}

	afc := adaptationFieldControl(packet)
	if afc == 0 || afc == 2 {
		return 0, false
	}

	payloadStart := 4
	if afc == 3 {
		payloadStart = 5 + int(packet[4])
	}
	if payloadStart+14 > PacketSize {
		return 0, false
	}

	payload := packet[payloadStart:]
	if payload[0] != 0x00 || payload[1] != 0x00 || payload[2] != 0x01 {
		return 0, false
	}

	if payload[7]&0x80 == 0 {
		return 0, false
	}

	b := payload[9:14]
	pts := uint64((b[0]&0x0e)>>1)<<30 |
		uint64(b[1])<<22 |
		uint64((b[2]&0xfe)>>1)<<15 |
		uint64(b[3])<<7 |
		uint64((b[4]&0xfe)>>1)

	return pts, true
}

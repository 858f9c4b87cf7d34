package sio

// Checksum computes the SIO bus checksum: an 8 bit sum where every carry out
// of bit 7 is added back into the low byte.
func Checksum(data []byte) byte {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
		sum = (sum >> 8) + (sum & 0xFF)
	}
	return byte(sum)
}

// AppendChecksum returns data followed by its checksum byte.
func AppendChecksum(data []byte) []byte {
	out := make([]byte, 0, len(data)+1)
	out = append(out, data...)
	return append(out, Checksum(data))
}

package ant

// Framer splits a byte stream from the stick into checksum-valid frames.
// Bytes before a sync byte are discarded; a frame with a bad checksum or an
// impossible length is dropped and scanning resumes after its sync byte.
type Framer struct {
	buf     []byte
	Dropped int // count of frames rejected by length or checksum
}

// Feed appends stream bytes and calls emit for each complete frame, in order.
// The slice passed to emit is only valid for the duration of the call.
func (f *Framer) Feed(p []byte, emit func([]byte)) {
	f.buf = append(f.buf, p...)
	for {
		// Skip to the next sync byte
		start := 0
		for start < len(f.buf) && f.buf[start] != Sync {
			start++
		}
		f.buf = f.buf[start:]

		if len(f.buf) < HeaderSize {
			break
		}
		length := int(f.buf[IndexMsgLen])
		if length > MaxDataLength {
			f.Dropped++
			f.buf = f.buf[1:]
			continue
		}
		size := HeaderSize + length + 1
		if len(f.buf) < size {
			break
		}
		if Checksum(f.buf[:size-1]) != f.buf[size-1] {
			f.Dropped++
			f.buf = f.buf[1:]
			continue
		}
		emit(f.buf[:size])
		f.buf = f.buf[size:]
	}

	// Keep the pending tail in a fresh array so the buffer does not grow forever.
	if cap(f.buf) > 4*MaxDataLength {
		f.buf = append([]byte(nil), f.buf...)
	}
}

// Reset discards any partially received frame.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

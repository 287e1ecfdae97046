package bits

// Writer writes big-endian bit fields and little-endian integers.
type Writer struct {
	buf  []byte // total buf
	byte byte   // current byte
	bits byte   // bits left in byte
	len  int    // current len of buf
}

func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf[:0]}
}

func (w *Writer) WriteBit(b byte) {
	if w.bits == 0 {
		if w.len != 0 {
			w.buf = append(w.buf, w.byte)
		}

		w.byte = 0
		w.bits = 7
		w.len++
	} else {
		w.bits--
	}

	w.byte |= b << w.bits
}

func (w *Writer) WriteBits(v uint32, n byte) {
	for i := n - 1; i != 255; i-- {
		w.WriteBit(byte(v>>i) & 0b1)
	}
}

func (w *Writer) WriteByte(b byte) error {
	w.WriteBits(uint32(b), 8)
	return nil
}

// WriteUint - big-endian unsigned value of n bytes (n <= 4)
func (w *Writer) WriteUint(v uint32, n int) {
	w.WriteBits(v, byte(n*8))
}

func (w *Writer) WriteUint16LE(v uint16) {
	_ = w.WriteByte(byte(v))
	_ = w.WriteByte(byte(v >> 8))
}

func (w *Writer) WriteUint32LE(v uint32) {
	w.WriteUint16LE(uint16(v))
	w.WriteUint16LE(uint16(v >> 16))
}

func (w *Writer) WriteBytes(b ...byte) {
	for _, c := range b {
		_ = w.WriteByte(c)
	}
}

func (w *Writer) Bytes() []byte {
	if w.len == 0 {
		return w.buf
	}
	// current byte is flushed only on the next bit
	return append(w.buf, w.byte)
}

package bits

// Reader reads big-endian bit fields and little-endian integers from a byte slice.
type Reader struct {
	EOF bool // if end of buffer raised during reading

	buf  []byte // total buf
	byte byte   // current byte
	bits byte   // bits left in byte
	pos  int    // current pos in buf
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

//goland:noinspection GoStandardMethods
func (r *Reader) ReadByte() byte {
	if r.bits != 0 {
		return r.ReadBits8(8)
	}

	if r.pos >= len(r.buf) {
		r.EOF = true
		return 0
	}

	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *Reader) ReadBit() byte {
	if r.bits == 0 {
		r.byte = r.ReadByte()
		r.bits = 7
	} else {
		r.bits--
	}

	return (r.byte >> r.bits) & 0b1
}

func (r *Reader) ReadBits(n byte) (res uint32) {
	for i := n - 1; i != 255; i-- {
		res |= uint32(r.ReadBit()) << i
	}
	return
}

func (r *Reader) ReadBits8(n byte) (res uint8) {
	for i := n - 1; i != 255; i-- {
		res |= r.ReadBit() << i
	}
	return
}

// ReadUint - big-endian unsigned value of n bytes (n <= 4)
func (r *Reader) ReadUint(n int) (res uint32) {
	for i := 0; i < n; i++ {
		res = res<<8 | uint32(r.ReadByte())
	}
	return
}

func (r *Reader) ReadUint16LE() uint16 {
	return uint16(r.ReadByte()) | uint16(r.ReadByte())<<8
}

func (r *Reader) ReadUint32LE() uint32 {
	return uint32(r.ReadUint16LE()) | uint32(r.ReadUint16LE())<<16
}

func (r *Reader) ReadBytes(n int) (b []byte) {
	if r.bits == 0 {
		if r.pos+n > len(r.buf) {
			r.EOF = true
			return nil
		}

		b = r.buf[r.pos : r.pos+n]
		r.pos += n
	} else {
		b = make([]byte, n)
		for i := 0; i < n; i++ {
			b[i] = r.ReadByte()
		}
	}

	return
}

// Skip - skip n whole bytes, drops partially read byte
func (r *Reader) Skip(n int) {
	r.bits = 0
	if r.pos += n; r.pos > len(r.buf) {
		r.pos = len(r.buf)
		r.EOF = true
	}
}

func (r *Reader) Left() []byte {
	return r.buf[r.pos:]
}

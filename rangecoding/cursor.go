package rangecoding

// frontCursor reads whole bytes from the start of the buffer. It feeds the
// arithmetic-coded stream.
type frontCursor struct {
	offs uint32
}

// tailCursor reads raw bits from the end of the buffer, least significant
// bit first. It feeds DecodeRawBits.
type tailCursor struct {
	offs   uint32 // bytes consumed from the end
	window uint32
	nbits  int
}

// next returns the next byte from the front, or 0 past the end of storage.
func (c *frontCursor) next(buf []byte, storage uint32) byte {
	if c.offs < storage {
		b := buf[c.offs]
		c.offs++
		return b
	}
	return 0
}

func (c *tailCursor) nextByte(buf []byte, storage uint32) byte {
	if c.offs < storage {
		c.offs++
		return buf[storage-c.offs]
	}
	return 0
}

// read extracts n raw bits. Past the start of the buffer zeros are shifted in.
func (c *tailCursor) read(buf []byte, storage uint32, n uint) uint32 {
	if c.nbits < int(n) {
		for c.nbits <= EC_WINDOW-EC_SYM_BITS {
			c.window |= uint32(c.nextByte(buf, storage)) << uint(c.nbits)
			c.nbits += EC_SYM_BITS
		}
	}
	v := c.window & (uint32(1)<<n - 1)
	c.window >>= n
	c.nbits -= int(n)
	return v
}

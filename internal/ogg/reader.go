package ogg

import (
	"errors"
	"io"
)

// maxPageSize is the largest possible Ogg page: a full header, 255 lacing
// values and 255 segments of 255 bytes.
const maxPageSize = pageHeaderSize + 255 + 255*255

// Reader reads Opus packets from an Ogg container. Pages of other logical
// streams are skipped.
type Reader struct {
	r      io.Reader
	Header *OpusHead // Parsed ID header (set by NewReader)
	Vendor string    // Encoder vendor string from OpusTags

	serial     uint32
	granulePos uint64
	eos        bool

	buf    []byte
	off, n int

	queue    [][]byte // Complete packets not yet returned
	partial  []byte   // Packet continuing on the next page
	skipping bool     // Dropping the tail of a packet whose start was lost
}

// NewReader creates a Reader and parses the OpusHead and OpusTags headers.
func NewReader(r io.Reader) (*Reader, error) {
	rd := &Reader{r: r, buf: make([]byte, 2*maxPageSize)}

	page, err := rd.readPage()
	if err != nil {
		if err == io.EOF {
			return nil, ErrInvalidPage
		}
		return nil, err
	}
	if !page.IsBOS() {
		return nil, ErrInvalidPage
	}
	rd.serial = page.SerialNumber
	rd.addPage(page)

	head, err := rd.NextPacket()
	if err != nil {
		return nil, headerErr(err)
	}
	if rd.Header, err = ParseOpusHead(head); err != nil {
		return nil, err
	}

	tags, err := rd.NextPacket()
	if err != nil {
		return nil, headerErr(err)
	}
	if rd.Vendor, err = parseVendor(tags); err != nil {
		return nil, err
	}
	return rd, nil
}

func headerErr(err error) error {
	if err == io.EOF {
		return ErrInvalidHeader
	}
	return err
}

// NextPacket returns the next packet of the stream, or io.EOF after the
// last one. The returned slice is owned by the caller.
func (rd *Reader) NextPacket() ([]byte, error) {
	for len(rd.queue) == 0 {
		if rd.eos {
			if rd.partial != nil {
				return nil, ErrUnexpectedEOS
			}
			return nil, io.EOF
		}
		page, err := rd.readPage()
		if err == io.EOF {
			rd.eos = true
			continue
		}
		if err != nil {
			return nil, err
		}
		if page.SerialNumber != rd.serial {
			continue
		}
		rd.addPage(page)
	}
	p := rd.queue[0]
	rd.queue[0] = nil
	rd.queue = rd.queue[1:]
	return p, nil
}

// addPage splits a page into packets using its lacing values.
func (rd *Reader) addPage(page *Page) {
	if page.IsContinuation() {
		rd.skipping = rd.partial == nil
	} else {
		// The continuation was lost; the partial packet cannot be completed.
		rd.partial = nil
		rd.skipping = false
	}
	if page.IsEOS() {
		rd.eos = true
	}
	if page.GranulePos != ^uint64(0) {
		rd.granulePos = page.GranulePos
	}

	off := 0
	for _, seg := range page.Segments {
		data := page.Payload[off : off+int(seg)]
		off += int(seg)
		if !rd.skipping {
			if rd.partial == nil {
				rd.partial = make([]byte, 0, int(seg))
			}
			rd.partial = append(rd.partial, data...)
		}
		if seg < 255 {
			if !rd.skipping {
				rd.queue = append(rd.queue, rd.partial)
			}
			rd.partial = nil
			rd.skipping = false
		}
	}
}

// readPage reads the next Ogg page from the underlying reader.
func (rd *Reader) readPage() (*Page, error) {
	for {
		if rd.n-rd.off >= len(oggMagic) && string(rd.buf[rd.off:rd.off+len(oggMagic)]) != oggMagic {
			return nil, ErrInvalidPage
		}
		if rd.n > rd.off {
			page, size, err := ParsePage(rd.buf[rd.off:rd.n])
			if err == nil {
				rd.off += size
				return page, nil
			}
			if errors.Is(err, ErrBadCRC) || rd.n-rd.off >= maxPageSize {
				return nil, err
			}
		}

		// Compact so a full page always fits after the read offset.
		if rd.off > 0 {
			copy(rd.buf, rd.buf[rd.off:rd.n])
			rd.n -= rd.off
			rd.off = 0
		}

		m, err := rd.r.Read(rd.buf[rd.n:])
		rd.n += m
		if err == io.EOF {
			if rd.n == rd.off {
				return nil, io.EOF
			}
			if m == 0 {
				_, _, perr := ParsePage(rd.buf[rd.off:rd.n])
				if errors.Is(perr, ErrInvalidPage) {
					return nil, ErrUnexpectedEOS
				}
				return nil, perr
			}
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}

// Channels returns the channel count from the OpusHead header.
func (rd *Reader) Channels() int {
	return int(rd.Header.Channels)
}

// PreSkip returns the pre-skip value from the OpusHead header.
func (rd *Reader) PreSkip() int {
	return int(rd.Header.PreSkip)
}

// GranulePos returns the granule position of the last page read.
func (rd *Reader) GranulePos() uint64 {
	return rd.granulePos
}

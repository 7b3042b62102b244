// Package ogg extracts Opus packets from an Ogg Opus file (RFC 7845), so
// encoded .opus files can be fed to a stream decoder.
//
// Only single-stream files (channel mapping family 0) are supported.
package ogg

import (
	"encoding/binary"
	"errors"
)

// Errors returned while reading a stream.
var (
	// ErrInvalidPage indicates the page structure is malformed.
	// This includes missing "OggS" magic, invalid version, or truncated data.
	ErrInvalidPage = errors.New("ogg: invalid page structure")

	// ErrInvalidHeader indicates an Opus header (OpusHead or OpusTags) is malformed.
	ErrInvalidHeader = errors.New("ogg: invalid Opus header")

	// ErrBadCRC indicates the page CRC checksum does not match the computed value.
	ErrBadCRC = errors.New("ogg: CRC mismatch")

	// ErrUnexpectedEOS indicates the stream ended inside a packet.
	ErrUnexpectedEOS = errors.New("ogg: unexpected end of stream")

	// ErrUnsupportedMapping indicates a multistream channel mapping.
	ErrUnsupportedMapping = errors.New("ogg: unsupported channel mapping family")
)

// Page header flag constants.
const (
	// PageFlagContinuation indicates this page contains data from a packet
	// that began on a previous page.
	PageFlagContinuation = 0x01

	// PageFlagBOS (Beginning of Stream) indicates this is the first page
	// of a logical bitstream.
	PageFlagBOS = 0x02

	// PageFlagEOS (End of Stream) indicates this is the last page of a
	// logical bitstream.
	PageFlagEOS = 0x04
)

const (
	pageHeaderSize = 27
	oggMagic       = "OggS"
)

// Magic is the capture pattern every Ogg file starts with.
const Magic = oggMagic

// crcTable is the lookup table for the Ogg CRC-32 (polynomial 0x04C11DB7,
// unreflected). hash/crc32 only implements the reflected variants.
var crcTable = func() (t [256]uint32) {
	const poly = uint32(0x04C11DB7)
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}()

func crcUpdate(crc uint32, data []byte) uint32 {
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}

// pageCRC computes the checksum of an encoded page with its CRC field
// treated as zero.
func pageCRC(page []byte) uint32 {
	var zero [4]byte
	crc := crcUpdate(0, page[:22])
	crc = crcUpdate(crc, zero[:])
	return crcUpdate(crc, page[26:])
}

// Page is a single Ogg page. Segments and Payload alias the buffer the
// page was parsed from.
type Page struct {
	HeaderType   byte
	GranulePos   uint64
	SerialNumber uint32
	PageSequence uint32
	Segments     []byte
	Payload      []byte
}

// IsBOS returns true if this is a Beginning of Stream page.
func (p *Page) IsBOS() bool {
	return p.HeaderType&PageFlagBOS != 0
}

// IsEOS returns true if this is an End of Stream page.
func (p *Page) IsEOS() bool {
	return p.HeaderType&PageFlagEOS != 0
}

// IsContinuation returns true if this page continues a packet from a previous page.
func (p *Page) IsContinuation() bool {
	return p.HeaderType&PageFlagContinuation != 0
}

// ParsePage parses one page from the start of data and returns it with the
// number of bytes it occupies.
func ParsePage(data []byte) (*Page, int, error) {
	if len(data) < pageHeaderSize || string(data[0:4]) != oggMagic || data[4] != 0 {
		return nil, 0, ErrInvalidPage
	}
	numSegments := int(data[26])
	headerSize := pageHeaderSize + numSegments
	if len(data) < headerSize {
		return nil, 0, ErrInvalidPage
	}
	segments := data[pageHeaderSize:headerSize]
	payloadSize := 0
	for _, seg := range segments {
		payloadSize += int(seg)
	}
	totalSize := headerSize + payloadSize
	if len(data) < totalSize {
		return nil, 0, ErrInvalidPage
	}
	if pageCRC(data[:totalSize]) != binary.LittleEndian.Uint32(data[22:26]) {
		return nil, 0, ErrBadCRC
	}
	return &Page{
		HeaderType:   data[5],
		GranulePos:   binary.LittleEndian.Uint64(data[6:14]),
		SerialNumber: binary.LittleEndian.Uint32(data[14:18]),
		PageSequence: binary.LittleEndian.Uint32(data[18:22]),
		Segments:     segments,
		Payload:      data[headerSize:totalSize:totalSize],
	}, totalSize, nil
}

// Encode serializes the page with its CRC.
func (p *Page) Encode() []byte {
	headerSize := pageHeaderSize + len(p.Segments)
	data := make([]byte, headerSize+len(p.Payload))
	copy(data[0:4], oggMagic)
	data[5] = p.HeaderType
	binary.LittleEndian.PutUint64(data[6:14], p.GranulePos)
	binary.LittleEndian.PutUint32(data[14:18], p.SerialNumber)
	binary.LittleEndian.PutUint32(data[18:22], p.PageSequence)
	data[26] = byte(len(p.Segments))
	copy(data[pageHeaderSize:], p.Segments)
	copy(data[headerSize:], p.Payload)
	binary.LittleEndian.PutUint32(data[22:26], pageCRC(data))
	return data
}

// SegmentTable returns the lacing values of a packet of n bytes. A packet
// whose length is a multiple of 255 ends with a zero-length segment.
func SegmentTable(n int) []byte {
	segments := make([]byte, n/255+1)
	for i := 0; i < n/255; i++ {
		segments[i] = 255
	}
	segments[n/255] = byte(n % 255)
	return segments
}

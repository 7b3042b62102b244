// Package bitstream reads opus_demo .bit files: the framing used by the
// RFC 8251 test vectors.
//
// The format per packet is (big-endian, network byte order):
//   - uint32_be: packet_length (4 bytes)
//   - uint32_be: enc_final_range (4 bytes, range coder verification)
//   - byte[packet_length]: opus_packet_data
package bitstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Errors returned by the parser.
var (
	// ErrTruncatedHeader indicates insufficient data for packet header.
	ErrTruncatedHeader = errors.New("bitstream: truncated packet header (need 8 bytes)")

	// ErrTruncatedPacket indicates packet data shorter than header specified.
	ErrTruncatedPacket = errors.New("bitstream: truncated packet data")
)

// headerSize is the per-packet framing overhead.
const headerSize = 8

// Packet is one opus_demo record.
type Packet struct {
	// Data is the raw Opus packet including the TOC byte. It aliases the
	// buffer it was parsed from.
	Data []byte

	// FinalRange is the encoder's range coder state after the packet.
	FinalRange uint32
}

// Parse splits data into packets. Packet data is not copied: every
// Packet.Data is a subslice of data and is only valid as long as data is.
// Empty input yields no packets and no error.
func Parse(data []byte) ([]Packet, error) {
	var packets []Packet
	offset := 0
	for offset < len(data) {
		p, n, err := next(data, offset)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
		offset += n
	}
	return packets, nil
}

// next reads the record at offset and returns it with its encoded size.
func next(data []byte, offset int) (Packet, int, error) {
	if offset+headerSize > len(data) {
		return Packet{}, 0, fmt.Errorf("%w: at offset %d, have %d bytes",
			ErrTruncatedHeader, offset, len(data)-offset)
	}
	packetLen := binary.BigEndian.Uint32(data[offset:])
	finalRange := binary.BigEndian.Uint32(data[offset+4:])
	start := offset + headerSize
	if uint64(packetLen) > uint64(len(data)-start) {
		return Packet{}, 0, fmt.Errorf("%w: header says %d bytes, have %d",
			ErrTruncatedPacket, packetLen, len(data)-start)
	}
	end := start + int(packetLen)
	return Packet{Data: data[start:end:end], FinalRange: finalRange}, headerSize + int(packetLen), nil
}

// Append encodes p in .bit framing and appends it to dst.
func Append(dst []byte, p Packet) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(p.Data)))
	dst = binary.BigEndian.AppendUint32(dst, p.FinalRange)
	return append(dst, p.Data...)
}

// Reader yields the packets of a .bit buffer one at a time.
type Reader struct {
	data   []byte
	offset int
	last   Packet
}

// NewReader returns a Reader over data. Packets alias data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Packet, error) {
	if r.offset >= len(r.data) {
		return Packet{}, io.EOF
	}
	p, n, err := next(r.data, r.offset)
	if err != nil {
		return Packet{}, err
	}
	r.offset += n
	r.last = p
	return p, nil
}

// NextPacket returns the payload of the next record, or io.EOF after the
// last one.
func (r *Reader) NextPacket() ([]byte, error) {
	p, err := r.Next()
	if err != nil {
		return nil, err
	}
	return p.Data, nil
}

// FinalRange returns the final range of the record most recently read.
func (r *Reader) FinalRange() uint32 {
	return r.last.FinalRange
}

// Info contains summary information about a parsed bitstream.
type Info struct {
	PacketCount int  // Number of packets in the bitstream
	TotalBytes  int  // Total bytes of packet data (excluding headers)
	FirstTOC    byte // TOC byte of first packet (for mode detection)
	CELTPackets int  // Packets whose TOC selects CELT-only mode
	Duration    int  // Samples at 48kHz, from each packet's TOC and frame count
}

// Summarize returns summary information about packets.
func Summarize(packets []Packet) Info {
	info := Info{PacketCount: len(packets)}
	for i, p := range packets {
		info.TotalBytes += len(p.Data)
		if len(p.Data) == 0 {
			continue
		}
		toc := p.Data[0]
		if i == 0 {
			info.FirstTOC = toc
		}
		config := toc >> 3
		if config >= 16 {
			info.CELTPackets++
		}
		info.Duration += frameSize(config) * frameCount(p.Data)
	}
	return info
}

// frameSize returns frame size in samples at 48kHz for a config index.
// RFC 6716 Section 3.1, Table 2.
func frameSize(config byte) int {
	switch {
	case config < 12: // SILK: 10/20/40/60ms
		return []int{480, 960, 1920, 2880}[config%4]
	case config < 16: // Hybrid: 10/20ms
		return []int{480, 960}[config%2]
	default: // CELT: 2.5/5/10/20ms
		return []int{120, 240, 480, 960}[config%4]
	}
}

// frameCount returns the number of frames coded by a packet, 0 if a code 3
// packet lacks its count byte.
func frameCount(data []byte) int {
	switch data[0] & 0x03 {
	case 0:
		return 1
	case 1, 2:
		return 2
	default:
		if len(data) < 2 {
			return 0
		}
		return int(data[1] & 0x3F)
	}
}

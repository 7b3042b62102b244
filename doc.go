// Package celtdec decodes the frame headers of CELT-only Opus packets.
//
// For every frame it recovers the values the CELT synthesis stage is driven
// by: silence, postfilter pitch and gains, the transient flag, coarse band
// energies, per-band time-frequency changes, the spread decision and the bit
// allocation that assigns a pulse budget to each band (RFC 6716 Section 4.3).
//
// # Packet Structure
//
// Each Opus packet starts with a TOC (Table of Contents) byte:
//   - Bits 7-3: Configuration (0-31)
//   - Bit 2: Stereo flag
//   - Bits 1-0: Frame count code (0-3)
//
// Use ParseTOC to extract these fields, and ParsePacket to determine
// the frame boundaries within a packet.
//
// # Decoding
//
// A Stream holds the state of one logical stream. Energies decoded for one
// frame predict the next, so packets must be fed in order:
//
//	s, err := celtdec.NewStream(true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	frames, err := s.DecodePacket(packet)
//
// The lower layers are usable on their own: package rangecoding holds the
// entropy decoder and package celt the frame decoder.
package celtdec

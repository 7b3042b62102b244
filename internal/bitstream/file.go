package bitstream

import "fmt"

// File is a .bit file held in memory. On unix systems the file is mapped
// read-only, so packets are views into the mapping and become invalid
// after Close.
type File struct {
	data    []byte
	unmap   func() error
	packets []Packet
}

// Open reads and parses the .bit file at path.
func Open(path string) (*File, error) {
	data, unmap, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("bitstream: failed to read file: %w", err)
	}
	packets, err := Parse(data)
	if err != nil {
		_ = unmap()
		return nil, fmt.Errorf("bitstream: failed to parse %s: %w", path, err)
	}
	return &File{data: data, unmap: unmap, packets: packets}, nil
}

// Packets returns the packets of the file.
func (f *File) Packets() []Packet {
	return f.packets
}

// Reader returns a Reader positioned at the first packet.
func (f *File) Reader() *Reader {
	return NewReader(f.data)
}

// Close releases the file. Packets must not be used afterwards.
func (f *File) Close() error {
	if f.unmap == nil {
		return nil
	}
	err := f.unmap()
	f.unmap = nil
	f.data = nil
	f.packets = nil
	return err
}

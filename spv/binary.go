// Package spv reads, checks and patches SPIR-V binaries.
//
// Binaries are handled as byte slices in either endianness. The header is
// five words: magic, version, generator, id bound and schema.
package spv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic is the first word of every SPIR-V module.
const Magic uint32 = 0x07230203

// HeaderWords is the number of words in the module header.
const HeaderWords = 5

// Opcodes the structural validator cares about.
const (
	OpMemoryModel uint16 = 14
	OpEntryPoint  uint16 = 15
	OpCapability  uint16 = 17
)

// Sentinel errors.
var (
	ErrTruncated = errors.New("spv: binary shorter than the module header")
	ErrAlignment = errors.New("spv: binary length is not a multiple of 4")
	ErrBadMagic  = errors.New("spv: bad magic number")
)

// Header is the decoded module header.
type Header struct {
	Version   Version
	Generator uint32
	Bound     uint32
	Schema    uint32
}

// byteOrder detects the endianness of b from its magic number.
func byteOrder(b []byte) (binary.ByteOrder, error) {
	if len(b)%4 != 0 {
		return nil, ErrAlignment
	}
	if len(b) < HeaderWords*4 {
		return nil, ErrTruncated
	}
	switch {
	case binary.LittleEndian.Uint32(b) == Magic:
		return binary.LittleEndian, nil
	case binary.BigEndian.Uint32(b) == Magic:
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("%w: 0x%08x", ErrBadMagic, binary.LittleEndian.Uint32(b))
}

// Words converts a binary into host words, honoring its endianness.
func Words(b []byte) ([]uint32, error) {
	order, err := byteOrder(b)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = order.Uint32(b[i*4:])
	}
	return words, nil
}

// Bytes converts words into a little-endian binary.
func Bytes(words []uint32) []byte {
	b := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	return b
}

// ParseHeader decodes the module header of b.
func ParseHeader(b []byte) (Header, error) {
	order, err := byteOrder(b)
	if err != nil {
		return Header{}, err
	}
	return Header{
		Version:   VersionFromWord(order.Uint32(b[4:])),
		Generator: order.Uint32(b[8:]),
		Bound:     order.Uint32(b[12:]),
		Schema:    order.Uint32(b[16:]),
	}, nil
}

// ExtractVersion returns the SPIR-V version embedded in b.
func ExtractVersion(b []byte) (Version, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return Version{}, err
	}
	return h.Version, nil
}

// SetVersion rewrites the header version word of b in place.
func SetVersion(b []byte, v Version) error {
	order, err := byteOrder(b)
	if err != nil {
		return err
	}
	order.PutUint32(b[4:], v.Word())
	return nil
}

// Package pfh implements the PACSAT File Header codec: a type-length-value
// record set with a magic-and-checksum prefix that precedes every stored
// file body. Header decoding never has side effects.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package pfh

import (
	"fmt"

	"github.com/ke4ahr/pacsatd/internal/crc16"
	"github.com/ke4ahr/pacsatd/internal/debug"
)

var magic = [2]byte{0xAA, 0x55}

// item identifiers, per the wire table.
const (
	itemFileNum     = 0x01
	itemName        = 0x02
	itemExt         = 0x03
	itemFileType    = 0x04
	itemBodySize    = 0x05
	itemCreateTime  = 0x07
	itemUploadTime  = 0x08
	itemStatusFlags = 0x09
	itemBodyOffset  = 0x0B
	itemCompression = 0x0C
	itemDescription = 0x0D
	itemDownloads   = 0x14
	itemPriority    = 0x15
	itemForwarding  = 0x63

	itemTerminator = 0x00
)

const maxWireSize = 65535

// ErrKind distinguishes the ways header encode/decode can fail; it
// satisfies the error interface directly so callers can compare with
// errors.Is against the package-level sentinels below.
type ErrKind string

func (e ErrKind) Error() string { return string(e) }

const (
	ErrBadMagic      ErrKind = "pfh: bad magic"
	ErrBadChecksum   ErrKind = "pfh: bad checksum"
	ErrTruncated     ErrKind = "pfh: truncated"
	ErrMalformedItem ErrKind = "pfh: malformed item"
	ErrInvalidField  ErrKind = "pfh: invalid field"
)

// PFH is the decoded PACSAT File Header. Fields map 1:1 to the item table;
// optional fields use their zero value to mean "absent", matching the
// encode rule that zero/empty optional fields are omitted from the wire.
type PFH struct {
	FileNum     uint32
	Name        string // 8 chars, space-padded on the wire
	Ext         string // 3 chars, space-padded on the wire
	FileType    uint8
	BodySize    uint32
	CreateTime  uint32 // epoch seconds
	UploadTime  uint32 // epoch seconds
	StatusFlags uint8
	BodyOffset  uint16

	Compression uint8  // 0=none, 1=LZW-era, 2=PKZIP; 0 is "absent"
	Description string // empty is "absent"
	Downloads   uint32 // 0 is "absent"
	Priority    uint8  // 0 is "absent"
	Forwarding  []string
}

// Encode serializes p in the mandatory-then-optional tabulated order and
// prepends MAGIC‖CRC16. Optional items are emitted only when their field
// is non-zero/non-empty. Fails with ErrInvalidField if Name/Ext overflow
// their fixed width or if the serialized size would exceed 65535 bytes
// (body_offset is u16).
func Encode(p PFH) ([]byte, error) {
	if len(p.Name) > 8 {
		return nil, fmt.Errorf("%w: name %q exceeds 8 bytes", ErrInvalidField, p.Name)
	}
	if len(p.Ext) > 3 {
		return nil, fmt.Errorf("%w: ext %q exceeds 3 bytes", ErrInvalidField, p.Ext)
	}

	items := make([]byte, 0, 64)
	items = putItem(items, itemFileNum, u32le(p.FileNum))
	items = putItem(items, itemName, padRight(p.Name, 8))
	items = putItem(items, itemExt, padRight(p.Ext, 3))
	items = putItem(items, itemFileType, []byte{p.FileType})
	items = putItem(items, itemBodySize, u32le(p.BodySize))
	items = putItem(items, itemCreateTime, u32le(p.CreateTime))
	items = putItem(items, itemUploadTime, u32le(p.UploadTime))
	items = putItem(items, itemStatusFlags, []byte{p.StatusFlags})
	items = putItem(items, itemBodyOffset, u16le(p.BodyOffset))

	if p.Compression != 0 {
		items = putItem(items, itemCompression, []byte{p.Compression})
	}
	if p.Description != "" {
		items = putItem(items, itemDescription, []byte(p.Description))
	}
	if p.Downloads != 0 {
		items = putItem(items, itemDownloads, u32le(p.Downloads))
	}
	if p.Priority != 0 {
		items = putItem(items, itemPriority, []byte{p.Priority})
	}
	if len(p.Forwarding) > 0 {
		items = putItem(items, itemForwarding, []byte(joinSemi(p.Forwarding)))
	}

	items = append(items, itemTerminator, 0, 0) // id=0, len=0

	out := make([]byte, 0, 4+len(items))
	out = append(out, magic[0], magic[1])
	out = crc16.PutUint16LE(out, crc16.Checksum(items))
	out = append(out, items...)

	if len(out) > maxWireSize {
		return nil, fmt.Errorf("%w: serialized header is %d bytes, exceeds %d", ErrInvalidField, len(out), maxWireSize)
	}
	return out, nil
}

// Decode parses a wire-format header: verifies magic and the CRC over the
// items blob up to and including its terminator (bytes after the
// terminator, such as a stored body, are ignored), then walks items,
// tolerating unknown IDs by skipping their payload, stopping at the zero
// terminator or when fewer than 3 bytes remain for an item header.
func Decode(b []byte) (PFH, error) {
	if len(b) < 4 {
		return PFH{}, ErrTruncated
	}
	if b[0] != magic[0] || b[1] != magic[1] {
		return PFH{}, ErrBadMagic
	}
	wantCRC := crc16.Uint16LE(b[2:4])
	items := b[4:]
	for off := 0; off+3 <= len(items); {
		if items[off] == itemTerminator {
			items = items[:off+3]
			break
		}
		off += 3 + int(crc16.Uint16LE(items[off+1:off+3]))
	}
	if crc16.Checksum(items) != wantCRC {
		return PFH{}, ErrBadChecksum
	}

	var p PFH
	off := 0
	end := len(items)
	for {
		if off >= end-2 {
			break
		}
		id := items[off]
		if id == itemTerminator {
			break
		}
		if off+3 > end {
			return PFH{}, ErrTruncated
		}
		l := int(crc16.Uint16LE(items[off+1 : off+3]))
		start := off + 3
		if start+l > end {
			return PFH{}, ErrTruncated
		}
		payload := items[start : start+l]
		if err := applyItem(&p, id, payload); err != nil {
			return PFH{}, err
		}
		off = start + l
	}
	return p, nil
}

func applyItem(p *PFH, id byte, payload []byte) error {
	switch id {
	case itemFileNum:
		if len(payload) != 4 {
			return ErrMalformedItem
		}
		p.FileNum = getU32le(payload)
	case itemName:
		p.Name = trimPad(payload)
	case itemExt:
		p.Ext = trimPad(payload)
	case itemFileType:
		if len(payload) != 1 {
			return ErrMalformedItem
		}
		p.FileType = payload[0]
	case itemBodySize:
		if len(payload) != 4 {
			return ErrMalformedItem
		}
		p.BodySize = getU32le(payload)
	case itemCreateTime:
		if len(payload) != 4 {
			return ErrMalformedItem
		}
		p.CreateTime = getU32le(payload)
	case itemUploadTime:
		if len(payload) != 4 {
			return ErrMalformedItem
		}
		p.UploadTime = getU32le(payload)
	case itemStatusFlags:
		if len(payload) != 1 {
			return ErrMalformedItem
		}
		p.StatusFlags = payload[0]
	case itemBodyOffset:
		if len(payload) != 2 {
			return ErrMalformedItem
		}
		p.BodyOffset = crc16.Uint16LE(payload)
	case itemCompression:
		if len(payload) != 1 {
			return ErrMalformedItem
		}
		p.Compression = payload[0]
	case itemDescription:
		p.Description = string(payload)
	case itemDownloads:
		if len(payload) != 4 {
			return ErrMalformedItem
		}
		p.Downloads = getU32le(payload)
	case itemPriority:
		if len(payload) != 1 {
			return ErrMalformedItem
		}
		p.Priority = payload[0]
	case itemForwarding:
		p.Forwarding = splitSemi(string(payload))
	default:
		// unknown item IDs are skipped by the caller's offset arithmetic;
		// nothing to apply
	}
	return nil
}

func putItem(dst []byte, id byte, payload []byte) []byte {
	debug.Assert(len(payload) <= maxWireSize)
	dst = append(dst, id)
	dst = crc16.PutUint16LE(dst, uint16(len(payload)))
	dst = append(dst, payload...)
	return dst
}

func padRight(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	for i := len(s); i < n; i++ {
		b[i] = ' '
	}
	return b
}

func trimPad(b []byte) string {
	i := len(b)
	for i > 0 && b[i-1] == ' ' {
		i--
	}
	return string(b[:i])
}

func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func getU32le(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func u16le(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }

func joinSemi(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ";"
		}
		out += s
	}
	return out
}

func splitSemi(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ';' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

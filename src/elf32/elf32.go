// Package elf32 parses and loads ELF32 executables, the only binary
// format env_create understands. There is no dynamic linking, no
// relocation, and no section-header processing: only PT_LOAD program
// headers matter, mapped page by page through a caller-supplied
// callback so the loader stays agnostic to how pages actually get
// inserted into an address space.
package elf32

import "encoding/binary"
import "errors"

import "defs"

const (
	ET_EXEC = 2
	PT_LOAD = 1
	PF_X    = 1
	PF_W    = 2
	PF_R    = 4

	ehdrSize = 52
	phdrSize = 32
)

var magic = [4]byte{0x7f, 'E', 'L', 'F'}

/// Ehdr is the fields of an ELF32 header this loader cares about.
type Ehdr struct {
	Type    uint16
	Machine uint16
	Entry   uint32
	Phoff   uint32
	Phnum   uint16
}

/// Phdr is one ELF32 program header.
type Phdr struct {
	Type   uint32
	Offset uint32
	Vaddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
}

var errBadMagic = errors.New("elf32: not an ELF32 executable")

/// From checks binary's ELF magic and that its type is ET_EXEC, and
/// returns its header. It returns errBadMagic for anything else,
/// mirroring elf_from's accept-or-reject check; the class and
/// data-encoding bytes are not checked.
func From(binary []byte) (*Ehdr, error) {
	if len(binary) < ehdrSize {
		return nil, errBadMagic
	}
	if [4]byte(binary[0:4]) != magic {
		return nil, errBadMagic
	}
	e := &Ehdr{
		Type:    binary16(binary[16:18]),
		Machine: binary16(binary[18:20]),
		Entry:   binary32(binary[24:28]),
		Phoff:   binary32(binary[28:32]),
		Phnum:   binary16(binary[44:46]),
	}
	if e.Type != ET_EXEC {
		return nil, errBadMagic
	}
	return e, nil
}

func binary16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func binary32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

/// Phdrs returns every program header named by ehdr.
func Phdrs(ehdr *Ehdr, binary []byte) ([]Phdr, error) {
	out := make([]Phdr, 0, ehdr.Phnum)
	for i := uint16(0); i < ehdr.Phnum; i++ {
		off := ehdr.Phoff + uint32(i)*phdrSize
		if int(off+phdrSize) > len(binary) {
			return nil, errBadMagic
		}
		p := binary[off : off+phdrSize]
		out = append(out, Phdr{
			Type:   binary32(p[0:4]),
			Offset: binary32(p[4:8]),
			Vaddr:  binary32(p[8:12]),
			Filesz: binary32(p[16:20]),
			Memsz:  binary32(p[20:24]),
			Flags:  binary32(p[24:28]),
		})
	}
	return out, nil
}

/// MapPage installs one page's worth of segment content at va with
/// the given permission bits. src holds up to n bytes to copy in at
/// the page's pageOff byte offset; a nil src means the page should be
/// zero-filled (the segment's bss tail), still n bytes long.
type MapPage func(va uint32, pageOff uint32, perm uint32, src []byte, n uint32) error

func min(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func rounddown(v, b uint32) uint32 { return v - v%b }

/// LoadSegment maps one PT_LOAD header's content, page by page,
/// through mapPage: the unaligned leading partial page first, then
/// full pages of file content, then zero-filled pages for the part of
/// memsz beyond filesz (bss). This is a direct port of elf_load_seg.
func LoadSegment(ph *Phdr, binary []byte, mapPage MapPage) error {
	va := ph.Vaddr
	binSize := ph.Filesz
	sgSize := ph.Memsz
	perm := defs.PTE_V
	if ph.Flags&PF_W != 0 {
		perm |= defs.PTE_D
	}

	fileOff := ph.Offset
	offset := va - rounddown(va, defs.PGSIZE)

	var i uint32
	if offset != 0 {
		n := min(binSize, defs.PGSIZE-offset)
		if err := mapPage(va, offset, perm, binary[fileOff:fileOff+n], n); err != nil {
			return err
		}
		i = n
	}

	for ; i < binSize; i += defs.PGSIZE {
		n := min(binSize-i, defs.PGSIZE)
		if err := mapPage(va+i, 0, perm, binary[fileOff+i:fileOff+i+n], n); err != nil {
			return err
		}
	}

	for i < sgSize {
		n := min(sgSize-i, defs.PGSIZE)
		if err := mapPage(va+i, 0, perm, nil, n); err != nil {
			return err
		}
		i += defs.PGSIZE
	}
	return nil
}

/// LoadSegments maps every PT_LOAD header in the binary and returns
/// the image's entry point.
func LoadSegments(ehdr *Ehdr, binary []byte, mapPage MapPage) (uint32, error) {
	phdrs, err := Phdrs(ehdr, binary)
	if err != nil {
		return 0, err
	}
	for i := range phdrs {
		if phdrs[i].Type != PT_LOAD {
			continue
		}
		if err := LoadSegment(&phdrs[i], binary, mapPage); err != nil {
			return 0, err
		}
	}
	return ehdr.Entry, nil
}

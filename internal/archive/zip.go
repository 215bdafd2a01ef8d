// Package archive writes STORE-only ZIP containers: uncompressed entries
// with standard local headers, a central directory and an end-of-central-
// directory record. It exists for packaging bound-module bundles; nothing
// here inspects entry contents.
package archive

import (
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/funvibe/funbit/pkg/funbit"
)

const (
	sigLocalFile   = 0x04034b50
	sigCentralDir  = 0x02014b50
	sigEndOfDir    = 0x06054b50
	versionNeeded  = 20 // 2.0: plain STORE
	methodStore    = 0
	dosEpochYear   = 1980
)

// Writer assembles a STORE-only ZIP into w. Entries are written as they
// are added; Close writes the central directory.
type Writer struct {
	w      io.Writer
	offset uint32
	dir    []entry
	closed bool
}

type entry struct {
	name    string
	crc     uint32
	size    uint32
	mtime   time.Time
	offset  uint32
}

// NewWriter creates a ZIP writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Add writes one entry. Names must be unique and non-empty; data is
// stored uncompressed.
func (z *Writer) Add(name string, data []byte, mtime time.Time) error {
	if z.closed {
		return fmt.Errorf("archive: writer is closed")
	}
	if name == "" {
		return fmt.Errorf("archive: empty entry name")
	}
	for _, e := range z.dir {
		if e.name == name {
			return fmt.Errorf("archive: duplicate entry %q", name)
		}
	}
	crc := crc32.ChecksumIEEE(data)
	e := entry{
		name:   name,
		crc:    crc,
		size:   uint32(len(data)),
		mtime:  mtime,
		offset: z.offset,
	}

	b := funbit.NewBuilder()
	addU32(b, sigLocalFile)
	addU16(b, versionNeeded)
	addU16(b, 0) // general purpose flags
	addU16(b, methodStore)
	addU16(b, uint16(dosTime(mtime)))
	addU16(b, uint16(dosDate(mtime)))
	addU32(b, crc)
	addU32(b, e.size) // compressed == uncompressed under STORE
	addU32(b, e.size)
	addU16(b, uint16(len(name)))
	addU16(b, 0) // extra length
	funbit.AddBinary(b, []byte(name))
	funbit.AddBinary(b, data)

	if err := z.flush(b); err != nil {
		return err
	}
	z.dir = append(z.dir, e)
	return nil
}

// Close writes the central directory and end record. The underlying
// writer is not closed.
func (z *Writer) Close() error {
	if z.closed {
		return fmt.Errorf("archive: writer is closed")
	}
	z.closed = true

	dirStart := z.offset
	for _, e := range z.dir {
		b := funbit.NewBuilder()
		addU32(b, sigCentralDir)
		addU16(b, versionNeeded) // version made by
		addU16(b, versionNeeded)
		addU16(b, 0)
		addU16(b, methodStore)
		addU16(b, uint16(dosTime(e.mtime)))
		addU16(b, uint16(dosDate(e.mtime)))
		addU32(b, e.crc)
		addU32(b, e.size)
		addU32(b, e.size)
		addU16(b, uint16(len(e.name)))
		addU16(b, 0) // extra length
		addU16(b, 0) // comment length
		addU16(b, 0) // disk number
		addU16(b, 0) // internal attributes
		addU32(b, 0) // external attributes
		addU32(b, e.offset)
		funbit.AddBinary(b, []byte(e.name))
		if err := z.flush(b); err != nil {
			return err
		}
	}
	dirSize := z.offset - dirStart

	b := funbit.NewBuilder()
	addU32(b, sigEndOfDir)
	addU16(b, 0) // this disk
	addU16(b, 0) // directory disk
	addU16(b, uint16(len(z.dir)))
	addU16(b, uint16(len(z.dir)))
	addU32(b, dirSize)
	addU32(b, dirStart)
	addU16(b, 0) // comment length
	return z.flush(b)
}

// flush renders the builder and writes its bytes, advancing the offset.
func (z *Writer) flush(b *funbit.Builder) error {
	bits, err := b.Build()
	if err != nil {
		return fmt.Errorf("archive: building record: %w", err)
	}
	data := bits.ToBytes()
	n, err := z.w.Write(data)
	if err != nil {
		return fmt.Errorf("archive: writing record: %w", err)
	}
	z.offset += uint32(n)
	return nil
}

func addU16(b *funbit.Builder, v uint16) {
	funbit.AddInteger(b, v, funbit.WithSize(16), funbit.WithEndianness("little"))
}

func addU32(b *funbit.Builder, v uint32) {
	funbit.AddInteger(b, v, funbit.WithSize(32), funbit.WithEndianness("little"))
}

// dosTime packs a time-of-day into DOS format (2-second resolution).
func dosTime(t time.Time) int {
	t = clampDOS(t)
	return t.Hour()<<11 | t.Minute()<<5 | t.Second()/2
}

// dosDate packs a calendar date into DOS format, floored at the DOS
// epoch (1980-01-01).
func dosDate(t time.Time) int {
	t = clampDOS(t)
	return (t.Year()-dosEpochYear)<<9 | int(t.Month())<<5 | t.Day()
}

func clampDOS(t time.Time) time.Time {
	if t.Year() < dosEpochYear {
		return time.Date(dosEpochYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

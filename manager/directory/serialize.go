package directory

import (
	"fmt"
	"io"

	"github.com/Thifhi/metall/internal/format"
)

// Serialize writes every entry as a length-prefixed record:
//
//	u32 name_len, bytes name, u32 type_len, bytes type_id, u8 kind,
//	i64 offset, u64 length, u32 desc_len, bytes desc
//
// preceded by a version byte and a u32 total record count.
func (d *Directory) Serialize(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	total := 0
	for k := range d.entries {
		total += len(d.entries[k])
	}

	buf := make([]byte, 0, 64*total+5)
	buf = append(buf, format.NamedDirectoryVersion)
	buf = format.AppendU32(buf, uint32(total))

	for kind := range d.entries {
		for _, e := range d.entries[format.Kind(kind)] {
			buf = appendRecord(buf, e)
		}
	}

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("directory: write: %w", err)
	}
	return nil
}

func appendRecord(buf []byte, e *Entry) []byte {
	buf = format.AppendU32(buf, uint32(len(e.Name)))
	buf = append(buf, e.Name...)
	buf = format.AppendU32(buf, uint32(len(e.TypeID)))
	buf = append(buf, e.TypeID...)
	buf = append(buf, byte(e.Kind))
	buf = format.AppendI64(buf, e.Offset)
	buf = format.AppendU64(buf, e.Length)
	buf = format.AppendU32(buf, uint32(len(e.Description)))
	buf = append(buf, e.Description...)
	return buf
}

// Deserialize replaces the directory's contents with the records read from
// r. On any framing error the directory is left unmodified and the kernel
// is expected to abort initialization.
func (d *Directory) Deserialize(r io.Reader) error {
	all, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("directory: read: %w", err)
	}
	if len(all) < 5 {
		return fmt.Errorf("directory: truncated header")
	}
	if all[0] != format.NamedDirectoryVersion {
		return fmt.Errorf("directory: unsupported version %d", all[0])
	}
	total := format.ReadU32(all, 1)
	off := 5

	fresh := [3]map[string]*Entry{}
	for k := range fresh {
		fresh[k] = make(map[string]*Entry)
	}

	for i := uint32(0); i < total; i++ {
		e, next, err := parseRecord(all, off)
		if err != nil {
			return fmt.Errorf("directory: record %d: %w", i, err)
		}
		off = next
		if e.Kind > format.KindAnonymous {
			return fmt.Errorf("directory: record %d: invalid kind %d", i, e.Kind)
		}

		key := e.Name
		if e.Kind == format.KindAnonymous {
			key = anonymousKey(e.Offset)
		}
		fresh[e.Kind][key] = e
	}

	d.mu.Lock()
	d.entries = fresh
	d.mu.Unlock()
	return nil
}

func parseRecord(b []byte, off int) (*Entry, int, error) {
	need := func(n int) error {
		if off+n > len(b) {
			return fmt.Errorf("truncated record at offset %d", off)
		}
		return nil
	}

	if err := need(4); err != nil {
		return nil, 0, err
	}
	nameLen := int(format.ReadU32(b, off))
	off += 4
	if err := need(nameLen); err != nil {
		return nil, 0, err
	}
	name := string(b[off : off+nameLen])
	off += nameLen

	if err := need(4); err != nil {
		return nil, 0, err
	}
	typeLen := int(format.ReadU32(b, off))
	off += 4
	if err := need(typeLen); err != nil {
		return nil, 0, err
	}
	typeID := string(b[off : off+typeLen])
	off += typeLen

	if err := need(1 + 8 + 8 + 4); err != nil {
		return nil, 0, err
	}
	kind := format.Kind(b[off])
	off++
	offset := format.ReadI64(b, off)
	off += 8
	length := format.ReadU64(b, off)
	off += 8
	descLen := int(format.ReadU32(b, off))
	off += 4
	if err := need(descLen); err != nil {
		return nil, 0, err
	}
	desc := string(b[off : off+descLen])
	off += descLen

	return &Entry{
		Name:        name,
		TypeID:      typeID,
		Kind:        kind,
		Offset:      offset,
		Length:      length,
		Description: desc,
	}, off, nil
}

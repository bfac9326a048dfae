package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"strings"

	"github.com/Faultbox/charview/pkg/encoding"
)

// File is an entry to pack with Write.
type File struct {
	Name string
	Data []byte
}

// Write packs files into a version 0x200 GRF archive. Names are stored
// with backslashes in EUC-KR, as the game client expects.
func Write(w io.Writer, files []File) error {
	var body, table bytes.Buffer
	for _, f := range files {
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		if _, err := zw.Write(f.Data); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}

		compressed := z.Len()
		aligned := (compressed + 7) &^ 7
		offset := body.Len()
		body.Write(z.Bytes())
		body.Write(make([]byte, aligned-compressed))

		table.Write(encoding.UTF8ToEUCKR(strings.ReplaceAll(f.Name, "/", "\\")))
		table.WriteByte(0)
		binary.Write(&table, binary.LittleEndian, uint32(compressed))
		binary.Write(&table, binary.LittleEndian, uint32(aligned))
		binary.Write(&table, binary.LittleEndian, uint32(len(f.Data)))
		table.WriteByte(FlagFile)
		binary.Write(&table, binary.LittleEndian, uint32(offset))
	}

	var zt bytes.Buffer
	zw := zlib.NewWriter(&zt)
	if _, err := zw.Write(table.Bytes()); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	h := Header{
		TableOffset: uint32(body.Len()),
		FileCount:   uint32(len(files) + 7),
		Version:     version200,
	}
	copy(h.Magic[:], grfMagic)

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, h)
	out.Write(body.Bytes())
	binary.Write(&out, binary.LittleEndian, uint32(zt.Len()))
	binary.Write(&out, binary.LittleEndian, uint32(table.Len()))
	out.Write(zt.Bytes())

	_, err := w.Write(out.Bytes())
	return err
}

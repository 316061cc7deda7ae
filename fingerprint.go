// file: fingerprint.go
package tablestore

import (
	"bytes"

	"github.com/zeebo/xxh3"
)

const (
	unitSep   = 0x1f
	recordSep = 0x1e
)

// Fingerprint hashes the header and every cell in column order.
// Two reads of an unchanged table give the same value.
func Fingerprint(t Table) uint64 {
	var buf bytes.Buffer
	for _, col := range t.Columns {
		buf.WriteString(col)
		buf.WriteByte(unitSep)
	}
	buf.WriteByte(recordSep)
	for _, row := range t.Rows {
		for _, col := range t.Columns {
			buf.WriteString(row[col])
			buf.WriteByte(unitSep)
		}
		buf.WriteByte(recordSep)
	}
	return xxh3.Hash(buf.Bytes())
}

package cli

import (
	"fmt"
	"strings"
)

// BytesPerRow is the number of bytes on one hexdump row.
const BytesPerRow = 16

// Hexdump renders data in the classic offset / hex / ASCII layout. base is
// the offset of data[0] within the device. Rows that are entirely zero and
// repeat the previous row are collapsed into a single "*" line, like
// hexdump -C.
func Hexdump(data []byte, base int64, s Styles) string {
	var sb strings.Builder
	var prevZero, collapsed bool
	for i := 0; i < len(data); i += BytesPerRow {
		row := data[i:min(i+BytesPerRow, len(data))]
		zero := allZero(row) && len(row) == BytesPerRow
		if zero && prevZero {
			if !collapsed {
				sb.WriteString(s.Repeat.Render("*"))
				sb.WriteByte('\n')
				collapsed = true
			}
			continue
		}
		prevZero, collapsed = zero, false
		writeRow(&sb, row, base+int64(i), s)
	}
	fmt.Fprintf(&sb, "%s\n", s.Offset.Render(fmt.Sprintf("%08x", base+int64(len(data)))))
	return sb.String()
}

func writeRow(sb *strings.Builder, row []byte, offset int64, s Styles) {
	sb.WriteString(s.Offset.Render(fmt.Sprintf("%08x", offset)))
	sb.WriteString("  ")
	for i := range BytesPerRow {
		if i == BytesPerRow/2 {
			sb.WriteByte(' ')
		}
		if i >= len(row) {
			sb.WriteString("   ")
			continue
		}
		hex := fmt.Sprintf("%02x", row[i])
		if row[i] == 0 {
			sb.WriteString(s.Zero.Render(hex))
		} else {
			sb.WriteString(s.Byte.Render(hex))
		}
		sb.WriteByte(' ')
	}
	sb.WriteString(" |")
	sb.WriteString(s.ASCII.Render(printable(row)))
	sb.WriteString("|\n")
}

func printable(row []byte) string {
	b := make([]byte, len(row))
	for i, c := range row {
		if c >= 0x20 && c < 0x7f {
			b[i] = c
		} else {
			b[i] = '.'
		}
	}
	return string(b)
}

func allZero(p []byte) bool {
	for _, c := range p {
		if c != 0 {
			return false
		}
	}
	return true
}

package firmware

import "strings"

// LogicCheckMinInput is the shortest input LogicCheck can index into.
const LogicCheckMinInput = 16

// LogicCheck is the vendor checksum transform. Every byte of nonce selects
// one of the first 16 bytes of inp by its low nibble. It returns "" when inp
// is too short to index.
func LogicCheck(inp, nonce string) string {
	if len(inp) < LogicCheckMinInput {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(nonce))
	for i := 0; i < len(nonce); i++ {
		sb.WriteByte(inp[nonce[i]&0xf])
	}
	return sb.String()
}

// CheckInput returns the part of a binary filename used as the logic check
// input of a binary-init request: the last 16 bytes of the name up to its
// first dot, so "x.zip.enc4" drops both extensions.
func CheckInput(filename string) string {
	base := filename
	if i := strings.IndexByte(filename, '.'); i >= 0 {
		base = filename[:i]
	}
	if len(base) < LogicCheckMinInput {
		return base
	}
	return base[len(base)-LogicCheckMinInput:]
}

package completion

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
)

// Fingerprint derives a deterministic digest for a prompt and its ordered
// context entries. Each piece is length-framed before hashing so that
// ("ab","c") and ("a","bc") never collide.
func Fingerprint(prompt string, context []string) string {
	h := sha256.New()
	writeFramed(h, prompt)
	for _, c := range context {
		writeFramed(h, c)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeFramed(w io.Writer, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	w.Write(n[:])
	io.WriteString(w, s)
}

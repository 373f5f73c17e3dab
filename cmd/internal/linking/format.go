package linking

import "strings"

const (
	codeGroupSize = 4
	codeSeparator = "-"
)

// FormatPairingCode groups a raw pairing code into blocks of four joined by
// "-" ("ABCDEFGH" -> "ABCD-EFGH"). A code that cannot be grouped evenly or
// contains anything but letters and digits is returned unchanged.
func FormatPairingCode(raw string) string {
	if raw == "" || len(raw)%codeGroupSize != 0 {
		return raw
	}
	for i := 0; i < len(raw); i++ {
		if !isCodeChar(raw[i]) {
			return raw
		}
	}

	var b strings.Builder
	b.Grow(len(raw) + len(raw)/codeGroupSize)
	for i := 0; i < len(raw); i += codeGroupSize {
		if i > 0 {
			b.WriteString(codeSeparator)
		}
		b.WriteString(raw[i : i+codeGroupSize])
	}
	return b.String()
}

func isCodeChar(ch byte) bool {
	return (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')
}

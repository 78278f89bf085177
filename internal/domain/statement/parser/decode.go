package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var charsetHeader = regexp.MustCompile(`(?mi)^(?:CHARSET|ENCODING):\s*(\S+)`)

// Decode converts raw OFX bytes to a UTF-8 string. The charset is
// sniffed from the OFX header when declared; otherwise valid UTF-8 is
// passed through and anything else is treated as Latin-1, which is what
// Brazilian bank exports ship by default.
func Decode(data []byte) string {
	if enc := declaredEncoding(data); enc != nil {
		if decoded, err := enc.NewDecoder().Bytes(data); err == nil {
			return string(decoded)
		}
	}

	if utf8.Valid(data) {
		return string(data)
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

func declaredEncoding(data []byte) encoding.Encoding {
	// Only the header preamble declares the charset.
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	m := charsetHeader.FindSubmatch(head)
	if m == nil {
		return nil
	}

	switch strings.ToUpper(strings.TrimSpace(string(m[1]))) {
	case "1252", "WINDOWS-1252", "CP1252":
		return charmap.Windows1252
	case "ISO-8859-1", "8859-1", "LATIN1", "LATIN-1":
		return charmap.ISO8859_1
	case "UTF-8", "UNICODE", "NONE", "USASCII", "US-ASCII":
		return nil // pass-through
	default:
		return nil
	}
}

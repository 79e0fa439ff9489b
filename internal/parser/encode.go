package parser

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const hexDigits = "0123456789abcdef"

// writeString quotes s as a JSON string. Only the quote, the backslash and
// control characters are escaped; all other text is emitted as UTF-8.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		buf.WriteString(s[start:i])
		switch c {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[c>>4])
			buf.WriteByte(hexDigits[c&0xf])
		}
		start = i + 1
	}
	buf.WriteString(s[start:])
	buf.WriteByte('"')
}

// formatNumber renders a number literal. Integer literals are kept verbatim
// at any magnitude, except -0 which reads back as 0. Literals with a fraction or an exponent are converted to
// float64 and printed in shortest round-trip form, so 12.50 becomes 12.5 and
// 1e2 becomes 100.0. A value that overflows float64 cannot be represented.
func formatNumber(n json.Number) (string, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		// Integers have no negative zero.
		if s == "-0" {
			return "0", nil
		}
		return s, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", err
	}
	return formatFloat(f)
}

// formatFloat prints f the way a shortest-repr float printer does: decimal
// notation with at least one fractional digit for exponents in [-4, 16),
// scientific notation with a two-digit exponent otherwise.
func formatFloat(f float64) (string, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "", &json.UnsupportedValueError{Str: strconv.FormatFloat(f, 'g', -1, 64)}
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return sci, nil
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s, nil
}

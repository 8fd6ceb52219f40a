package man

import (
	"strconv"
	"strings"
)

func isSpace(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isAlnum(ch byte) bool { return isDigit(ch) || isAlpha(ch) }

// parseValue extracts one whitespace- or quote-delimited token from
// the line remainder. Backslash pairs are kept verbatim (both bytes)
// so the renderer can interpret them later; inside a quoted value an
// escaped quote does not terminate the value. Trailing whitespace is
// consumed. ok=false means no token remained, which callers must
// distinguish from an empty quoted token.
func parseValue(line string) (value, rest string, ok bool) {
	i := 0
	for i < len(line) && isSpace(line[i]) {
		i++
	}
	if i == len(line) {
		return "", "", false
	}

	var b strings.Builder
	if line[i] == '"' {
		// quoted value, an unterminated quote consumes to end of input
		i++
		for i < len(line) && line[i] != '"' {
			b.WriteByte(line[i])
			if line[i] == '\\' && i+1 < len(line) {
				i++
				b.WriteByte(line[i])
			}
			i++
		}
		if i < len(line) {
			i++
		}
	} else {
		for i < len(line) && !isSpace(line[i]) {
			b.WriteByte(line[i])
			if line[i] == '\\' && i+1 < len(line) {
				// do not lose an escaped value
				i++
				b.WriteByte(line[i])
			}
			i++
		}
	}

	for i < len(line) && isSpace(line[i]) {
		i++
	}
	return b.String(), line[i:], true
}

// parseMeasurement parses one token and rewrites it from a troff
// length (value plus optional unit letter) into a CSS length token.
// When the token does not end in a letter defUnit applies. An unknown
// unit yields ok=false and callers substitute their fixed fallback.
func parseMeasurement(line string, defUnit byte) (css, rest string, ok bool) {
	value, rest, ok := parseValue(line)
	if !ok || value == "" {
		return "", rest, false
	}

	unit := defUnit
	num := value
	if last := value[len(value)-1]; isAlpha(last) {
		unit = last
		num = value[:len(value)-1]
	}

	// mirrors atof: a malformed number reads as zero
	atof := func() float64 {
		v, _ := strconv.ParseFloat(num, 64)
		return v
	}

	switch unit {
	case 'c': // centimeters
		css = num + "cm"
	case 'f': // 1/65536 of font size
		css = strconv.FormatFloat(100.0*atof()/65536.0, 'f', 1, 64) + "%"
	case 'i': // inches
		css = num + "in"
	case 'm': // ems
		css = num + "em"
	case 'M': // 1/100th ems
		css = strconv.FormatFloat(0.01*atof(), 'f', 2, 64) + "em"
	case 'n': // ens (1/2 em)
		css = strconv.FormatFloat(0.5*atof(), 'f', -1, 64) + "em"
	case 'P': // picas
		css = num + "pc"
	case 'p': // points
		css = num + "pt"
	case 's': // multiple of font size
		css = strconv.FormatFloat(100.0*atof(), 'f', 1, 64) + "%"
	case 'u': // device unit (pixel)
		css = num + "px"
	case 'v': // multiple of line height
		css = num
	default:
		return "", rest, false
	}
	return css, rest, true
}

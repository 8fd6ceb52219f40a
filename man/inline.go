package man

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// glyph substitutions for \(xy bracketed escapes
var parenGlyphs = map[string]string{
	"bu": "&middot;",
	"em": "&mdash;",
	"en": "&ndash;",
	"ga": "`",
	"ha": "^",
	"ti": "~",
}

// glyph substitutions for \[xy] bracketed escapes
var bracketGlyphs = map[string]string{
	"aq": "'",
	"co": "&copy;",
	"cq": "&rsquo;",
	"de": "&deg;",
	"dq": "&quot;",
	"lq": "&ldquo;",
	"mc": "&mu;",
	"oq": "&lsquo;",
	"rg": "&reg;",
	"rq": "&rdquo;",
	"tm": "<sup>TM</sup>",
}

// glyph substitutions for \*(xy named strings
var starGlyphs = map[string]string{
	"aq": "'",
	"dq": "&quot;",
	"lq": "&ldquo;",
	"rq": "&rdquo;",
	"Tm": "<sup>TM</sup>",
}

// text renders one span of body or argument text to HTML. Escapes,
// glyph macros, octal character codes, bare URLs and the sensitive
// entity characters are substituted at their trigger points; anything
// between triggers is flushed as a whole run.
func (c *Converter) text(s string) {
	start := 0
	i := 0
	for i < len(s) {
		switch {
		case s[i] == '\\' && i+1 < len(s):
			c.write(s[start:i])
			next, consumed := c.escape(s, i)
			if !consumed {
				// emit the sequence literally with a later run
				start = i
				i = next
				continue
			}
			i = next
			start = i

		case strings.HasPrefix(s[i:], "http://") || strings.HasPrefix(s[i:], "https://"):
			c.write(s[start:i])
			i = c.embedURL(s, i)
			start = i

		case s[i] == '&' || s[i] == '<' || s[i] == '"':
			c.write(s[start:i])
			c.writeEscapedByte(s[i])
			i++
			start = i

		default:
			i++
		}
	}
	c.write(s[start:])
}

// escape interprets one backslash sequence starting at s[i] (the
// backslash; at least one byte follows). It returns the index of the
// next unconsumed byte. consumed=false means nothing was written and
// the caller must emit the text from the backslash on literally while
// resuming the scan at the returned index.
func (c *Converter) escape(s string, i int) (next int, consumed bool) {
	ch := s[i+1]
	switch {
	case ch == 'f' && i+2 < len(s):
		// font change
		switch s[i+2] {
		case 'R', 'P':
			c.setFont(fontRegular)
		case 'b', 'B':
			c.setFont(fontBold)
		case 'i', 'I':
			c.setFont(fontItalic)
		default:
			c.log.Warn("Unknown font escape ignored", zap.String("escape", s[i:i+3]), zap.Int("line", c.line), zap.String("file", c.file))
		}
		return i + 3, true

	case ch == '*' && i+2 < len(s):
		// named string
		j := i + 2
		if s[j] == 'R' {
			c.write("&reg;")
			return j + 1, true
		}
		if s[j] == '(' {
			if j+2 < len(s) {
				if glyph, ok := starGlyphs[s[j+1:j+3]]; ok {
					c.write(glyph)
					return j + 3, true
				}
			}
			c.log.Warn("Unknown named string ignored", zap.String("escape", clip(s, i, j+3)), zap.Int("line", c.line), zap.String("file", c.file))
			if j+2 < len(s) {
				return j + 3, true
			}
			return j + 1, true
		}
		c.log.Warn("Unknown named string ignored", zap.String("escape", s[i:j+1]), zap.Int("line", c.line), zap.String("file", c.file))
		return j + 1, true

	case ch == '(':
		if i+4 <= len(s) {
			if glyph, ok := parenGlyphs[s[i+2:i+4]]; ok {
				c.write(glyph)
				return i + 4, true
			}
		}
		return i + 2, false

	case ch == '[':
		if j := i + 2; j+3 <= len(s) && s[j+2] == ']' {
			if glyph, ok := bracketGlyphs[s[j:j+2]]; ok {
				c.write(glyph)
				return j + 3, true
			}
		}
		return i + 2, false

	case i+3 < len(s) && isDigit(s[i+1]) && isDigit(s[i+2]) && isDigit(s[i+3]):
		// three-digit octal character code
		v := (int(s[i+1]-'0')*8+int(s[i+2]-'0'))*8 + int(s[i+3]-'0')
		c.write("&#" + strconv.Itoa(v) + ";")
		return i + 4, true

	default:
		if ch != '\\' && ch != '"' && ch != '\'' && ch != '-' && ch != 'e' && ch != ' ' {
			c.log.Warn("Unrecognized escape ignored", zap.String("escape", s[i:i+2]), zap.Int("line", c.line), zap.String("file", c.file))
			c.write(`\`)
		}
		if ch == 'e' {
			c.write(`\`)
		} else {
			c.writeEscapedByte(ch)
		}
		return i + 2, true
	}
}

// embedURL consumes a bare http(s) URL starting at s[i] and wraps it
// in a hyperlink whose visible text is the URL itself. The URL ends at
// whitespace or at ',', '.' or ')' when followed by whitespace,
// punctuation or the end of the span.
func (c *Converter) embedURL(s string, i int) int {
	var url []byte
	for i < len(s) && !isSpace(s[i]) {
		if (s[i] == ',' || s[i] == '.' || s[i] == ')') &&
			(i+1 >= len(s) || isURLBoundary(s[i+1])) {
			break
		}
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		url = append(url, s[i])
		i++
	}
	u := string(url)
	c.write(`<a href="`)
	c.writeEscaped(u)
	c.write(`">`)
	c.writeEscaped(u)
	c.write("</a>")
	return i
}

func isURLBoundary(ch byte) bool {
	switch ch {
	case ',', '.', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

// clip slices s between from and to without running past its end.
func clip(s string, from, to int) string {
	if to > len(s) {
		to = len(s)
	}
	return s[from:to]
}

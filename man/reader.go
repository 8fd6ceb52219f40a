package man

import (
	"bufio"
	"io"
)

// maxLine bounds one logical line. Anything past it is dropped
// silently, the scan still runs to the physical end of line.
const maxLine = 65535

// lineReader produces logical source lines: continuations are joined,
// comments stripped, any other backslash pair preserved verbatim for
// interpretation by the renderer. num is the 1-based number of the
// last physical line consumed.
type lineReader struct {
	r   *bufio.Reader
	num int
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

// next returns the next logical line. It reports ok=false when the
// stream is exhausted; a final line with no terminating newline is
// dropped, matching historic roff reader behavior.
func (lr *lineReader) next() (string, bool) {
	var buf []byte
	for {
		ch, err := lr.r.ReadByte()
		if err != nil {
			return "", false
		}
		switch ch {
		case '\n':
			lr.num++
			return string(buf), true

		case '\\':
			ch, err = lr.r.ReadByte()
			if err != nil {
				return "", false
			}
			if ch == '\n' {
				// continuation
				lr.num++
				continue
			}
			if ch == '"' {
				// comment runs to the end of the physical line
				for {
					ch, err = lr.r.ReadByte()
					if err != nil {
						return "", false
					}
					if ch == '\n' {
						lr.num++
						return string(buf), true
					}
				}
			}
			// something the renderer interprets later
			if len(buf) < maxLine {
				buf = append(buf, '\\')
			}
			if len(buf) < maxLine {
				buf = append(buf, ch)
			}

		default:
			if len(buf) < maxLine {
				buf = append(buf, ch)
			}
		}
	}
}

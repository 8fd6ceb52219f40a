// Package man converts man page source written in the classic man(7)
// macro set into a single self-contained HTML document. One Converter
// instance owns one output stream and may process several source files
// in sequence; document state (open block, font, anchors) deliberately
// carries across file boundaries except where macros reset it.
package man

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Metadata describes per-run document information supplied by the
// caller. All fields are optional single strings.
type Metadata struct {
	Author     string
	Chapter    string
	Copyright  string
	Stylesheet string // filesystem path or http(s):// URL
	Subject    string
	Title      string
}

type font int

const (
	fontRegular font = iota
	fontBold
	fontItalic
	fontSmall
	fontSmallBold
	fontMono
)

// closing element names indexed by font, fontRegular has none
var fontTags = [...]string{"", "strong", "em", "small", "small", "pre"}

type headingLevel int

const (
	headingTopic headingLevel = iota
	headingSection
	headingSubsection
)

// Converter is the macro interpreter and HTML renderer. Not safe for
// concurrent use, the whole conversion is a single sequential scan.
type Converter struct {
	meta Metadata
	out  *bufio.Writer
	log  *zap.Logger

	wroteHeader bool
	basePath    string // directory of the file being converted, for cross references
	block       string // open block element name, empty when none
	inLink      bool
	indent      int // number of open relative-indent wrappers
	font        font

	topicAnchor   string
	sectionAnchor string

	// position for diagnostics
	file  string
	line  int
	macro string
}

// per file conversion state, reset for every source file
type docFile struct {
	lines     *lineReader
	thSeen    bool
	warned    bool
	breakText string // armed by .TP, consumed by the next rendered line
}

func NewConverter(meta Metadata, out io.Writer, log *zap.Logger) *Converter {
	return &Converter{meta: meta, out: bufio.NewWriter(out), log: log}
}

// HeaderWritten reports whether the document header has been emitted,
// which happens on the first .TH macro seen across all input files.
func (c *Converter) HeaderWritten() bool {
	return c.wroteHeader
}

// ConvertFile converts one man source file into the open HTML stream.
// An unreadable source file is reported and skipped, it is not an
// error. Errors are fatal for the run (malformed .TH, unreadable
// stylesheet, output failure).
func (c *Converter) ConvertFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		c.log.Error("Unable to open source file, skipping", zap.String("file", path), zap.Error(err))
		return nil
	}
	defer f.Close()

	c.basePath = filepath.Dir(path)
	return c.convert(f, path)
}

// Finish emits the document footer and flushes the output. The footer
// is written only if at least one topic heading was ever rendered.
func (c *Converter) Finish() error {
	if c.wroteHeader {
		c.write("  </body>\n</html>\n")
		c.wroteHeader = false
	}
	return c.out.Flush()
}

func (c *Converter) convert(r io.Reader, name string) error {
	d := &docFile{lines: newLineReader(r)}
	c.file = name

	for {
		line, ok := d.lines.next()
		if !ok {
			break
		}
		c.line = d.lines.num

		if strings.HasPrefix(line, ".") {
			if err := c.dispatch(d, line); err != nil {
				return err
			}
			continue
		}

		if d.thSeen {
			if c.block == "" {
				c.write("<p>")
				c.block = "p"
			}
			c.text(line)
			c.endLine(d)
		} else if line != "" && !d.warned {
			c.log.Warn("Ignoring text before '.TH'", zap.Int("line", c.line), zap.String("file", c.file))
			d.warned = true
		}
	}
	return c.out.Flush()
}

// dispatch classifies one macro line and runs its handler. Macro names
// are at most three bytes including the leading dot, longer tokens are
// truncated for lookup while the whole token is consumed.
func (c *Converter) dispatch(d *docFile, line string) error {
	token, args, _ := parseValue(line)
	name := token
	if len(name) > 3 {
		name = name[:3]
	}

	if name == "." {
		// blank request line
		return nil
	}
	if name != ".TH" && !d.thSeen {
		if !d.warned {
			c.log.Warn("Need '.TH' before macro", zap.String("macro", name), zap.Int("line", c.line), zap.String("file", c.file))
			d.warned = true
		}
		return nil
	}

	if fn, ok := macros[name]; ok {
		c.macro = name
		return fn(c, d, args)
	}
	c.log.Warn("Unsupported command/macro", zap.String("macro", name), zap.Int("line", c.line), zap.String("file", c.file))
	return nil
}

// endLine finishes a rendered line, emitting the armed break text if
// any before the newline and disarming it.
func (c *Converter) endLine(d *docFile) {
	c.write(d.breakText)
	c.write("\n")
	d.breakText = ""
}

// write sends raw bytes to the output. Write errors are sticky in the
// buffered writer and surface on the next Flush.
func (c *Converter) write(s string) {
	c.out.WriteString(s) //nolint:errcheck
}

func (c *Converter) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// closeLink closes an open hyperlink, if any, ahead of a block-level
// transition.
func (c *Converter) closeLink() {
	if c.inLink {
		c.write("</a>\n")
		c.inLink = false
	}
}

// closeBlock closes the open block element, if any.
func (c *Converter) closeBlock() {
	if c.block != "" {
		c.write("</" + c.block + ">\n")
		c.block = ""
	}
}

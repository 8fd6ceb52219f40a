package man

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

type macroFunc func(c *Converter, d *docFile, args string) error

// macros maps a request name to its behavior. The font families are
// registered generically so adding a variant stays a one-liner.
var macros = map[string]macroFunc{}

func init() {
	// single-font macros: .B bold, .I italic, .SB small-bold, .SM small
	for name, f := range map[string]font{".B": fontBold, ".I": fontItalic, ".SB": fontSmallBold, ".SM": fontSmall} {
		f := f
		macros[name] = func(c *Converter, d *docFile, args string) error {
			c.singleFont(d, args, f)
			return nil
		}
	}

	// alternating two-font macros
	for name, pair := range map[string][2]font{
		".BI": {fontBold, fontItalic},
		".BR": {fontBold, fontRegular},
		".IB": {fontItalic, fontBold},
		".IR": {fontItalic, fontRegular},
		".RB": {fontRegular, fontBold},
	} {
		pair := pair
		macros[name] = func(c *Converter, d *docFile, args string) error {
			if args == "" {
				args, _ = d.lines.next()
				c.line = d.lines.num
			}
			c.alternateFonts(pair[0], pair[1], args)
			c.endLine(d)
			return nil
		}
	}

	for name, fn := range map[string]macroFunc{
		".TH": (*Converter).topicHeading,
		".SH": func(c *Converter, d *docFile, args string) error { c.heading(headingSection, args); return nil },
		".SS": func(c *Converter, d *docFile, args string) error { c.heading(headingSubsection, args); return nil },

		".LP": (*Converter).paragraph,
		".P":  (*Converter).paragraph,
		".PP": (*Converter).paragraph,
		".HP": (*Converter).hangingParagraph,
		".TP": (*Converter).taggedParagraph,
		".IP": (*Converter).indentedParagraph,

		".EX": (*Converter).exampleStart,
		".nf": (*Converter).exampleStart,
		".EE": (*Converter).exampleEnd,
		".fi": (*Converter).exampleEnd,

		".RS": (*Converter).insetStart,
		".RE": (*Converter).insetEnd,
		".in": (*Converter).genericIndent,

		".SY": (*Converter).synopsisStart,
		".YS": (*Converter).synopsisEnd,

		".MT": func(c *Converter, d *docFile, args string) error { c.openLink("mailto:", args); return nil },
		".UR": func(c *Converter, d *docFile, args string) error { c.openLink("", args); return nil },
		".ME": (*Converter).endLink,
		".UE": (*Converter).endLink,

		".br": func(c *Converter, d *docFile, args string) error { c.write("<br>\n"); return nil },
		".sp": func(c *Converter, d *docFile, args string) error { c.write("<br>&nbsp;<br>\n"); return nil },
	} {
		macros[name] = fn
	}
}

// topicHeading handles .TH: title and numeric section are required,
// their absence is fatal for the run. The first occurrence across all
// input files also triggers the document header.
func (c *Converter) topicHeading(d *docFile, args string) error {
	title, rest, ok := parseValue(args)
	if !ok || title == "" {
		return fmt.Errorf("missing title in '.TH' on line %d of '%s'", c.line, c.file)
	}
	section, _, ok := parseValue(rest)
	if !ok || section == "" || !isDigit(section[0]) {
		return fmt.Errorf("missing section in '.TH' on line %d of '%s'", c.line, c.file)
	}
	topic := title + "(" + section + ")"

	if !c.wroteHeader {
		if err := c.header(topic); err != nil {
			return err
		}
	} else {
		c.closeLink()
		c.closeBlock()
	}

	c.heading(headingTopic, topic)
	d.thSeen = true
	return nil
}

// singleFont applies one font for the rest of the line, or for the
// next logical line when there is no argument, and restores the font
// that was in effect before.
func (c *Converter) singleFont(d *docFile, args string, f font) {
	save := c.font
	if args == "" {
		args, _ = d.lines.next()
		c.line = d.lines.num
	}
	c.setFont(f)
	c.text(args)
	c.setFont(save)
	c.endLine(d)
}

// alternateFonts renders the argument tokens in alternating fonts.
// For the bold/regular pair a "name (section)" token sequence becomes
// a hyperlink when the sibling source file name.section exists next to
// the file being converted.
func (c *Converter) alternateFonts(a, b font, line string) {
	save := c.font
	useA := true

	for {
		word, rest, ok := parseValue(line)
		if !ok {
			break
		}
		line = rest

		haveLink := false
		if a == fontBold && b == fontRegular && useA {
			if name, section, ok := crossReference(word, line); ok {
				if _, err := os.Stat(filepath.Join(c.basePath, name+"."+section)); err == nil {
					c.write(`<a href="`)
					c.writeEscaped(name + "." + section + ".html")
					c.write(`">`)
					haveLink = true
				}
			}
		}

		if useA {
			c.setFont(a)
		} else {
			c.setFont(b)
		}
		c.text(word)

		if haveLink {
			if word, line, ok = parseValue(line); ok {
				// the section reference renders in the second font
				// inside the link
				c.setFont(b)
				c.text(word)
				c.write("</a>")
			}
		} else {
			useA = !useA
		}
	}

	c.setFont(save)
	c.write("\n")
}

// crossReference reports whether word followed by the next token on
// the line looks like a man page reference "name (section)". The
// returned section is the digits-led text between the parentheses.
func crossReference(word, line string) (name, section string, ok bool) {
	tok, _, ok := parseValue(line)
	if !ok || len(tok) < 2 || tok[0] != '(' || !isDigit(tok[1]) {
		return "", "", false
	}
	end := strings.IndexByte(tok, ')')
	if end < 0 {
		return "", "", false
	}
	return word, tok[1:end], true
}

func (c *Converter) paragraph(_ *docFile, _ string) error {
	c.closeLink()
	c.closeBlock()
	c.write("    <p>")
	c.block = "p"
	return nil
}

func (c *Converter) hangingParagraph(_ *docFile, args string) error {
	indent, _, ok := parseMeasurement(args, 'n')
	if !ok {
		indent = "2.5em"
	}
	c.closeLink()
	c.closeBlock()
	c.printf("    <p style=\"margin-left: %s; text-indent: -%s;\">", indent, indent)
	c.block = "p"
	return nil
}

// taggedParagraph is .TP: like a hanging paragraph, but it also arms
// the break text so the tag line that follows ends with a line break.
func (c *Converter) taggedParagraph(d *docFile, args string) error {
	if err := c.hangingParagraph(d, args); err != nil {
		return err
	}
	d.breakText = "<br>"
	return nil
}

// indentedParagraph is .IP: reuses an already-open list block and adds
// a list item. Only the conventional bullet tags keep a list marker.
func (c *Converter) indentedParagraph(d *docFile, args string) error {
	var indent string
	tag, rest, ok := parseValue(args)
	if ok {
		indent, _, _ = parseMeasurement(rest, 'n')
	}
	if indent == "" {
		indent = "2.5em"
	}

	c.closeLink()
	if c.block != "" && c.block != "ul" {
		c.closeBlock()
	}
	if c.block == "" {
		c.write("    <ul>\n")
	}

	// only the conventional bullet tags keep a list marker
	listStyle := ""
	if tag != `\(bu` && tag != "-" && tag != "*" {
		listStyle = "list-style-type: none; "
	}
	c.printf("    <li style=\"%smargin-left: %s;\">", listStyle, indent)
	c.block = "ul"
	d.breakText = ""
	return nil
}

func (c *Converter) exampleStart(_ *docFile, _ string) error {
	c.closeLink()
	c.closeBlock()
	c.write("    <pre>")
	c.block = "pre"
	return nil
}

func (c *Converter) exampleEnd(_ *docFile, _ string) error {
	if c.block != "pre" {
		c.log.Warn("End of example with no '.EX' or '.nf'", zap.String("macro", c.macro), zap.Int("line", c.line), zap.String("file", c.file))
		return nil
	}
	c.write("</pre>\n")
	c.block = ""
	return nil
}

func (c *Converter) insetStart(_ *docFile, args string) error {
	indent, _, ok := parseMeasurement(args, 'n')
	if !ok {
		indent = "0.5in"
	}
	c.printf("    <div style=\"margin-left: %s;\">\n", indent)
	c.indent++
	return nil
}

func (c *Converter) insetEnd(_ *docFile, _ string) error {
	if c.indent == 0 {
		c.log.Warn("Unbalanced '.RE'", zap.String("macro", c.macro), zap.Int("line", c.line), zap.String("file", c.file))
		return nil
	}
	c.write("    </div>\n")
	c.indent--
	return nil
}

// genericIndent is .in: with a measurement it pushes an indent
// wrapper, without one it pops the innermost wrapper if any.
func (c *Converter) genericIndent(_ *docFile, args string) error {
	if indent, _, ok := parseMeasurement(args, 'm'); ok {
		c.printf("    <div style=\"margin-left: %s;\">\n", indent)
		c.indent++
		return nil
	}
	if c.indent > 0 {
		c.write("    </div>\n")
		c.indent--
		return nil
	}
	c.log.Warn("'.in' seen without prior '.in INDENT'", zap.String("macro", c.macro), zap.Int("line", c.line), zap.String("file", c.file))
	return nil
}

func (c *Converter) synopsisStart(_ *docFile, _ string) error {
	c.closeBlock()
	c.write("    <p style=\"font-family: monospace;\">")
	c.block = "p"
	return nil
}

func (c *Converter) synopsisEnd(_ *docFile, _ string) error {
	if c.block != "p" {
		c.log.Warn("'.YS' seen without prior '.SY'", zap.String("macro", c.macro), zap.Int("line", c.line), zap.String("file", c.file))
		return nil
	}
	c.write("</p>\n")
	c.block = ""
	return nil
}

// openLink starts a hyperlink from the macro argument; an empty
// argument opens nothing.
func (c *Converter) openLink(scheme, args string) {
	if addr, _, ok := parseValue(args); ok && addr != "" {
		c.write(`<a href="`)
		c.writeEscaped(scheme + addr)
		c.write(`">`)
		c.inLink = true
	}
}

// endLink closes an open hyperlink. End markers are idempotent: with
// no link open this is a silent no-op.
func (c *Converter) endLink(_ *docFile, _ string) error {
	if c.inLink {
		c.write("</a>\n")
		c.inLink = false
	}
	return nil
}

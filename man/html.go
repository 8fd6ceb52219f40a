package man

import (
	"fmt"
	"os"
	"strings"

	"mth/misc"
)

// writeEscaped writes s with the three HTML-sensitive characters
// entity-escaped. Runs of plain characters are flushed whole, never
// byte by byte. '>' and '\'' pass through unchanged.
func (c *Converter) writeEscaped(s string) {
	start := 0
	for i := 0; i < len(s); i++ {
		var ent string
		switch s[i] {
		case '&':
			ent = "&amp;"
		case '<':
			ent = "&lt;"
		case '"':
			ent = "&quot;"
		default:
			continue
		}
		c.write(s[start:i])
		c.write(ent)
		start = i + 1
	}
	c.write(s[start:])
}

func (c *Converter) writeEscapedByte(ch byte) {
	switch ch {
	case '&':
		c.write("&amp;")
	case '<':
		c.write("&lt;")
	case '"':
		c.write("&quot;")
	default:
		c.out.WriteByte(ch) //nolint:errcheck
	}
}

// setFont performs an inline font transition. Opening a font with no
// block open first opens a default paragraph; switching to the font
// already in effect inside an open block is a no-op.
func (c *Converter) setFont(f font) {
	if c.font == f && c.block != "" {
		return
	}
	if c.font != fontRegular {
		c.write("</" + fontTags[c.font] + ">")
	}
	if c.block == "" {
		c.write("<p>")
		c.block = "p"
	}
	if f == fontSmallBold {
		c.write(`<small style="font-weight: bold;">`)
	} else if f != fontRegular {
		c.write("<" + fontTags[f] + ">")
	}
	c.font = f
}

// anchor derives an HTML element identifier from heading text.
// Alphanumerics, '.' and '-' are kept lowercased; '(', space and tab
// become a single '-' unless leading, trailing or repeated; anything
// else is dropped.
func anchor(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case isAlnum(ch) || ch == '.' || ch == '-':
			if ch >= 'A' && ch <= 'Z' {
				ch += 'a' - 'A'
			}
			b.WriteByte(ch)
		case ch == '(' || ch == ' ' || ch == '\t':
			if i+1 < len(s) && b.Len() > 0 && b.String()[b.Len()-1] != '-' {
				b.WriteByte('-')
			}
		}
	}
	return b.String()
}

// capitalizeHeading rewrites section heading text: the first letter of
// every word is upper-cased and the remainder lowered, except the stop
// words "a", "and", "or" and "the" when they do not start the heading.
func capitalizeHeading(s string) string {
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if !isAlpha(b[i]) {
			continue
		}
		rest := string(b[i:])
		if i == 0 || !(strings.HasPrefix(rest, "a ") || strings.HasPrefix(rest, "and ") ||
			strings.HasPrefix(rest, "or ") || strings.HasPrefix(rest, "the ")) {
			b[i] &^= 0x20
		}
		for i+1 < len(b) && isAlpha(b[i+1]) {
			i++
			b[i] |= 0x20
		}
	}
	return string(b)
}

// heading closes any open link and block and emits a heading at the
// given level with its hierarchical anchor id. Section and subsection
// text gets the capitalization pass; the heading text itself is
// rendered inline, so escapes inside it are interpreted.
func (c *Converter) heading(level headingLevel, s string) {
	hlevel := int(level) + 1
	if c.meta.Chapter != "" {
		// the chapter owns h1, everything shifts down one level
		hlevel++
	}

	title := s
	if level > headingTopic {
		title = capitalizeHeading(s)
	}

	c.closeLink()
	c.closeBlock()

	var id string
	switch level {
	case headingTopic:
		c.topicAnchor = anchor(s)
		id = c.topicAnchor
	case headingSection:
		c.sectionAnchor = anchor(s)
		id = c.topicAnchor + "." + c.sectionAnchor
	case headingSubsection:
		id = c.topicAnchor + "." + c.sectionAnchor + "." + anchor(s)
	}

	c.printf("    <h%d id=%q>", hlevel, id)
	c.text(title)
	c.printf("</h%d>\n", hlevel)
}

// header emits the document header exactly once per run: doctype,
// stylesheet, metadata and the optional chapter heading. A stylesheet
// given as a filesystem path is inlined byte for byte, an http(s) URL
// is referenced; a missing stylesheet file is fatal.
func (c *Converter) header(topic string) error {
	if c.wroteHeader {
		return nil
	}
	c.wroteHeader = true

	c.write("<!DOCTYPE html>\n<html>\n  <head>\n")
	if css := c.meta.Stylesheet; css != "" {
		if strings.HasPrefix(css, "http://") || strings.HasPrefix(css, "https://") {
			c.write(`    <link rel="stylesheet" type="text/css" href="`)
			c.writeEscaped(css)
			c.write("\">\n")
		} else {
			data, err := os.ReadFile(css)
			if err != nil {
				return fmt.Errorf("unable to read stylesheet: %w", err)
			}
			c.write("    <style><!--\n")
			c.out.Write(data) //nolint:errcheck
			c.write("--></style>\n")
		}
	}

	if c.meta.Author != "" {
		c.write(`    <meta name="author" content="`)
		c.writeEscaped(c.meta.Author)
		c.write("\">\n")
	}
	if c.meta.Copyright != "" {
		c.write(`    <meta name="copyright" content="`)
		c.writeEscaped(c.meta.Copyright)
		c.write("\">\n")
	}
	c.write(`    <meta name="creator" content="` + misc.GetAppName() + " v" + misc.GetVersion() + "\">\n")
	if c.meta.Subject != "" {
		c.write(`    <meta name="subject" content="`)
		c.writeEscaped(c.meta.Subject)
		c.write("\">\n")
	}

	title := c.meta.Title
	if title == "" {
		title = topic
	}
	if title == "" {
		title = "Documentation"
	}
	c.write("    <title>")
	c.writeEscaped(title)
	c.write("</title>\n  </head>\n  <body>\n")

	if c.meta.Chapter != "" {
		c.write(`    <h1 id="` + anchor(c.meta.Chapter) + `">`)
		c.writeEscaped(c.meta.Chapter)
		c.write("</h1>\n")
	}
	return nil
}

package man

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// convertString runs one in-memory source through a fresh converter
// and returns everything written including the footer.
func convertString(t *testing.T, meta Metadata, src string) string {
	t.Helper()
	var buf bytes.Buffer
	c := NewConverter(meta, &buf, zap.NewNop())
	if err := c.convert(strings.NewReader(src), "test.man"); err != nil {
		t.Fatalf("convert() failed: %v", err)
	}
	if err := c.Finish(); err != nil {
		t.Fatalf("Finish() failed: %v", err)
	}
	return buf.String()
}

func TestConvert_MinimalDocument(t *testing.T) {
	out := convertString(t, Metadata{}, ".TH test 1\n.SH NAME\ntest \\- demo\n")

	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>test(1)</title>",
		"    <h1 id=\"test-1\">test(1)</h1>\n",
		"    <h2 id=\"test-1.name\">Name</h2>\n",
		"<p>test - demo\n",
		"  </body>\n</html>\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q\n%s", want, out)
		}
	}
}

func TestConvert_HeaderMetadata(t *testing.T) {
	meta := Metadata{
		Author:    "John Doe",
		Chapter:   "Commands",
		Copyright: "Copyright 2024",
		Subject:   "printing",
		Title:     "Example Manual",
	}
	out := convertString(t, meta, ".TH test 1\n")

	for _, want := range []string{
		`<meta name="author" content="John Doe">`,
		`<meta name="copyright" content="Copyright 2024">`,
		`<meta name="subject" content="printing">`,
		"<title>Example Manual</title>",
		"    <h1 id=\"commands\">Commands</h1>\n",
		// the chapter owns h1, the topic moves down
		"    <h2 id=\"test-1\">test(1)</h2>\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q\n%s", want, out)
		}
	}
}

func TestConvert_StylesheetInlined(t *testing.T) {
	dir := t.TempDir()
	css := filepath.Join(dir, "style.css")
	if err := os.WriteFile(css, []byte("body { color: black; }\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out := convertString(t, Metadata{Stylesheet: css}, ".TH test 1\n")
	if !strings.Contains(out, "    <style><!--\nbody { color: black; }\n--></style>\n") {
		t.Errorf("stylesheet not inlined:\n%s", out)
	}
}

func TestConvert_StylesheetLinked(t *testing.T) {
	out := convertString(t, Metadata{Stylesheet: "https://example.com/s.css"}, ".TH test 1\n")
	if !strings.Contains(out, `<link rel="stylesheet" type="text/css" href="https://example.com/s.css">`) {
		t.Errorf("stylesheet not referenced:\n%s", out)
	}
}

func TestConvert_MissingStylesheetFatal(t *testing.T) {
	var buf bytes.Buffer
	c := NewConverter(Metadata{Stylesheet: "/nonexistent/style.css"}, &buf, zap.NewNop())
	if err := c.convert(strings.NewReader(".TH test 1\n"), "test.man"); err == nil {
		t.Error("expected error for unreadable stylesheet")
	}
}

func TestConvert_BadTopicHeading(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing title", ".TH\n", "missing title"},
		{"missing section", ".TH test\n", "missing section"},
		{"non numeric section", ".TH test abc\n", "missing section"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			c := NewConverter(Metadata{}, &buf, zap.NewNop())
			err := c.convert(strings.NewReader(tt.src), "test.man")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
			if !strings.Contains(err.Error(), "test.man") {
				t.Errorf("error = %v, want it to name the source file", err)
			}
		})
	}
}

func TestConvert_TextBeforeTopicHeading(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	var buf bytes.Buffer
	c := NewConverter(Metadata{}, &buf, zap.New(core))
	if err := c.convert(strings.NewReader("stray\nmore stray\n.TH test 1\n"), "test.man"); err != nil {
		t.Fatal(err)
	}

	// warned exactly once per file
	entries := logs.FilterMessage("Ignoring text before '.TH'").All()
	if len(entries) != 1 {
		t.Fatalf("got %d warnings, want 1", len(entries))
	}
	if entries[0].ContextMap()["line"] != int64(1) {
		t.Errorf("line field = %v, want 1", entries[0].ContextMap()["line"])
	}
	if strings.Contains(buf.String(), "stray") {
		t.Error("text before '.TH' leaked into the output")
	}
}

func TestConvert_UnsupportedMacro(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	var buf bytes.Buffer
	c := NewConverter(Metadata{}, &buf, zap.New(core))
	if err := c.convert(strings.NewReader(".TH test 1\n.ZZ whatever\n"), "test.man"); err != nil {
		t.Fatal(err)
	}

	entries := logs.FilterMessage("Unsupported command/macro").All()
	if len(entries) != 1 {
		t.Fatalf("got %d warnings, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["macro"] != ".ZZ" {
		t.Errorf("macro field = %v, want .ZZ", fields["macro"])
	}
	if fields["line"] != int64(2) {
		t.Errorf("line field = %v, want 2", fields["line"])
	}
	if fields["file"] != "test.man" {
		t.Errorf("file field = %v, want test.man", fields["file"])
	}
}

func TestConvert_TaggedParagraph(t *testing.T) {
	out := convertString(t, Metadata{}, ".TH test 1\n.TP 5\n\\fBtag\\fR\ndescription\n")

	if !strings.Contains(out, `    <p style="margin-left: 2.5em; text-indent: -2.5em;">`) {
		t.Errorf("hanging paragraph missing:\n%s", out)
	}
	// the tag line ends with the armed break, the next one does not
	if !strings.Contains(out, "<strong>tag</strong><br>\ndescription\n") {
		t.Errorf("tag line break missing:\n%s", out)
	}
}

func TestConvert_IndentedParagraphList(t *testing.T) {
	out := convertString(t, Metadata{}, ".TH test 1\n.IP \\(bu 4\nfirst\n.IP \\(bu 4\nsecond\n")

	// one list reused for consecutive items
	if strings.Count(out, "    <ul>\n") != 1 {
		t.Errorf("expected a single list open:\n%s", out)
	}
	if strings.Count(out, `    <li style="margin-left: 2em;">`) != 2 {
		t.Errorf("expected two bullet items:\n%s", out)
	}
	if strings.Contains(out, "list-style-type: none") {
		t.Errorf("bullet items must keep their marker:\n%s", out)
	}
}

func TestConvert_IndentedParagraphNoTag(t *testing.T) {
	out := convertString(t, Metadata{}, ".TH test 1\n.IP x\nbody\n")

	if !strings.Contains(out, `    <li style="list-style-type: none; margin-left: 2.5em;">`) {
		t.Errorf("tagless item should drop the marker and use the fallback indent:\n%s", out)
	}
}

func TestConvert_ExampleBlock(t *testing.T) {
	out := convertString(t, Metadata{}, ".TH test 1\n.EX\ncode <here>\n.EE\nafter\n")

	if !strings.Contains(out, "    <pre>code &lt;here>\n</pre>\n") {
		t.Errorf("example block missing:\n%s", out)
	}
}

func TestConvert_UnbalancedExampleEnd(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	var buf bytes.Buffer
	c := NewConverter(Metadata{}, &buf, zap.New(core))
	if err := c.convert(strings.NewReader(".TH test 1\n.EE\n"), "test.man"); err != nil {
		t.Fatal(err)
	}

	if logs.FilterMessage("End of example with no '.EX' or '.nf'").Len() != 1 {
		t.Error("expected a warning for unbalanced '.EE'")
	}
}

func TestConvert_RelativeInsets(t *testing.T) {
	out := convertString(t, Metadata{}, ".TH test 1\n.RS 10\ninset\n.RE\n")

	if !strings.Contains(out, `    <div style="margin-left: 5em;">`) {
		t.Errorf("inset div missing:\n%s", out)
	}
	if !strings.Contains(out, "    </div>\n") {
		t.Errorf("inset not closed:\n%s", out)
	}
}

func TestConvert_UnbalancedInsetEnd(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	var buf bytes.Buffer
	c := NewConverter(Metadata{}, &buf, zap.New(core))
	if err := c.convert(strings.NewReader(".TH test 1\n.RE\n"), "test.man"); err != nil {
		t.Fatal(err)
	}

	if logs.FilterMessage("Unbalanced '.RE'").Len() != 1 {
		t.Error("expected a warning for unbalanced '.RE'")
	}
	if c.indent != 0 {
		t.Errorf("indent = %d, want 0", c.indent)
	}
	if strings.Contains(buf.String(), "</div>") {
		t.Error("unbalanced '.RE' must not emit a closing div")
	}
}

func TestConvert_GenericIndent(t *testing.T) {
	out := convertString(t, Metadata{}, ".TH test 1\n.in 25\nshifted\n.in\nback\n")

	if !strings.Contains(out, `    <div style="margin-left: 25em;">`) {
		t.Errorf("'.in' with a measurement must push an indent wrapper:\n%s", out)
	}
	if !strings.Contains(out, "    </div>\n") {
		t.Errorf("bare '.in' must pop the wrapper:\n%s", out)
	}
}

func TestConvert_Links(t *testing.T) {
	t.Run("mail link", func(t *testing.T) {
		out := convertString(t, Metadata{}, ".TH test 1\n.MT user@example.com\nJohn\n.ME\n")

		if !strings.Contains(out, `<a href="mailto:user@example.com">`) {
			t.Errorf("mail link missing:\n%s", out)
		}
		if !strings.Contains(out, "</a>\n") {
			t.Errorf("link not closed:\n%s", out)
		}
	})

	t.Run("web link", func(t *testing.T) {
		out := convertString(t, Metadata{}, ".TH test 1\n.UR https://example.com\nExample\n.UE\n")

		if !strings.Contains(out, `<a href="https://example.com">`) {
			t.Errorf("web link missing:\n%s", out)
		}
	})

	t.Run("stray end marker", func(t *testing.T) {
		out := convertString(t, Metadata{}, ".TH test 1\n.UE\n.ME\n")

		if strings.Contains(out, "</a>") {
			t.Errorf("end marker with no open link must be silent:\n%s", out)
		}
	})
}

func TestConvert_Synopsis(t *testing.T) {
	out := convertString(t, Metadata{}, ".TH test 1\n.SY command\n.YS\n")

	if !strings.Contains(out, `    <p style="font-family: monospace;">`) {
		t.Errorf("synopsis block missing:\n%s", out)
	}
	if !strings.Contains(out, "</p>\n") {
		t.Errorf("synopsis not closed:\n%s", out)
	}
}

func TestConvert_SingleFontMacros(t *testing.T) {
	out := convertString(t, Metadata{}, ".TH test 1\n.B bold words\n.I\nnext line\n")

	if !strings.Contains(out, "<strong>bold words</strong>") {
		t.Errorf("'.B' output missing:\n%s", out)
	}
	// without arguments the macro consumes the following line
	if !strings.Contains(out, "<em>next line</em>") {
		t.Errorf("'.I' with no argument must render the next line:\n%s", out)
	}
}

func TestConvert_AlternatingFonts(t *testing.T) {
	out := convertString(t, Metadata{}, ".TH test 1\n.BI file .txt\n")

	if !strings.Contains(out, "<strong>file</strong><em>.txt</em>") {
		t.Errorf("'.BI' output missing:\n%s", out)
	}
}

func TestConvert_CrossReferences(t *testing.T) {
	dir := t.TempDir()

	src := filepath.Join(dir, "test.1")
	if err := os.WriteFile(src, []byte(".TH test 1\n.SH SEE ALSO\n.BR foo (1),\n.BR bar (1)\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// only foo.1 exists next to the source
	if err := os.WriteFile(filepath.Join(dir, "foo.1"), []byte(".TH foo 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	c := NewConverter(Metadata{}, &buf, zap.NewNop())
	if err := c.ConvertFile(src); err != nil {
		t.Fatalf("ConvertFile() failed: %v", err)
	}
	if err := c.Finish(); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, `<a href="foo.1.html">`) {
		t.Errorf("reference with an existing sibling must link:\n%s", out)
	}
	if strings.Contains(out, `bar.1.html`) {
		t.Errorf("reference without a sibling must not link:\n%s", out)
	}
	if !strings.Contains(out, "<strong>bar</strong>") {
		t.Errorf("unlinked reference still renders in bold:\n%s", out)
	}
}

func TestConvert_MultipleFiles(t *testing.T) {
	var buf bytes.Buffer
	c := NewConverter(Metadata{}, &buf, zap.NewNop())

	if err := c.convert(strings.NewReader(".TH first 1\nbody one\n"), "first.man"); err != nil {
		t.Fatal(err)
	}
	if err := c.convert(strings.NewReader(".TH second 1\nbody two\n"), "second.man"); err != nil {
		t.Fatal(err)
	}
	if !c.HeaderWritten() {
		t.Error("HeaderWritten() = false after conversion")
	}
	if err := c.Finish(); err != nil {
		t.Fatal(err)
	}
	if c.HeaderWritten() {
		t.Error("HeaderWritten() = true after Finish")
	}

	out := buf.String()
	if strings.Count(out, "<!DOCTYPE html>") != 1 {
		t.Errorf("header must be emitted once:\n%s", out)
	}
	if strings.Count(out, "</html>") != 1 {
		t.Errorf("footer must be emitted once:\n%s", out)
	}
	// the title comes from the first topic
	if !strings.Contains(out, "<title>first(1)</title>") {
		t.Errorf("title must come from the first topic:\n%s", out)
	}
	if !strings.Contains(out, "id=\"second-1\"") {
		t.Errorf("second topic heading missing:\n%s", out)
	}
}

func TestConvert_UnreadableSourceSkipped(t *testing.T) {
	var buf bytes.Buffer
	c := NewConverter(Metadata{}, &buf, zap.NewNop())

	if err := c.ConvertFile("/nonexistent/missing.1"); err != nil {
		t.Errorf("unreadable source must be skipped, got error %v", err)
	}
	if c.HeaderWritten() {
		t.Error("no header expected for a skipped file")
	}
	if err := c.Finish(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("no output expected, got %q", buf.String())
	}
}

func TestConvert_NoFooterWithoutHeader(t *testing.T) {
	var buf bytes.Buffer
	c := NewConverter(Metadata{}, &buf, zap.NewNop())

	if err := c.convert(strings.NewReader("\n"), "empty.man"); err != nil {
		t.Fatal(err)
	}
	if err := c.Finish(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("no output expected for an empty source, got %q", buf.String())
	}
}

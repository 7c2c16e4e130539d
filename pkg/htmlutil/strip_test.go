package htmlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"no markup", "A quiet novel about lighthouses", "A quiet novel about lighthouses"},
		{"single paragraph", "<p>A quiet novel</p>", "A quiet novel"},
		{"two paragraphs", "<p>Part one.</p><p>Part two.</p>", "Part one.\nPart two."},
		{"inline emphasis", "<p>The <i>definitive</i> guide to <b>sourdough</b></p>", "The definitive guide to sourdough"},
		{"line breaks", "Winner<br>Shortlisted<br/>Longlisted", "Winner\nShortlisted\nLonglisted"},
		{"attributes ignored", `<span class="blurb" data-id="9">Read me</span>`, "Read me"},
		{"publisher blurb", `<div class="desc"><h3>Praise</h3><blockquote>&ldquo;Gripping&rdquo;</blockquote><p>Now a major series.</p></div>`, "Praise\n“Gripping”\nNow a major series."},
		{"named entities", "Salt &amp; Pepper &ndash; a cookbook", "Salt & Pepper – a cookbook"},
		{"collapses spaces", "Too   much\t\tspace", "Too much space"},
		{"ordered list", "<ol><li>Hardcover</li><li>Paperback</li></ol>", "Hardcover\nPaperback"},
		{"nbsp", "Vol.&nbsp;2", "Vol. 2"},
		{"image dropped", `Cover <img src="c.jpg"/> inside`, "Cover inside"},
		{"blank block lines dropped", "<p></p><p>  </p><p>Text</p><div></div>", "Text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, StripTags(tt.input))
		})
	}
}

func TestStripTags_DropsScriptAndStyle(t *testing.T) {
	t.Parallel()

	input := `<style>.x{}</style><p>Shown</p><script>track()</script>`
	assert.Equal(t, "Shown", StripTags(input))
}

func TestStripTags_NumericEntities(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Ch. 3 > Ch. 2", StripTags("Ch. 3 &#62; Ch. 2"))
	assert.Equal(t, "naïve", StripTags("na&#239;ve"))
}

func TestStripTags_CaseInsensitiveTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "A\nB", StripTags("<P>A</P><LI>B</LI>"))
}

package document

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/vaultctl/internal/models"
)

const sampleXML = `<?xml version="1.0" encoding="utf-8"?>
<KeePassFile>
	<Meta>
		<Generator>vaultctl</Generator>
	</Meta>
	<Root>
		<Group>
			<Name>General</Name>
			<Entry>
				<String><Key>Title</Key><Value>Mail</Value></String>
				<String><Key>Password</Key><Value Protected="True">c2VjcmV0</Value></String>
			</Entry>
			<Group>
				<Name>Nested</Name>
			</Group>
		</Group>
	</Root>
</KeePassFile>`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := Parse(strings.NewReader(s))
	require.NoError(t, err)
	return doc
}

func TestParse(t *testing.T) {
	doc := mustParse(t, sampleXML)

	require.NotNil(t, doc.Root)
	assert.Equal(t, "KeePassFile", doc.Root.Name)
	assert.Len(t, doc.Root.Children, 2)

	gen := doc.Find("KeePassFile", "Meta", "Generator")
	require.NotNil(t, gen)
	assert.Equal(t, "vaultctl", gen.Text)

	values := doc.FindAll("Value")
	require.Len(t, values, 2)
	assert.False(t, values[0].IsProtected())
	assert.True(t, values[1].IsProtected())

	v, ok := values[1].Attr("Protected")
	assert.True(t, ok)
	assert.Equal(t, "True", v)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "  \n\t"},
		{"unclosed", "<a><b></b>"},
		{"mismatched", "<a></b>"},
		{"multiple roots", "<a/><b/>"},
		{"text outside root", "<a/>junk"},
		{"bad attribute", `<a x=1/>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrFormat)

			var fe *models.FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "document", fe.Stage)
		})
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestParsePreservesClassifiedErrors(t *testing.T) {
	upstream := models.NewBlockIntegrityError(3, "hash mismatch")

	_, err := Parse(failingReader{err: upstream})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrIntegrity)
	assert.NotErrorIs(t, err, models.ErrFormat)
}

func TestParseReadFailure(t *testing.T) {
	diskErr := errors.New("disk read failed")

	_, err := Parse(io.MultiReader(strings.NewReader("<root><entry>"), failingReader{err: diskErr}))
	require.Error(t, err)
	assert.ErrorIs(t, err, diskErr)
	assert.NotErrorIs(t, err, models.ErrFormat)

	_, err = Parse(io.MultiReader(strings.NewReader("<root><entry>"), failingReader{err: io.ErrUnexpectedEOF}))
	assert.ErrorIs(t, err, models.ErrFormat)
}

func TestParseUnsupportedEncoding(t *testing.T) {
	_, err := Parse(strings.NewReader(`<?xml version="1.0" encoding="ISO-8859-1"?><root/>`))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrFormat)
}

func TestWalkOrder(t *testing.T) {
	doc := mustParse(t, `<a><b><c/></b><d><e/></d></a>`)

	var names []string
	require.NoError(t, doc.Walk(func(e *Element) error {
		names = append(names, e.Name)
		return nil
	}))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, names)
}

func TestWalkStops(t *testing.T) {
	doc := mustParse(t, `<a><b/><c/></a>`)
	stop := errors.New("stop")

	var seen []string
	err := doc.Walk(func(e *Element) error {
		seen = append(seen, e.Name)
		if e.Name == "b" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestFind(t *testing.T) {
	doc := mustParse(t, sampleXML)

	assert.Nil(t, doc.Find())
	assert.Nil(t, doc.Find("Other"))
	assert.Nil(t, doc.Find("KeePassFile", "Missing"))
	assert.Equal(t, doc.Root, doc.Find("KeePassFile"))

	var nilDoc *Document
	assert.Nil(t, nilDoc.Find("KeePassFile"))
	assert.Empty(t, nilDoc.FindAll("Value"))
}

func TestIsProtectedCaseInsensitive(t *testing.T) {
	tests := []struct {
		attrs []Attr
		want  bool
	}{
		{[]Attr{{"Protected", "True"}}, true},
		{[]Attr{{"protected", "TRUE"}}, true},
		{[]Attr{{"Protected", "false"}}, false},
		{[]Attr{{"Other", "true"}}, false},
		{nil, false},
	}

	for _, tt := range tests {
		e := &Element{Name: "Value", Attrs: tt.attrs}
		assert.Equal(t, tt.want, e.IsProtected(), "%v", tt.attrs)
	}
}

func TestEncode(t *testing.T) {
	doc := mustParse(t, `<a x="1"><b>hi &amp; bye</b><c/></a>`)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc, EncodeOptions{}))
	assert.Equal(t, `<a x="1"><b>hi &amp; bye</b><c></c></a>`, buf.String())

	again := mustParse(t, buf.String())
	assert.Equal(t, "hi & bye", again.Find("a", "b").Text)
}

func TestEncodeRedact(t *testing.T) {
	doc := mustParse(t, `<a><v>secret</v></a>`)
	doc.Root.Children[0].Sensitive = true

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc, EncodeOptions{Redact: true}))
	assert.NotContains(t, buf.String(), "secret")
	assert.Contains(t, buf.String(), RedactedText)

	buf.Reset()
	require.NoError(t, Encode(&buf, doc, EncodeOptions{}))
	assert.Contains(t, buf.String(), "secret")
}

func TestEncodeIndentDropsLayoutWhitespace(t *testing.T) {
	doc := mustParse(t, "<a>\n  <b>x</b>\n</a>")

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc, EncodeOptions{Indent: "  "}))
	assert.Equal(t, "<a>\n  <b>x</b>\n</a>", buf.String())
}

func TestEncodeEmpty(t *testing.T) {
	assert.Error(t, Encode(&bytes.Buffer{}, &Document{}, EncodeOptions{}))
}

// xorKeystream is a deterministic counter keystream for tests.
type xorKeystream struct{ pos byte }

func (k *xorKeystream) XOR(buf []byte) {
	for i := range buf {
		buf[i] ^= k.pos
		k.pos++
	}
}

func protect(values []string) []string {
	ks := &xorKeystream{}
	out := make([]string, len(values))
	for i, v := range values {
		b := []byte(v)
		ks.XOR(b)
		out[i] = base64.StdEncoding.EncodeToString(b)
	}
	return out
}

func TestUnprotect(t *testing.T) {
	enc := protect([]string{"outer", "first", "second"})
	doc := mustParse(t, `<r>`+
		`<e Protected="true">`+enc[0]+`</e>`+
		`<g><v protected="TRUE">`+enc[1]+`</v></g>`+
		`<v Protected="True" Keep="yes">`+enc[2]+`</v>`+
		`<plain>text</plain>`+
		`</r>`)

	n, err := Unprotect(doc, &xorKeystream{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Zero(t, doc.ProtectedCount())

	assert.Equal(t, "outer", doc.Root.Children[0].Text)
	assert.Equal(t, "first", doc.Find("r", "g", "v").Text)
	last := doc.Root.Children[2]
	assert.Equal(t, "second", last.Text)
	assert.True(t, last.Sensitive)
	assert.Equal(t, []Attr{{"Keep", "yes"}}, last.Attrs)

	plain := doc.Find("r", "plain")
	assert.Equal(t, "text", plain.Text)
	assert.False(t, plain.Sensitive)
}

func TestUnprotectOrderMatters(t *testing.T) {
	enc := protect([]string{"alpha", "beta"})

	// Same values with the document order swapped must not decode.
	doc := mustParse(t, `<r><v Protected="true">`+enc[1]+`</v><v Protected="true">`+enc[0]+`</v></r>`)
	_, err := Unprotect(doc, &xorKeystream{})
	require.NoError(t, err)

	assert.NotEqual(t, "beta", doc.Root.Children[0].Text)
	assert.NotEqual(t, "alpha", doc.Root.Children[1].Text)
}

func TestUnprotectNestedParentFirst(t *testing.T) {
	enc := protect([]string{"parent", "child"})
	doc := mustParse(t, `<r><p Protected="true">`+enc[0]+`<c Protected="true">`+enc[1]+`</c></p></r>`)

	_, err := Unprotect(doc, &xorKeystream{})
	require.NoError(t, err)

	p := doc.Find("r", "p")
	assert.Equal(t, "parent", p.Text)
	assert.Equal(t, "child", p.Children[0].Text)
}

func TestUnprotectEmptyValue(t *testing.T) {
	enc := protect([]string{"", "x"})
	doc := mustParse(t, `<r><v Protected="true"></v><v Protected="true">`+enc[1]+`</v></r>`)

	n, err := Unprotect(doc, &xorKeystream{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "", doc.Root.Children[0].Text)
	assert.Equal(t, "x", doc.Root.Children[1].Text)
}

func TestUnprotectInvalidBase64(t *testing.T) {
	doc := mustParse(t, `<r><v Protected="true">***</v></r>`)

	_, err := Unprotect(doc, &xorKeystream{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrFormat)
}

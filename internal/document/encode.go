package document

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// RedactedText replaces sensitive values when redaction is requested.
const RedactedText = "********"

// EncodeOptions controls Encode output.
type EncodeOptions struct {
	Indent string // per-level indentation; empty keeps the original whitespace
	Redact bool   // mask Sensitive values
}

// Encode writes the document as XML.
func Encode(w io.Writer, doc *Document, opts EncodeOptions) error {
	if doc == nil || doc.Root == nil {
		return fmt.Errorf("encode: empty document")
	}

	enc := xml.NewEncoder(w)
	if opts.Indent != "" {
		enc.Indent("", opts.Indent)
	}

	if err := encodeElement(enc, doc.Root, opts); err != nil {
		return fmt.Errorf("encode <%s>: %w", doc.Root.Name, err)
	}

	return enc.Flush()
}

func encodeElement(enc *xml.Encoder, e *Element, opts EncodeOptions) error {
	start := xml.StartElement{Name: xml.Name{Local: e.Name}}
	for _, a := range e.Attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}

	text := e.Text
	if e.Sensitive && opts.Redact {
		text = RedactedText
	}
	layout := len(e.Children) > 0 && strings.TrimSpace(text) == ""
	if text != "" && !(layout && opts.Indent != "") {
		if err := enc.EncodeToken(xml.CharData(text)); err != nil {
			return err
		}
	}

	for _, c := range e.Children {
		if err := encodeElement(enc, c, opts); err != nil {
			return err
		}
	}

	return enc.EncodeToken(start.End())
}

package document

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/TheMichaelB/vaultctl/internal/models"
)

const stage = "document"

// Parse decodes an XML document into a tree. Only syntax is checked.
func Parse(r io.Reader) (*Document, error) {
	src := &recordingReader{r: r}
	dec := xml.NewDecoder(src)
	dec.Strict = true

	var (
		root  *Element
		stack []*Element
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if src.err != nil && errors.Is(err, src.err) {
				return nil, models.WrapReadError(stage, "read document", err)
			}
			return nil, models.WrapStageError(stage, "malformed document", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{
				Name:  t.Name.Local,
				Attrs: convertAttrs(t.Attr),
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, models.NewFormatError(stage, "multiple root elements", nil)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)

		case xml.EndElement:
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 {
				if strings.TrimSpace(string(t)) != "" {
					return nil, models.NewFormatError(stage, "text outside the root element", nil)
				}
				continue
			}
			top := stack[len(stack)-1]
			top.Text += string(t)
		}
	}

	if root == nil {
		return nil, models.NewFormatError(stage, "document has no root element", nil)
	}

	return &Document{Root: root}, nil
}

func convertAttrs(in []xml.Attr) []Attr {
	if len(in) == 0 {
		return nil
	}
	out := make([]Attr, 0, len(in))
	for _, a := range in {
		name := a.Name.Local
		if a.Name.Space == "xmlns" {
			name = "xmlns:" + name
		}
		out = append(out, Attr{Name: name, Value: a.Value})
	}
	return out
}

// recordingReader remembers the last source failure so it can be told apart
// from a syntax error.
type recordingReader struct {
	r   io.Reader
	err error
}

func (r *recordingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF {
		r.err = err
	}
	return n, err
}

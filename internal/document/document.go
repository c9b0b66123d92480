// Package document holds the tree decoded from a container payload.
package document

import "strings"

// ProtectedAttr marks an element whose text is keystream-obscured.
const ProtectedAttr = "Protected"

// Attr is a single element attribute.
type Attr struct {
	Name  string
	Value string
}

// Element is a node of the document tree. Text is the concatenated
// character data directly inside the element.
type Element struct {
	Name     string
	Attrs    []Attr
	Text     string
	Children []*Element

	// Sensitive marks text recovered from a protected value.
	Sensitive bool
}

// Document is the tree produced by a load. The caller owns it.
type Document struct {
	Root *Element
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// IsProtected reports whether the element carries Protected="true".
// Name and value are compared case-insensitively.
func (e *Element) IsProtected() bool {
	for _, a := range e.Attrs {
		if strings.EqualFold(a.Name, ProtectedAttr) && strings.EqualFold(strings.TrimSpace(a.Value), "true") {
			return true
		}
	}
	return false
}

func (e *Element) clearProtected() {
	kept := e.Attrs[:0]
	for _, a := range e.Attrs {
		if !strings.EqualFold(a.Name, ProtectedAttr) {
			kept = append(kept, a)
		}
	}
	e.Attrs = kept
}

// Child returns the first direct child with the given name.
func (e *Element) Child(name string) *Element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Walk visits e and its descendants depth-first in document order. An
// element is visited before its children. A non-nil error stops the walk.
func (e *Element) Walk(fn func(*Element) error) error {
	if err := fn(e); err != nil {
		return err
	}
	for _, c := range e.Children {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// Walk visits every element in document order.
func (d *Document) Walk(fn func(*Element) error) error {
	if d == nil || d.Root == nil {
		return nil
	}
	return d.Root.Walk(fn)
}

// Find follows path from the root. The first segment must name the root.
func (d *Document) Find(path ...string) *Element {
	if d == nil || d.Root == nil || len(path) == 0 || d.Root.Name != path[0] {
		return nil
	}
	cur := d.Root
	for _, name := range path[1:] {
		if cur = cur.Child(name); cur == nil {
			return nil
		}
	}
	return cur
}

// FindAll returns every element with the given name in document order.
func (d *Document) FindAll(name string) []*Element {
	var out []*Element
	_ = d.Walk(func(e *Element) error {
		if e.Name == name {
			out = append(out, e)
		}
		return nil
	})
	return out
}

// ProtectedCount returns how many elements still carry a protection marker.
func (d *Document) ProtectedCount() int {
	n := 0
	_ = d.Walk(func(e *Element) error {
		if e.IsProtected() {
			n++
		}
		return nil
	})
	return n
}

package document

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/TheMichaelB/vaultctl/internal/models"
)

// Keystream yields successive keystream bytes. Each call consumes the next
// len(buf) bytes of a single continuous stream.
type Keystream interface {
	XOR(buf []byte)
}

// Unprotect replaces every protected value with its plaintext. Elements are
// processed in document order, an element before its children, and each
// consumes exactly as many keystream bytes as its decoded ciphertext.
// Decoding out of order or twice yields wrong plaintext.
func Unprotect(doc *Document, ks Keystream) (int, error) {
	count := 0

	err := doc.Walk(func(e *Element) error {
		if !e.IsProtected() {
			return nil
		}

		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(e.Text))
		if err != nil {
			return models.NewFormatError(stage, fmt.Sprintf("protected value %d in <%s> is not base64", count, e.Name), err)
		}

		ks.XOR(raw)
		e.Text = string(raw)
		for i := range raw {
			raw[i] = 0
		}

		e.clearProtected()
		e.Sensitive = true
		count++
		return nil
	})

	return count, err
}

package printing

import (
	"fmt"
	"strings"

	"pos-core/internal/apperr"
)

const maxLabelCopies = 100

var ErrInvalidLabel = apperr.Validation("INVALID_LABEL", "label needs a barcode and between 1 and 100 copies")

// LabelRequest asks for barcode labels of one product.
type LabelRequest struct {
	Barcode string
	Title   string
	Copies  int
}

func (r LabelRequest) Validate() error {
	if strings.TrimSpace(r.Barcode) == "" || r.Copies < 1 || r.Copies > maxLabelCopies {
		return ErrInvalidLabel
	}
	return nil
}

// EncodeZPL renders one Code 128 label per copy.
func EncodeZPL(r LabelRequest) []byte {
	title := zplEscape(truncate(r.Title, 30))
	barcode := zplEscape(strings.TrimSpace(r.Barcode))

	var b strings.Builder
	for i := 0; i < r.Copies; i++ {
		b.WriteString("^XA\n^PW600\n")
		fmt.Fprintf(&b, "^FO50,40^A0N,30,30^FD%s^FS\n", title)
		b.WriteString("^FO50,90^BY2\n^BCN,120,Y,N,N\n")
		fmt.Fprintf(&b, "^FD%s^FS\n", barcode)
		b.WriteString("^XZ\n")
	}
	return []byte(b.String())
}

// zplEscape drops the ZPL command prefixes from field data.
func zplEscape(s string) string {
	return strings.NewReplacer("^", "", "~", "").Replace(s)
}

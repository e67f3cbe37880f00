// Package pdfinspect validates uploaded content as parseable PDF.
package pdfinspect

import (
	"bytes"
	"fmt"

	pdflib "github.com/digitorus/pdf"

	"github.com/inkseal/inkseal/internal/errs"
)

var pdfMagic = []byte("%PDF-")

// Info describes an inspected document.
type Info struct {
	Pages int
}

// Inspect parses data as a PDF. Unparseable or empty content is rejected
// with errs.ErrValidation; the parser panics on some malformed inputs, so
// the recover here folds those into the same validation error.
func Inspect(data []byte) (info Info, err error) {
	if len(data) == 0 || !bytes.HasPrefix(data, pdfMagic) {
		return Info{}, fmt.Errorf("content is not a PDF: %w", errs.ErrValidation)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF (%v): %w", r, errs.ErrValidation)
		}
	}()
	rdr, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Info{}, fmt.Errorf("malformed PDF: %w", errs.ErrValidation)
	}
	return Info{Pages: rdr.NumPage()}, nil
}

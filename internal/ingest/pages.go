package ingest

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rotisserie/eris"
)

// CountPages reads the PDF page tree and returns the number of pages.
// Only document structure is read; page content is left to the engine.
func CountPages(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return 0, eris.Wrap(err, "ingest: read pdf context")
	}
	return pdfCtx.PageCount, nil
}

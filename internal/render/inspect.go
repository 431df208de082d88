package render

import (
	"fmt"
	"os"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFInfo describes a rendered artifact.
type PDFInfo struct {
	Pages int   `json:"pages"`
	Bytes int64 `json:"bytes"`
}

// Inspect opens a rendered PDF and reports its page count and size. A file
// the PDF reader cannot open is reported as an error; the artifact itself
// is left in place.
func Inspect(path string) (PDFInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return PDFInfo{}, fmt.Errorf("stat pdf: %w", err)
	}

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return PDFInfo{Bytes: st.Size()}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	return PDFInfo{Pages: reader.NumPage(), Bytes: st.Size()}, nil
}

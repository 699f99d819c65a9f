package extraction

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	apperrors "notafiscal/pkg/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeTIFF = "image/tiff"
	MimeWEBP = "image/webp"
)

var acceptedTypes = []string{MimePDF, MimeDOCX, MimePNG, MimeJPEG, MimeTIFF, MimeWEBP}

func AcceptedTypes() []string {
	return append([]string(nil), acceptedTypes...)
}

type Document struct {
	Path      string
	Name      string
	Size      int64
	MimeType  string
	PageCount int
}

// InspectDocument checks that path is a regular file of a supported type.
// PDFs are parsed to count pages; encrypted ones are rejected.
func InspectDocument(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.InputNotFound(path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, apperrors.InputNotFound(path)
	}
	if info.Size() == 0 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("document is empty: %s", path))
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect type of %s: %w", path, err)
	}

	doc := &Document{
		Path: path,
		Name: filepath.Base(path),
		Size: info.Size(),
	}
	for _, accepted := range acceptedTypes {
		if mtype.Is(accepted) {
			doc.MimeType = accepted
			break
		}
	}
	if doc.MimeType == "" {
		return nil, apperrors.UnsupportedMedia(mtype.String())
	}

	if doc.MimeType == MimePDF {
		pages, err := pdfPageCount(path)
		if err != nil {
			return nil, err
		}
		doc.PageCount = pages
	}
	return doc, nil
}

func pdfPageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInvalidInput, "PDF could not be read", http.StatusUnprocessableEntity)
	}
	if ctx.Encrypt != nil {
		return 0, apperrors.InvalidInput("encrypted PDFs are not supported")
	}
	return ctx.PageCount, nil
}

package rag

import (
	"os"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/codeready-toolchain/genforge/pkg/apierrors"
)

// extractPDFText extracts per-page text and joins pages with a blank line,
// per spec.md's PDF ingestion rule. go-fitz requires a path, not a byte
// slice, so the document is staged to a scratch file first.
func extractPDFText(raw []byte) (string, error) {
	tmp, err := os.CreateTemp("", "rag-doc-*.pdf")
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindUnsupportedDocument, "failed to stage PDF for extraction", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(raw); err != nil {
		return "", apierrors.Wrap(apierrors.KindUnsupportedDocument, "failed to stage PDF for extraction", err)
	}

	doc, err := fitz.New(tmp.Name())
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindUnsupportedDocument, "failed to open PDF", err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", apierrors.Wrap(apierrors.KindUnsupportedDocument, "failed to extract PDF page text", err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n\n"), nil
}

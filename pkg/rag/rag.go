// Package rag implements the Context Retriever (C2): document ingestion
// into content-hashed, embedded chunks, and nearest-neighbor retrieval of
// the chunks most relevant to a query, scoped to a single user.
package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/genforge/pkg/apierrors"
)

const (
	// MaxDocumentBytes is the ingestion size ceiling (5 MiB).
	MaxDocumentBytes = 5 * 1024 * 1024

	// DefaultChunkSize is the default chunk character ceiling (S).
	DefaultChunkSize = 500
	// DefaultChunkOverlap is the default character overlap between
	// adjacent chunks (O).
	DefaultChunkOverlap = 50

	// EmbeddingDimensions is D, the embedding vector width.
	EmbeddingDimensions = 768

	// EmbedBatchSize caps how many chunks are embedded per provider call.
	EmbedBatchSize = 100

	// SimilarityFloor discards retrieval results at or below this cosine
	// similarity score — content this dissimilar is deemed irrelevant.
	SimilarityFloor = 0.3
)

// Document is an ingested file, deduplicated per (UserID, ContentHash).
type Document struct {
	ID          string
	UserID      string
	Filename    string
	ContentHash string
	Text        string
}

// Chunk is one piece of a Document's text, persisted with its embedding.
type Chunk struct {
	ID         string
	DocumentID string
	UserID     string
	Index      int
	Text       string
	Embedding  []float32
}

var supportedExtensions = map[string]bool{
	".txt": true, ".md": true, ".json": true, ".csv": true, ".pdf": true,
}

// ExtractText converts raw file bytes into plain text based on filename
// extension, following spec.md's per-format rules: text/markdown decode as
// UTF-8 verbatim; JSON is pretty-printed; CSV rows are serialized as
// "header: value; ..."; PDF text extraction is delegated to extractPDFText.
func ExtractText(filename string, raw []byte) (string, error) {
	if len(raw) > MaxDocumentBytes {
		return "", apierrors.New(apierrors.KindDocumentTooLarge, fmt.Sprintf("%s exceeds %d bytes", filename, MaxDocumentBytes))
	}

	ext := extensionOf(filename)
	if !supportedExtensions[ext] {
		return "", apierrors.New(apierrors.KindUnsupportedDocument, fmt.Sprintf("unsupported extension %q", ext))
	}

	switch ext {
	case ".txt", ".md":
		return string(raw), nil
	case ".json":
		return prettyPrintJSON(raw)
	case ".csv":
		return serializeCSVRows(raw), nil
	case ".pdf":
		return extractPDFText(raw)
	default:
		return "", apierrors.New(apierrors.KindUnsupportedDocument, fmt.Sprintf("unsupported extension %q", ext))
	}
}

func extensionOf(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(filename[idx:])
}

func prettyPrintJSON(raw []byte) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", apierrors.Wrap(apierrors.KindUnsupportedDocument, "invalid JSON document", err)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindUnsupportedDocument, "failed to format JSON document", err)
	}
	return string(pretty), nil
}

// serializeCSVRows serializes each row as "header: value; header2: value2".
// Malformed rows (wrong column count) are serialized positionally instead
// of dropped, so a ragged file still contributes retrievable text.
func serializeCSVRows(raw []byte) string {
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) == 0 {
		return ""
	}
	headers := strings.Split(lines[0], ",")

	var out []string
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ",")
		var parts []string
		for i, field := range fields {
			header := fmt.Sprintf("col%d", i)
			if i < len(headers) {
				header = strings.TrimSpace(headers[i])
			}
			parts = append(parts, fmt.Sprintf("%s: %s", header, strings.TrimSpace(field)))
		}
		out = append(out, strings.Join(parts, "; "))
	}
	return strings.Join(out, "\n")
}

// ContentHash computes the dedup key for a raw document body.
func ContentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

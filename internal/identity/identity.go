// Package identity derives content-addressed identifiers for documents and
// the chunks cut from them.
package identity

import (
	"crypto/sha256"
	"fmt"
)

// ContentDigest returns the lowercase hex SHA-256 of b.
func ContentDigest(b []byte) string {
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum)
}

// TextHash is ContentDigest over the UTF-8 bytes of text.
func TextHash(text string) string {
	return ContentDigest([]byte(text))
}

// DocumentID binds a document to both its path and its bytes: the content
// digest is appended to the path and hashed again. Renaming a file or
// changing a single byte yields a different id.
func DocumentID(path string, b []byte) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte(ContentDigest(b)))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ChunkID identifies a token span of a document by page range and offsets.
func ChunkID(docID string, pageStart, pageEnd, spanStart, spanEnd int) string {
	raw := fmt.Sprintf("%s:%d-%d:%d-%d", docID, pageStart, pageEnd, spanStart, spanEnd)
	return ContentDigest([]byte(raw))
}

// UpsertID is the vector id a chunk is stored under. Re-ingesting unchanged
// content reproduces the same ids, so the store overwrites instead of
// duplicating.
func UpsertID(docID string, index int) string {
	return fmt.Sprintf("%s-%d", docID, index)
}

// Package storage keeps uploaded fiscal documents and generated exports on
// the local filesystem, one subtree per user.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// DocumentKind tells the processors how to read a stored document.
type DocumentKind string

const (
	KindReceiptPDF   DocumentKind = "receipt-pdf"
	KindStatementOFX DocumentKind = "statement-ofx"
)

// DocumentInfo contains metadata about a stored document.
type DocumentInfo struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Kind      DocumentKind `json:"kind"`
	Size      int64        `json:"size"`
	Path      string       `json:"path"` // relative to the user directory
	CreatedAt time.Time    `json:"created_at"`
}

// DocumentStore is the interface the processing services depend on.
type DocumentStore interface {
	// Save stores an uploaded document and returns its metadata.
	Save(ctx context.Context, userID uuid.UUID, name string, kind DocumentKind, r io.Reader) (*DocumentInfo, error)

	// Open returns a reader for a stored document.
	Open(ctx context.Context, userID uuid.UUID, docID uuid.UUID) (io.ReadCloser, *DocumentInfo, error)

	// List returns all documents for a user.
	List(ctx context.Context, userID uuid.UUID) ([]*DocumentInfo, error)

	// Delete removes a document and its metadata.
	Delete(ctx context.Context, userID uuid.UUID, docID uuid.UUID) error

	// AbsPath resolves stored metadata to a readable on-disk path.
	AbsPath(userID uuid.UUID, info *DocumentInfo) string
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalStore implements DocumentStore on the local filesystem. Each user
// gets a directory; document metadata lives alongside in .meta/ as JSON.
type LocalStore struct {
	basePath string
}

var _ DocumentStore = (*LocalStore)(nil)

// NewLocalStore creates the base directory if needed.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

func (s *LocalStore) Save(ctx context.Context, userID uuid.UUID, name string, kind DocumentKind, r io.Reader) (*DocumentInfo, error) {
	docID := uuid.New()

	userDir := filepath.Join(s.basePath, userID.String())
	if err := os.MkdirAll(userDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create user directory: %w", err)
	}

	// UUID prefix keeps repeated uploads of the same file apart.
	stored := fmt.Sprintf("%s_%s", docID.String()[:8], sanitizeName(name))
	path := filepath.Join(userDir, stored)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write document: %w", err)
	}

	info := &DocumentInfo{
		ID:        docID,
		Name:      name,
		Kind:      kind,
		Size:      size,
		Path:      stored,
		CreatedAt: time.Now(),
	}
	if err := s.writeMeta(userID, info); err != nil {
		os.Remove(path)
		return nil, err
	}
	return info, nil
}

func (s *LocalStore) Open(ctx context.Context, userID uuid.UUID, docID uuid.UUID) (io.ReadCloser, *DocumentInfo, error) {
	info, err := s.readMeta(userID, docID)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(s.basePath, userID.String(), info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open document: %w", err)
	}
	return f, info, nil
}

func (s *LocalStore) List(ctx context.Context, userID uuid.UUID) ([]*DocumentInfo, error) {
	metaDir := filepath.Join(s.basePath, userID.String(), ".meta")
	entries, err := os.ReadDir(metaDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*DocumentInfo{}, nil
		}
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	docs := make([]*DocumentInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		info, err := s.readMeta(userID, id)
		if err != nil {
			continue
		}
		docs = append(docs, info)
	}
	return docs, nil
}

func (s *LocalStore) Delete(ctx context.Context, userID uuid.UUID, docID uuid.UUID) error {
	info, err := s.readMeta(userID, docID)
	if err != nil {
		return err
	}

	path := filepath.Join(s.basePath, userID.String(), info.Path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	os.Remove(s.metaPath(userID, docID))
	return nil
}

// AbsPath returns the on-disk location of a stored document, for
// consumers that read files directly rather than through Open.
func (s *LocalStore) AbsPath(userID uuid.UUID, info *DocumentInfo) string {
	return filepath.Join(s.basePath, userID.String(), info.Path)
}

func (s *LocalStore) metaPath(userID, docID uuid.UUID) string {
	return filepath.Join(s.basePath, userID.String(), ".meta", docID.String()+".json")
}

func (s *LocalStore) readMeta(userID, docID uuid.UUID) (*DocumentInfo, error) {
	data, err := os.ReadFile(s.metaPath(userID, docID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("document not found: %s", docID)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info DocumentInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

func (s *LocalStore) writeMeta(userID uuid.UUID, info *DocumentInfo) error {
	metaDir := filepath.Join(s.basePath, userID.String(), ".meta")
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(userID, info.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// sanitizeName strips characters that would escape the user directory.
func sanitizeName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}

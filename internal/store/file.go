package store

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/speaklarity/platform/internal/errors"
)

const indexFile = "index.json"

// FileStore keeps <root>/<id>/index.json per conversation.
type FileStore struct {
	root string
	mu   sync.Mutex
}

// NewFileStore creates root if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.StoreFailed, "create data dir %s", root)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) indexPath(id string) string {
	return filepath.Join(s.root, id, indexFile)
}

func (s *FileStore) Get(_ context.Context, id string) (*Conversation, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(id)
	if err != nil {
		return nil, err
	}
	return doc.conversation()
}

func (s *FileStore) Put(_ context.Context, c *Conversation) error {
	if err := ValidateID(c.ID); err != nil {
		return err
	}
	doc, err := encodeConversation(c)
	if err != nil {
		return err
	}
	if err := doc.apply(nil, now()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(c.ID, doc)
}

func (s *FileStore) Merge(_ context.Context, id string, f Fields) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(id)
	if err != nil {
		return err
	}
	if err := doc.apply(f, now()); err != nil {
		return err
	}
	return s.write(id, doc)
}

func (s *FileStore) List(_ context.Context) ([]*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.StoreFailed, "list data dir")
	}
	var out []*Conversation
	for _, e := range entries {
		if !e.IsDir() || ValidateID(e.Name()) != nil {
			continue
		}
		doc, err := s.read(e.Name())
		if apperrors.IsCode(err, apperrors.NotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		c, err := doc.conversation()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sortConversations(out)
	return out, nil
}

// Delete removes the index and, when nothing else is left in it, the
// conversation directory.
func (s *FileStore) Delete(_ context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.indexPath(id)); err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return notFound(id)
		}
		return apperrors.Wrap(err, apperrors.StoreFailed, "remove index")
	}
	_ = os.Remove(filepath.Join(s.root, id))
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read(id string) (document, error) {
	data, err := os.ReadFile(s.indexPath(id))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, notFound(id)
		}
		return nil, apperrors.Wrap(err, apperrors.StoreFailed, "read index")
	}
	return decodeDocument(data)
}

func (s *FileStore) write(id string, doc document) error {
	data, err := doc.bytes()
	if err != nil {
		return err
	}
	dir := filepath.Join(s.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.StoreFailed, "create conversation dir")
	}
	return writeAtomic(filepath.Join(dir, indexFile), data)
}

// writeAtomic replaces path via a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return apperrors.Wrap(err, apperrors.StoreFailed, "create temp file")
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return apperrors.Wrap(err, apperrors.StoreFailed, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return apperrors.Wrap(err, apperrors.StoreFailed, "close temp file")
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return apperrors.Wrap(err, apperrors.StoreFailed, "rename temp file")
	}
	return nil
}

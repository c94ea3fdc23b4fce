package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/appana-ai/appana-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Document is one markdown reference file
type Document struct {
	ID       string
	Title    string
	Subject  string
	Content  string
	Headings []string
}

// SubjectLibrary loads markdown files from a directory tree. A document's
// subject is its top-level directory, or the file name for files at the root.
type SubjectLibrary struct {
	mu        sync.RWMutex
	documents map[string]*Document
	dir       string
	logger    *logrus.Logger
}

// NewSubjectLibrary creates an empty library
func NewSubjectLibrary(logger *logrus.Logger) *SubjectLibrary {
	return &SubjectLibrary{
		documents: make(map[string]*Document),
		logger:    logger,
	}
}

// Load replaces the library with the markdown files under dir. A missing
// directory yields an empty library.
func (s *SubjectLibrary) Load(ctx context.Context, dir string) error {
	s.logger.WithField("dir", dir).Info("Loading subject library")

	docs := make(map[string]*Document)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		doc, err := loadDocument(dir, path)
		if err != nil {
			s.logger.WithError(err).WithField("path", path).Warn("Failed to load document")
			return nil
		}

		docs[doc.ID] = doc
		s.logger.WithFields(logrus.Fields{
			"id":      doc.ID,
			"subject": doc.Subject,
			"title":   doc.Title,
		}).Debug("Loaded document")
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.WithField("dir", dir).Warn("Subject library directory not found")
		err = nil
	}
	if err != nil {
		return fmt.Errorf("failed to walk subject library: %w", err)
	}

	s.mu.Lock()
	s.dir = dir
	s.documents = docs
	s.mu.Unlock()

	s.logger.WithField("count", len(docs)).Info("Subject library loaded")
	return nil
}

// Refresh reloads the last loaded directory
func (s *SubjectLibrary) Refresh(ctx context.Context) error {
	s.mu.RLock()
	dir := s.dir
	s.mu.RUnlock()
	return s.Load(ctx, dir)
}

// RefreshEvery reloads the library on every tick until ctx is done. A
// failed reload keeps the previous documents.
func (s *SubjectLibrary) RefreshEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.WithError(err).Warn("Failed to refresh subject library")
			}
		}
	}
}

// Count returns the number of loaded documents
func (s *SubjectLibrary) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// Match returns up to limit documents for subject, best match first. A
// document matches when its subject equals the request subject, or its
// title or a heading contains it.
func (s *SubjectLibrary) Match(subject string, limit int) []models.ReferenceDoc {
	subject = normalize(subject)
	if subject == "" || limit <= 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		doc   *Document
		score int
	}
	var hits []scored
	for _, doc := range s.documents {
		score := 0
		if normalize(doc.Subject) == subject {
			score += 10
		}
		if strings.Contains(normalize(doc.Title), subject) {
			score += 5
		}
		for _, h := range doc.Headings {
			if strings.Contains(normalize(h), subject) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{doc, score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].doc.ID < hits[j].doc.ID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	refs := make([]models.ReferenceDoc, 0, len(hits))
	for _, h := range hits {
		refs = append(refs, models.ReferenceDoc{Name: h.doc.Title, Content: h.doc.Content})
	}
	return refs
}

func loadDocument(root, path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil, err
	}
	rel = filepath.ToSlash(rel)
	id := strings.TrimSuffix(rel, filepath.Ext(rel))

	subject := id
	if i := strings.Index(id, "/"); i >= 0 {
		subject = id[:i]
	}

	doc := &Document{
		ID:      id,
		Subject: subject,
		Content: string(content),
	}
	parseHeadings(doc)
	return doc, nil
}

// parseHeadings fills Title from the first level-1 heading, falling back to
// the file name, and collects every heading.
func parseHeadings(doc *Document) {
	for _, line := range strings.Split(doc.Content, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
		text := strings.TrimSpace(trimmed[level:])
		if text == "" {
			continue
		}
		if level == 1 && doc.Title == "" {
			doc.Title = text
		}
		doc.Headings = append(doc.Headings, text)
	}

	if doc.Title == "" {
		base := doc.ID
		if i := strings.LastIndex(base, "/"); i >= 0 {
			base = base[i+1:]
		}
		doc.Title = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(s)))
}

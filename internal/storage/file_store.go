package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"cvtailor/internal/errors"
	"cvtailor/internal/types"
)

const (
	// AnalysisFileName is the per-company document holding the score history
	AnalysisFileName = "ats_analysis.json"
	// EntriesKey is the document key of the append-only record list
	EntriesKey = "ats_calculation_entries"

	updatedAtKey = "updated_at"
	companyKey   = "company"
)

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Store persists ATS score records per company
type Store interface {
	Append(ctx context.Context, company string, record types.ATSScoreRecord) error
	List(ctx context.Context, company string) ([]types.ATSScoreRecord, error)
	Companies(ctx context.Context) ([]string, error)
}

// FileStore keeps one JSON document per company under a data directory. Records
// are only ever appended. Writes go through a temp file and rename; across
// processes the last write wins.
type FileStore struct {
	dir    string
	logger *errors.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates the data directory if needed
func NewFileStore(dir string, logger *errors.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "storage directory cannot be empty", nil)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.NewStorageError("DIRECTORY_CREATE_FAILED",
			fmt.Sprintf("Cannot create storage directory: %s", dir), err)
	}
	if logger == nil {
		logger = errors.Discard()
	}
	return &FileStore{
		dir:    dir,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// CompanySlug turns a company name into a directory name
func CompanySlug(company string) (string, error) {
	slug := strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(strings.TrimSpace(company)), "-"), "-")
	if slug == "" {
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid company name %q", company), nil)
	}
	return slug, nil
}

func (s *FileStore) companyLock(slug string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[slug]
	if !ok {
		l = &sync.Mutex{}
		s.locks[slug] = l
	}
	return l
}

func (s *FileStore) path(slug string) string {
	return filepath.Join(s.dir, slug, AnalysisFileName)
}

// Append adds record to the company's history. Past entries are never decoded,
// so they are written back unchanged, and other top-level keys of an existing
// document are preserved.
func (s *FileStore) Append(ctx context.Context, company string, record types.ATSScoreRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slug, err := CompanySlug(company)
	if err != nil {
		return err
	}

	lock := s.companyLock(slug)
	lock.Lock()
	defer lock.Unlock()

	path := s.path(slug)
	doc, err := readDocument(path)
	if err != nil {
		return err
	}

	// past entries stay opaque so they are written back untouched
	entries, err := rawEntries(doc, path)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "Cannot encode ATS record", err)
	}
	entries = append(entries, encoded)

	if err := setKey(doc, EntriesKey, entries); err != nil {
		return err
	}
	if _, ok := doc[companyKey]; !ok {
		if err := setKey(doc, companyKey, company); err != nil {
			return err
		}
	}
	if err := setKey(doc, updatedAtKey, s.now().UTC()); err != nil {
		return err
	}

	if err := writeDocument(path, doc); err != nil {
		return err
	}

	s.logger.Debug("ats record appended",
		"company", slug,
		"record_id", record.ID,
		"entries", len(entries))
	return nil
}

// List returns the company's history oldest first. An unknown company has no entries.
func (s *FileStore) List(ctx context.Context, company string) ([]types.ATSScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slug, err := CompanySlug(company)
	if err != nil {
		return nil, err
	}

	lock := s.companyLock(slug)
	lock.Lock()
	defer lock.Unlock()

	path := s.path(slug)
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return decodeEntries(doc, path)
}

// Companies lists the slugs that have a history document
func (s *FileStore) Companies(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeStorageRead,
			fmt.Sprintf("Cannot list storage directory: %s", s.dir), err)
	}

	var companies []string
	for _, e := range dirEntries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(s.path(e.Name())); err == nil {
			companies = append(companies, e.Name())
		}
	}
	sort.Strings(companies)
	return companies, nil
}

func readDocument(path string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]json.RawMessage), nil
		}
		return nil, errors.NewStorageError(errors.ErrCodeStorageRead,
			fmt.Sprintf("Cannot read analysis file: %s", path), err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return make(map[string]json.RawMessage), nil
	}

	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeStorageRead,
			fmt.Sprintf("Analysis file is not a JSON object: %s", path), err)
	}
	return doc, nil
}

func rawEntries(doc map[string]json.RawMessage, path string) ([]json.RawMessage, error) {
	raw, ok := doc[EntriesKey]
	if !ok {
		return []json.RawMessage{}, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeStorageRead,
			fmt.Sprintf("Malformed %s in %s", EntriesKey, path), err)
	}
	if entries == nil {
		entries = []json.RawMessage{}
	}
	return entries, nil
}

func decodeEntries(doc map[string]json.RawMessage, path string) ([]types.ATSScoreRecord, error) {
	raw, ok := doc[EntriesKey]
	if !ok {
		return []types.ATSScoreRecord{}, nil
	}
	var entries []types.ATSScoreRecord
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeStorageRead,
			fmt.Sprintf("Malformed %s in %s", EntriesKey, path), err)
	}
	if entries == nil {
		entries = []types.ATSScoreRecord{}
	}
	return entries, nil
}

func setKey(doc map[string]json.RawMessage, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite,
			fmt.Sprintf("Cannot encode %s", key), err)
	}
	doc[key] = raw
	return nil
}

func writeDocument(path string, doc map[string]json.RawMessage) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.NewStorageError("DIRECTORY_CREATE_FAILED",
			fmt.Sprintf("Cannot create directory: %s", dir), err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "Cannot encode analysis document", err)
	}

	tmp, err := os.CreateTemp(dir, AnalysisFileName+".*.tmp")
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite,
			fmt.Sprintf("Cannot create temp file in %s", dir), err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.NewStorageError(errors.ErrCodeStorageWrite,
			fmt.Sprintf("Cannot write analysis file: %s", path), err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.NewStorageError(errors.ErrCodeStorageWrite,
			fmt.Sprintf("Cannot write analysis file: %s", path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return errors.NewStorageError(errors.ErrCodeStorageWrite,
			fmt.Sprintf("Cannot replace analysis file: %s", path), err)
	}
	return nil
}

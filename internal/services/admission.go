package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/HammerMeetNail/memeboard/internal/models"
	"github.com/HammerMeetNail/memeboard/internal/storage"
)

var (
	ErrNoFile      = errors.New("no file uploaded")
	ErrBadType     = errors.New("file type not allowed")
	ErrInvalidArea = errors.New("invalid area")
)

const (
	storedNameBytes    = 16
	maxOriginalNameLen = 255
	maxNameAttempts    = 3
)

// AdmittedFile is a validated upload that has been written to storage but
// not yet recorded in the catalog.
type AdmittedFile struct {
	Area         models.Area
	Path         string
	StoredName   string
	OriginalName string
}

type AdmissionService struct {
	store     storage.Store
	whitelist map[string]struct{}
	randRead  func([]byte) (int, error)
}

func NewAdmissionService(store storage.Store, whitelist map[string]struct{}) *AdmissionService {
	if whitelist == nil {
		whitelist = models.AllowedExtensions
	}
	return &AdmissionService{
		store:     store,
		whitelist: whitelist,
		randRead:  rand.Read,
	}
}

// CheckUpload validates a submission without touching storage and returns
// the lower-cased extension.
func CheckUpload(filename string, whitelist map[string]struct{}) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", ErrNoFile
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := whitelist[ext]; !ok {
		return "", ErrBadType
	}
	return ext, nil
}

// Admit validates filename, picks a random stored name and writes r under
// <area>/<name>. The original filename is carried along for display only.
func (s *AdmissionService) Admit(ctx context.Context, filename string, r io.Reader, area models.Area) (*AdmittedFile, error) {
	if r == nil {
		return nil, ErrNoFile
	}
	ext, err := CheckUpload(filename, s.whitelist)
	if err != nil {
		return nil, err
	}
	if !area.Valid() {
		return nil, ErrInvalidArea
	}

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name, err := s.storedName(ext)
		if err != nil {
			return nil, err
		}
		key := path.Join(string(area), name)

		err = s.store.Put(ctx, key, r)
		if errors.Is(err, storage.ErrExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("storing upload: %w", err)
		}

		return &AdmittedFile{
			Area:         area,
			Path:         key,
			StoredName:   name,
			OriginalName: truncate(filename, maxOriginalNameLen),
		}, nil
	}
	return nil, fmt.Errorf("storing upload: %w", storage.ErrExists)
}

func (s *AdmissionService) storedName(ext string) (string, error) {
	b := make([]byte, storedNameBytes)
	if _, err := s.randRead(b); err != nil {
		return "", fmt.Errorf("generating file name: %w", err)
	}
	return hex.EncodeToString(b) + ext, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary.
	for n > 0 && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}

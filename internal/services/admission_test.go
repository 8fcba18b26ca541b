package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HammerMeetNail/memeboard/internal/models"
	"github.com/HammerMeetNail/memeboard/internal/storage"
)

func TestCheckUpload(t *testing.T) {
	tests := []struct {
		filename string
		ext      string
		err      error
	}{
		{"cat.jpg", ".jpg", nil},
		{"cat.JPEG", ".jpeg", nil},
		{"Cat.PnG", ".png", nil},
		{"loop.gif", ".gif", nil},
		{"modern.webp", ".webp", nil},
		{"archive.tar.png", ".png", nil},
		{"", "", ErrNoFile},
		{"   ", "", ErrNoFile},
		{"virus.exe", "", ErrBadType},
		{"noext", "", ErrBadType},
		{"image.png.exe", "", ErrBadType},
		{"vector.svg", "", ErrBadType},
	}
	for _, tt := range tests {
		ext, err := CheckUpload(tt.filename, models.AllowedExtensions)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.filename)
			continue
		}
		require.NoError(t, err, tt.filename)
		assert.Equal(t, tt.ext, ext, tt.filename)
	}
}

func TestAdmissionService_ConfinesTraversalNames(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewFilesystemStore(filepath.Join(root, "uploads"), "/assets")
	require.NoError(t, err)
	svc := NewAdmissionService(store, nil)

	file, err := svc.Admit(context.Background(), "../../etc/passwd.PNG", strings.NewReader("png"), models.AreaMemes)
	require.NoError(t, err)

	assert.Equal(t, models.AreaMemes, file.Area)
	assert.True(t, strings.HasPrefix(file.Path, "memes/"))
	assert.NotContains(t, file.Path, "..")
	assert.Len(t, file.StoredName, 32+len(".png"))
	assert.True(t, strings.HasSuffix(file.StoredName, ".png"))
	assert.NotEqual(t, "passwd.PNG", file.StoredName)
	assert.Equal(t, "../../etc/passwd.PNG", file.OriginalName)

	data, err := os.ReadFile(filepath.Join(root, "uploads", "memes", file.StoredName))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	_, err = os.Stat(filepath.Join(root, "etc"))
	assert.True(t, os.IsNotExist(err))
}

func TestAdmissionService_StoredNamesAreUnique(t *testing.T) {
	store := newMemStore()
	svc := NewAdmissionService(store, nil)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		file, err := svc.Admit(context.Background(), "same.jpg", strings.NewReader("x"), models.AreaTemplates)
		require.NoError(t, err)
		assert.False(t, seen[file.Path], file.Path)
		seen[file.Path] = true
	}
}

func TestAdmissionService_RejectsWithoutWriting(t *testing.T) {
	store := newMemStore()
	svc := NewAdmissionService(store, nil)
	ctx := context.Background()

	_, err := svc.Admit(ctx, "virus.exe", strings.NewReader("MZ"), models.AreaMemes)
	require.ErrorIs(t, err, ErrBadType)

	_, err = svc.Admit(ctx, "", strings.NewReader("x"), models.AreaMemes)
	require.ErrorIs(t, err, ErrNoFile)

	_, err = svc.Admit(ctx, "cat.png", nil, models.AreaMemes)
	require.ErrorIs(t, err, ErrNoFile)

	_, err = svc.Admit(ctx, "cat.png", strings.NewReader("x"), models.Area("secrets"))
	require.ErrorIs(t, err, ErrInvalidArea)

	assert.Zero(t, store.puts)
}

func TestAdmissionService_CustomWhitelist(t *testing.T) {
	svc := NewAdmissionService(newMemStore(), map[string]struct{}{".png": {}})
	_, err := svc.Admit(context.Background(), "cat.jpg", strings.NewReader("x"), models.AreaMemes)
	require.ErrorIs(t, err, ErrBadType)
}

func TestAdmissionService_RetriesNameCollision(t *testing.T) {
	store := newMemStore()
	svc := NewAdmissionService(store, nil)

	calls := 0
	svc.randRead = func(b []byte) (int, error) {
		calls++
		for i := range b {
			b[i] = byte(calls)
		}
		return len(b), nil
	}
	first := "memes/" + strings.Repeat("01", 16) + ".gif"
	store.existing[first] = true

	file, err := svc.Admit(context.Background(), "loop.gif", bytes.NewReader([]byte("gif")), models.AreaMemes)
	require.NoError(t, err)
	assert.Equal(t, "memes/"+strings.Repeat("02", 16)+".gif", file.Path)
	assert.Equal(t, 2, store.puts)
}

func TestAdmissionService_GivesUpAfterRepeatedCollisions(t *testing.T) {
	store := newMemStore()
	svc := NewAdmissionService(store, nil)
	svc.randRead = func(b []byte) (int, error) {
		return len(b), nil
	}
	store.existing["memes/"+strings.Repeat("00", 16)+".gif"] = true

	_, err := svc.Admit(context.Background(), "loop.gif", strings.NewReader("gif"), models.AreaMemes)
	require.ErrorIs(t, err, storage.ErrExists)
	assert.Equal(t, maxNameAttempts, store.puts)
}

func TestAdmissionService_RandomFailure(t *testing.T) {
	svc := NewAdmissionService(newMemStore(), nil)
	svc.randRead = func(b []byte) (int, error) {
		return 0, errors.New("no entropy")
	}
	_, err := svc.Admit(context.Background(), "cat.png", strings.NewReader("x"), models.AreaMemes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entropy")
}

func TestAdmissionService_StoreFailure(t *testing.T) {
	store := newMemStore()
	store.putErr = errors.New("disk full")
	svc := NewAdmissionService(store, nil)

	_, err := svc.Admit(context.Background(), "cat.png", strings.NewReader("x"), models.AreaMemes)
	require.Error(t, err)
	assert.Equal(t, 1, store.puts)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	// "é" is two bytes; cutting inside it backs off to the rune boundary.
	assert.Equal(t, "a", truncate("aé", 2))
}

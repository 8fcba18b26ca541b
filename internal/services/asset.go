package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/HammerMeetNail/memeboard/internal/logging"
	"github.com/HammerMeetNail/memeboard/internal/models"
	"github.com/HammerMeetNail/memeboard/internal/storage"
)

var (
	ErrAssetNotFound       = errors.New("asset not found")
	ErrWrongMasterPassword = errors.New("wrong master password")
)

const maxTitleLen = 200

// AssetService is the catalog of uploaded templates and memes.
type AssetService struct {
	db             DB
	store          storage.Store
	admission      *AdmissionService
	reactions      *ReactionService
	masterPassword string
}

func NewAssetService(db DB, store storage.Store, admission *AdmissionService, reactions *ReactionService, masterPassword string) *AssetService {
	return &AssetService{
		db:             db,
		store:          store,
		admission:      admission,
		reactions:      reactions,
		masterPassword: masterPassword,
	}
}

type UploadParams struct {
	Area       models.Area
	Title      string
	Filename   string
	Body       io.Reader
	UploadedBy string
}

// AdmitUpload runs admission and records the resulting asset.
func (s *AssetService) AdmitUpload(ctx context.Context, p UploadParams) (*models.Asset, error) {
	if !p.Area.Valid() {
		return nil, ErrInvalidArea
	}
	file, err := s.admission.Admit(ctx, p.Filename, p.Body, p.Area)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, models.CreateAssetParams{
		Area:         p.Area,
		Title:        p.Title,
		Path:         file.Path,
		OriginalName: file.OriginalName,
		UploadedBy:   p.UploadedBy,
	})
}

// Create inserts the catalog row for an admitted file. If the insert fails
// the stored blob is removed so no orphan is left behind.
func (s *AssetService) Create(ctx context.Context, params models.CreateAssetParams) (*models.Asset, error) {
	if !params.Area.Valid() {
		return nil, ErrInvalidArea
	}

	title := strings.TrimSpace(params.Title)
	if title == "" {
		base := filepath.Base(params.OriginalName)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if title == "" || title == "." {
		title = "Untitled"
	}
	title = truncate(title, maxTitleLen)

	var originalName *string
	if params.OriginalName != "" {
		originalName = &params.OriginalName
	}

	asset := &models.Asset{
		Area:         params.Area,
		Title:        title,
		Path:         params.Path,
		OriginalName: originalName,
		UploadedBy:   params.UploadedBy,
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO `+params.Area.Table()+` (title, path, original_name, uploaded_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		title, params.Path, originalName, params.UploadedBy,
	).Scan(&asset.ID, &asset.CreatedAt)
	if err != nil {
		if delErr := s.store.Delete(ctx, params.Path); delErr != nil {
			logging.Warn("Failed to clean up stored file after insert error", map[string]interface{}{
				"path":  params.Path,
				"error": delErr.Error(),
			})
		}
		return nil, fmt.Errorf("creating %s: %w", params.Area.Singular(), err)
	}
	return asset, nil
}

func (s *AssetService) Get(ctx context.Context, area models.Area, id int64) (*models.Asset, error) {
	if !area.Valid() {
		return nil, ErrInvalidArea
	}
	asset := &models.Asset{Area: area}
	err := s.db.QueryRow(ctx,
		`SELECT id, title, path, original_name, uploaded_by, created_at
		 FROM `+area.Table()+`
		 WHERE id = $1`,
		id,
	).Scan(&asset.ID, &asset.Title, &asset.Path, &asset.OriginalName, &asset.UploadedBy, &asset.CreatedAt)
	if isNoRows(err) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", area.Singular(), err)
	}
	return asset, nil
}

// List returns the newest assets first.
func (s *AssetService) List(ctx context.Context, area models.Area, limit, offset int) ([]models.Asset, error) {
	if !area.Valid() {
		return nil, ErrInvalidArea
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, title, path, original_name, uploaded_by, created_at
		 FROM `+area.Table()+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", area, err)
	}
	defer rows.Close()

	assets := []models.Asset{}
	for rows.Next() {
		a := models.Asset{Area: area}
		if err := rows.Scan(&a.ID, &a.Title, &a.Path, &a.OriginalName, &a.UploadedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", area.Singular(), err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", area, err)
	}
	return assets, nil
}

func (s *AssetService) Count(ctx context.Context, area models.Area) (int, error) {
	if !area.Valid() {
		return 0, ErrInvalidArea
	}
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM `+area.Table()).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", area, err)
	}
	return n, nil
}

// ListWithReactions decorates a page of assets with URLs and, for memes, the
// reaction counts and the viewer's own choice. Both lookups run concurrently.
func (s *AssetService) ListWithReactions(ctx context.Context, area models.Area, viewer string, limit, offset int) ([]models.AssetWithReactions, error) {
	assets, err := s.List(ctx, area, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.Decorate(ctx, assets, viewer)
}

func (s *AssetService) Decorate(ctx context.Context, assets []models.Asset, viewer string) ([]models.AssetWithReactions, error) {
	out := make([]models.AssetWithReactions, len(assets))
	var memeIDs []int64
	for i, a := range assets {
		out[i] = models.AssetWithReactions{Asset: a, URL: s.store.URL(a.Path)}
		if a.Area == models.AreaMemes {
			memeIDs = append(memeIDs, a.ID)
		}
	}
	if len(memeIDs) == 0 || s.reactions == nil {
		return out, nil
	}

	var counts map[int64]models.ReactionCounts
	var mine map[int64]models.ReactionKind
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.reactions.CountsFor(gctx, memeIDs)
		return err
	})
	g.Go(func() error {
		var err error
		mine, err = s.reactions.ReactionsBy(gctx, memeIDs, viewer)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Area != models.AreaMemes {
			continue
		}
		out[i].Counts = counts[out[i].ID]
		out[i].MyChoice = mine[out[i].ID]
	}
	return out, nil
}

// URL is where the browser loads asset's bytes from.
func (s *AssetService) URL(asset *models.Asset) string {
	return s.store.URL(asset.Path)
}

// Delete removes an asset for an operator holding the master password. The
// row goes first (cascading reactions), then the stored file; a file that is
// already gone counts as deleted.
func (s *AssetService) Delete(ctx context.Context, area models.Area, id int64, masterPassword string) error {
	if !secureCompare(s.masterPassword, masterPassword) {
		return ErrWrongMasterPassword
	}
	if !area.Valid() {
		return ErrInvalidArea
	}

	// The row goes only once the file is gone, so a storage failure leaves
	// the catalog and its reactions untouched for a retry.
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s delete: %w", area.Singular(), err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	var path string
	err = tx.QueryRow(ctx,
		`DELETE FROM `+area.Table()+` WHERE id = $1 RETURNING path`,
		id,
	).Scan(&path)
	if isNoRows(err) {
		return ErrAssetNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting %s: %w", area.Singular(), err)
	}

	if err := s.store.Delete(ctx, path); err != nil {
		return fmt.Errorf("deleting stored file: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		// The file is already gone but the row survives. A retry finishes the
		// job because deleting a missing file succeeds.
		logging.Warn("Stored file deleted but row delete did not commit", map[string]interface{}{
			"area":  string(area),
			"id":    id,
			"path":  path,
			"error": err.Error(),
		})
		return fmt.Errorf("commit %s delete: %w", area.Singular(), err)
	}
	committed = true

	if area == models.AreaMemes && s.reactions != nil {
		s.reactions.InvalidateCounts(ctx, id)
	}
	return nil
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/HammerMeetNail/memeboard/internal/middleware"
	"github.com/HammerMeetNail/memeboard/internal/models"
	"github.com/HammerMeetNail/memeboard/internal/services"
)

func newTestPages(t *testing.T) *PageHandler {
	t.Helper()
	pages, err := NewPageHandler("../../web/templates")
	if err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}
	return pages
}

func withIdentity(r *http.Request, name string) *http.Request {
	return r.WithContext(middleware.WithIdentity(r.Context(), &models.Identity{Name: name}))
}

type fakeAssetService struct {
	AdmitUploadFunc       func(ctx context.Context, p services.UploadParams) (*models.Asset, error)
	GetFunc               func(ctx context.Context, area models.Area, id int64) (*models.Asset, error)
	ListWithReactionsFunc func(ctx context.Context, area models.Area, viewer string, limit, offset int) ([]models.AssetWithReactions, error)
	CountFunc             func(ctx context.Context, area models.Area) (int, error)
	DeleteFunc            func(ctx context.Context, area models.Area, id int64, masterPassword string) error
}

func (f *fakeAssetService) AdmitUpload(ctx context.Context, p services.UploadParams) (*models.Asset, error) {
	if f.AdmitUploadFunc != nil {
		return f.AdmitUploadFunc(ctx, p)
	}
	return nil, errors.New("AdmitUploadFunc not set")
}

func (f *fakeAssetService) Get(ctx context.Context, area models.Area, id int64) (*models.Asset, error) {
	if f.GetFunc != nil {
		return f.GetFunc(ctx, area, id)
	}
	return nil, services.ErrAssetNotFound
}

func (f *fakeAssetService) ListWithReactions(ctx context.Context, area models.Area, viewer string, limit, offset int) ([]models.AssetWithReactions, error) {
	if f.ListWithReactionsFunc != nil {
		return f.ListWithReactionsFunc(ctx, area, viewer, limit, offset)
	}
	return nil, nil
}

func (f *fakeAssetService) Count(ctx context.Context, area models.Area) (int, error) {
	if f.CountFunc != nil {
		return f.CountFunc(ctx, area)
	}
	return 0, nil
}

func (f *fakeAssetService) Decorate(ctx context.Context, assets []models.Asset, viewer string) ([]models.AssetWithReactions, error) {
	out := make([]models.AssetWithReactions, len(assets))
	for i, a := range assets {
		out[i] = models.AssetWithReactions{Asset: a, URL: "/assets/" + a.Path}
		if a.Area == models.AreaMemes && viewer != "" {
			out[i].Counts = models.ReactionCounts{Likes: 3, Dislikes: 1}
			out[i].MyChoice = models.ReactionLike
		}
	}
	return out, nil
}

func (f *fakeAssetService) Delete(ctx context.Context, area models.Area, id int64, masterPassword string) error {
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, area, id, masterPassword)
	}
	return nil
}

type fakeReactionService struct {
	UpsertFunc func(ctx context.Context, memeID int64, identity string, kind models.ReactionKind) error
}

func (f *fakeReactionService) Upsert(ctx context.Context, memeID int64, identity string, kind models.ReactionKind) error {
	if f.UpsertFunc != nil {
		return f.UpsertFunc(ctx, memeID, identity, kind)
	}
	return nil
}

type fakeStatsService struct {
	BoardFunc func(ctx context.Context, viewer string, top int) (*models.BoardStats, error)
}

func (f *fakeStatsService) Board(ctx context.Context, viewer string, top int) (*models.BoardStats, error) {
	if f.BoardFunc != nil {
		return f.BoardFunc(ctx, viewer, top)
	}
	return &models.BoardStats{}, nil
}

type fakeChecker struct {
	err error
}

func (f fakeChecker) Health(ctx context.Context) error {
	return f.err
}

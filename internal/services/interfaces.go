package services

import (
	"context"

	"github.com/HammerMeetNail/memeboard/internal/models"
)

// The handler layer depends on these rather than the concrete services.

type AuthServiceInterface interface {
	Login(name, password string) (*Ticket, error)
	Resolve(token *string, nameClaim, tagClaim *string) *models.Identity
}

type AssetServiceInterface interface {
	AdmitUpload(ctx context.Context, p UploadParams) (*models.Asset, error)
	Get(ctx context.Context, area models.Area, id int64) (*models.Asset, error)
	ListWithReactions(ctx context.Context, area models.Area, viewer string, limit, offset int) ([]models.AssetWithReactions, error)
	Count(ctx context.Context, area models.Area) (int, error)
	Decorate(ctx context.Context, assets []models.Asset, viewer string) ([]models.AssetWithReactions, error)
	Delete(ctx context.Context, area models.Area, id int64, masterPassword string) error
}

type ReactionServiceInterface interface {
	Upsert(ctx context.Context, memeID int64, identity string, kind models.ReactionKind) error
}

type StatsServiceInterface interface {
	Board(ctx context.Context, viewer string, top int) (*models.BoardStats, error)
}

var (
	_ AuthServiceInterface     = (*AuthService)(nil)
	_ AssetServiceInterface    = (*AssetService)(nil)
	_ ReactionServiceInterface = (*ReactionService)(nil)
	_ StatsServiceInterface    = (*StatsService)(nil)
)

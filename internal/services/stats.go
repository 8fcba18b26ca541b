package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/HammerMeetNail/memeboard/internal/models"
)

const defaultTopMemes = 5

type StatsService struct {
	db     DB
	assets *AssetService
}

func NewStatsService(db DB, assets *AssetService) *StatsService {
	return &StatsService{db: db, assets: assets}
}

// Board gathers the index page summary. The independent counts run in
// parallel.
func (s *StatsService) Board(ctx context.Context, viewer string, top int) (*models.BoardStats, error) {
	if top <= 0 {
		top = defaultTopMemes
	}

	stats := &models.BoardStats{}
	var topMemes []models.Asset

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.assets.Count(gctx, models.AreaTemplates)
		stats.Templates = n
		return err
	})
	g.Go(func() error {
		n, err := s.assets.Count(gctx, models.AreaMemes)
		stats.Memes = n
		return err
	})
	g.Go(func() error {
		likes, dislikes, err := s.reactionTotals(gctx)
		stats.Likes, stats.Dislikes = likes, dislikes
		stats.Reactions = likes + dislikes
		return err
	})
	g.Go(func() error {
		err := s.db.QueryRow(gctx,
			`SELECT COUNT(*) FROM (
				SELECT uploaded_by FROM templates
				UNION
				SELECT uploaded_by FROM memes
			) AS uploaders`,
		).Scan(&stats.Uploaders)
		if err != nil {
			return fmt.Errorf("counting uploaders: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		topMemes, err = s.topMemes(gctx, top)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	decorated, err := s.assets.Decorate(ctx, topMemes, viewer)
	if err != nil {
		return nil, err
	}
	stats.TopMemes = decorated
	return stats, nil
}

func (s *StatsService) reactionTotals(ctx context.Context) (int, int, error) {
	rows, err := s.db.Query(ctx, `SELECT kind, COUNT(*) FROM reactions GROUP BY kind`)
	if err != nil {
		return 0, 0, fmt.Errorf("counting reactions: %w", err)
	}
	defer rows.Close()

	var likes, dislikes int
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return 0, 0, fmt.Errorf("scanning reaction total: %w", err)
		}
		switch models.ReactionKind(kind) {
		case models.ReactionLike:
			likes = n
		case models.ReactionDislike:
			dislikes = n
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("iterating reaction totals: %w", err)
	}
	return likes, dislikes, nil
}

// topMemes orders by like count, ties broken by id.
func (s *StatsService) topMemes(ctx context.Context, limit int) ([]models.Asset, error) {
	rows, err := s.db.Query(ctx,
		`SELECT m.id, m.title, m.path, m.original_name, m.uploaded_by, m.created_at
		 FROM memes m
		 LEFT JOIN reactions r ON r.meme_id = m.id AND r.kind = 'like'
		 GROUP BY m.id, m.title, m.path, m.original_name, m.uploaded_by, m.created_at
		 ORDER BY COUNT(r.id) DESC, m.id ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("getting top memes: %w", err)
	}
	defer rows.Close()

	memes := []models.Asset{}
	for rows.Next() {
		a := models.Asset{Area: models.AreaMemes}
		if err := rows.Scan(&a.ID, &a.Title, &a.Path, &a.OriginalName, &a.UploadedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning top meme: %w", err)
		}
		memes = append(memes, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating top memes: %w", err)
	}
	return memes, nil
}

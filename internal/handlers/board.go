package handlers

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/HammerMeetNail/memeboard/internal/models"
	"github.com/HammerMeetNail/memeboard/internal/services"
)

const (
	boardTopMemes    = 5
	boardNewestMemes = 12
)

type BoardHandler struct {
	stats  services.StatsServiceInterface
	assets services.AssetServiceInterface
	pages  *PageHandler
}

func NewBoardHandler(stats services.StatsServiceInterface, assets services.AssetServiceInterface, pages *PageHandler) *BoardHandler {
	return &BoardHandler{stats: stats, assets: assets, pages: pages}
}

// Index is the landing page: board totals, the top memes and the newest ones.
func (h *BoardHandler) Index(w http.ResponseWriter, r *http.Request) {
	viewer := viewerName(r)

	var stats *models.BoardStats
	var newest []models.AssetWithReactions
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		stats, err = h.stats.Board(ctx, viewer, boardTopMemes)
		return err
	})
	g.Go(func() error {
		var err error
		newest, err = h.assets.ListWithReactions(ctx, models.AreaMemes, viewer, boardNewestMemes, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		logRequestError(r, "Failed to load board", err)
		h.pages.InternalError(w, r)
		return
	}

	h.pages.Render(w, r, http.StatusOK, "index.html", PageData{
		Title:  "Meme board",
		Area:   models.AreaMemes,
		Stats:  stats,
		Assets: newest,
	})
}

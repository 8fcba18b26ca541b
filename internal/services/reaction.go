package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/HammerMeetNail/memeboard/internal/models"
)

var (
	ErrInvalidReaction = errors.New("invalid reaction")
	ErrReactionRace    = errors.New("reaction kept conflicting")
)

// errRowVanished means the row seen by the lookup was gone by the update,
// usually because its meme was deleted in between.
var errRowVanished = errors.New("reaction row vanished")

const maxUpsertAttempts = 3

// ReactionService is the ledger: at most one row per (meme, identity). The
// UNIQUE(meme_id, identity) constraint is the only arbiter of concurrent
// first reactions; a losing insert is retried and lands as an update.
type ReactionService struct {
	db    DB
	cache *CountCache
}

func NewReactionService(db DB) *ReactionService {
	return &ReactionService{db: db}
}

func (s *ReactionService) SetCountCache(cache *CountCache) {
	s.cache = cache
}

// Upsert records identity's reaction to a meme. Re-submitting the same kind
// is a no-op that leaves created_at untouched; a different kind flips the row.
func (s *ReactionService) Upsert(ctx context.Context, memeID int64, identity string, kind models.ReactionKind) error {
	if !kind.Valid() {
		return ErrInvalidReaction
	}
	if strings.TrimSpace(identity) == "" {
		return ErrEmptyName
	}

	var lastErr error
	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		changed, err := s.upsertOnce(ctx, memeID, identity, kind)
		if err == nil {
			if changed {
				s.InvalidateCounts(ctx, memeID)
			}
			return nil
		}
		if isForeignKeyViolation(err) {
			return ErrAssetNotFound
		}
		if !isUniqueViolation(err) && !errors.Is(err, errRowVanished) {
			return fmt.Errorf("upserting reaction: %w", err)
		}
		lastErr = err
	}
	return fmt.Errorf("upserting reaction: %w: %v", ErrReactionRace, lastErr)
}

func (s *ReactionService) upsertOnce(ctx context.Context, memeID int64, identity string, kind models.ReactionKind) (bool, error) {
	var existing string
	err := s.db.QueryRow(ctx,
		`SELECT kind FROM reactions WHERE meme_id = $1 AND identity = $2`,
		memeID, identity,
	).Scan(&existing)
	if isNoRows(err) {
		if _, err := s.db.Exec(ctx,
			`INSERT INTO reactions (meme_id, identity, kind) VALUES ($1, $2, $3)`,
			memeID, identity, string(kind),
		); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if models.ReactionKind(existing) == kind {
		return false, nil
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE reactions SET kind = $1 WHERE meme_id = $2 AND identity = $3`,
		string(kind), memeID, identity,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, errRowVanished
	}
	return true, nil
}

// CountsFor returns like/dislike counts for every requested id. Ids without
// reactions map to zero counts rather than being absent.
func (s *ReactionService) CountsFor(ctx context.Context, ids []int64) (map[int64]models.ReactionCounts, error) {
	ids = uniqueIDs(ids)
	result := make(map[int64]models.ReactionCounts, len(ids))
	for _, id := range ids {
		result[id] = models.ReactionCounts{}
	}
	if len(ids) == 0 {
		return result, nil
	}

	missing := ids
	var gens Generations
	if s.cache != nil {
		var hits map[int64]models.ReactionCounts
		hits, missing, gens = s.cache.GetMany(ctx, ids)
		for id, c := range hits {
			result[id] = c
		}
		if len(missing) == 0 {
			return result, nil
		}
	}

	placeholders, args := inClause(missing, 1)
	rows, err := s.db.Query(ctx,
		`SELECT meme_id, kind, COUNT(*)
		 FROM reactions
		 WHERE meme_id IN (`+placeholders+`)
		 GROUP BY meme_id, kind`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("counting reactions: %w", err)
	}
	defer rows.Close()

	fresh := make(map[int64]models.ReactionCounts, len(missing))
	for _, id := range missing {
		fresh[id] = models.ReactionCounts{}
	}
	for rows.Next() {
		var id int64
		var kind string
		var n int
		if err := rows.Scan(&id, &kind, &n); err != nil {
			return nil, fmt.Errorf("scanning reaction count: %w", err)
		}
		c := fresh[id]
		switch models.ReactionKind(kind) {
		case models.ReactionLike:
			c.Likes = n
		case models.ReactionDislike:
			c.Dislikes = n
		}
		fresh[id] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reaction counts: %w", err)
	}

	for id, c := range fresh {
		result[id] = c
	}
	if s.cache != nil {
		s.cache.SetMany(ctx, fresh, gens)
	}
	return result, nil
}

// ReactionsBy returns identity's reaction for each id it has reacted to.
// Ids without a reaction are absent.
func (s *ReactionService) ReactionsBy(ctx context.Context, ids []int64, identity string) (map[int64]models.ReactionKind, error) {
	ids = uniqueIDs(ids)
	result := make(map[int64]models.ReactionKind)
	if len(ids) == 0 || identity == "" {
		return result, nil
	}

	placeholders, args := inClause(ids, 2)
	rows, err := s.db.Query(ctx,
		`SELECT meme_id, kind
		 FROM reactions
		 WHERE identity = $1 AND meme_id IN (`+placeholders+`)`,
		append([]any{identity}, args...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("getting reactions by identity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var kind string
		if err := rows.Scan(&id, &kind); err != nil {
			return nil, fmt.Errorf("scanning reaction: %w", err)
		}
		result[id] = models.ReactionKind(kind)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reactions: %w", err)
	}
	return result, nil
}

func (s *ReactionService) InvalidateCounts(ctx context.Context, ids ...int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, ids...)
	}
}

// inClause renders "$start, $start+1, ..." for ids.
func inClause(ids []int64, start int) (string, []any) {
	var b strings.Builder
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(start + i))
		args[i] = id
	}
	return b.String(), args
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

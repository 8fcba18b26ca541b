package models

import "time"

type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

var AllowedReactions = []ReactionKind{ReactionLike, ReactionDislike}

func ParseReactionKind(s string) (ReactionKind, bool) {
	k := ReactionKind(s)
	return k, k.Valid()
}

func (k ReactionKind) Valid() bool {
	return k == ReactionLike || k == ReactionDislike
}

type Reaction struct {
	ID        int64        `json:"id"`
	AssetID   int64        `json:"asset_id"`
	Identity  string       `json:"identity"`
	Kind      ReactionKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}

// ReactionCounts is the per-meme tally. The zero value means no reactions.
type ReactionCounts struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

func (c ReactionCounts) Total() int {
	return c.Likes + c.Dislikes
}

// Score is likes minus dislikes.
func (c ReactionCounts) Score() int {
	return c.Likes - c.Dislikes
}

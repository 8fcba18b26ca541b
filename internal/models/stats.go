package models

// BoardStats summarizes the whole board for the index page.
type BoardStats struct {
	Templates int                  `json:"templates"`
	Memes     int                  `json:"memes"`
	Reactions int                  `json:"reactions"`
	Likes     int                  `json:"likes"`
	Dislikes  int                  `json:"dislikes"`
	Uploaders int                  `json:"uploaders"`
	TopMemes  []AssetWithReactions `json:"top_memes"`
}

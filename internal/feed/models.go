package feed

import "time"

// Meme is a post in the community feed. MediaRef is an opaque reference
// into the external media storage service; this service never interprets it.
type Meme struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	Title        string    `json:"title"`
	MediaRef     string    `json:"media_ref"`
	Category     string    `json:"category,omitempty"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Comment is a comment on a meme. ParentID is set for nested replies.
type Comment struct {
	ID        string    `json:"id"`
	MemeID    string    `json:"meme_id"`
	AuthorID  string    `json:"author_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

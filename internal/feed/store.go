package feed

import "context"

// Store defines the persistence interface for feed content and viewer
// mutes. Implementations must be safe for concurrent use.
type Store interface {
	// Memes
	CreateMeme(ctx context.Context, meme Meme) error
	// GetMeme returns nil (no error) when the meme does not exist.
	GetMeme(ctx context.Context, id string) (*Meme, error)
	DeleteMeme(ctx context.Context, id string) error
	// AdjustCommentCount atomically changes a meme's comment count.
	AdjustCommentCount(ctx context.Context, memeID string, delta int) error

	// Comments
	CreateComment(ctx context.Context, comment Comment) error
	GetComment(ctx context.Context, id string) (*Comment, error)
	// ListCommentsByMeme returns a meme's comments oldest-first.
	ListCommentsByMeme(ctx context.Context, memeID string) ([]Comment, error)

	// Viewer mutes (per-viewer content filter, unrelated to enforcement mutes)
	PutViewerMute(ctx context.Context, muterID, mutedID string) error
	DeleteViewerMute(ctx context.Context, muterID, mutedID string) error
	ListViewerMutes(ctx context.Context, muterID string) ([]string, error)
}

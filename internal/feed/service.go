package feed

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iceinvein/mlem/internal/moderation"
)

const maxCommentLength = 2000

// Enforcement is the moderation surface feed mutations consult. Satisfied
// by *moderation.Service.
type Enforcement interface {
	EnsureCanPost(ctx context.Context, userID string) error
}

// Service provides feed content creation gated by the moderation core, plus
// per-viewer mute filtering.
type Service struct {
	store       Store
	enforcement Enforcement
}

// NewService creates a feed service.
func NewService(store Store, enforcement Enforcement) *Service {
	return &Service{store: store, enforcement: enforcement}
}

// CreateMeme posts a new meme. The enforcement check runs inline and
// reconciles an expired suspension before deciding.
func (s *Service) CreateMeme(ctx context.Context, authorID, title, mediaRef, category string) (string, error) {
	if authorID == "" {
		return "", moderation.NewError(moderation.KindUnauthenticated, "Authentication required")
	}
	if err := s.enforcement.EnsureCanPost(ctx, authorID); err != nil {
		return "", err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return "", moderation.NewError(moderation.KindInvalidArgument, "A title is required")
	}
	if mediaRef == "" {
		return "", moderation.NewError(moderation.KindInvalidArgument, "A media reference is required")
	}

	meme := Meme{
		ID:        moderation.NewID(),
		AuthorID:  authorID,
		Title:     title,
		MediaRef:  mediaRef,
		Category:  category,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateMeme(ctx, meme); err != nil {
		return "", err
	}

	log.Info().
		Str("meme_id", meme.ID).
		Str("author", authorID).
		Str("category", category).
		Msg("feed: meme created")

	return meme.ID, nil
}

// GetMeme returns a meme by ID.
func (s *Service) GetMeme(ctx context.Context, id string) (*Meme, error) {
	meme, err := s.store.GetMeme(ctx, id)
	if err != nil {
		return nil, err
	}
	if meme == nil {
		return nil, moderation.NewError(moderation.KindNotFound, "Meme not found")
	}
	return meme, nil
}

// CreateComment adds a comment (or nested reply when parentID is set) to a
// meme. Runs the same inline enforcement check as CreateMeme and bumps the
// meme's comment count.
func (s *Service) CreateComment(ctx context.Context, authorID, memeID, parentID, body string) (string, error) {
	if authorID == "" {
		return "", moderation.NewError(moderation.KindUnauthenticated, "Authentication required")
	}
	if err := s.enforcement.EnsureCanPost(ctx, authorID); err != nil {
		return "", err
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return "", moderation.NewError(moderation.KindInvalidArgument, "A comment body is required")
	}
	if len(body) > maxCommentLength {
		body = body[:maxCommentLength]
	}

	meme, err := s.store.GetMeme(ctx, memeID)
	if err != nil {
		return "", err
	}
	if meme == nil {
		return "", moderation.NewError(moderation.KindNotFound, "Meme not found")
	}

	if parentID != "" {
		parent, err := s.store.GetComment(ctx, parentID)
		if err != nil {
			return "", err
		}
		if parent == nil || parent.MemeID != memeID {
			return "", moderation.NewError(moderation.KindNotFound, "Parent comment not found")
		}
	}

	comment := Comment{
		ID:        moderation.NewID(),
		MemeID:    memeID,
		AuthorID:  authorID,
		ParentID:  parentID,
		Body:      body,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return "", err
	}

	if err := s.store.AdjustCommentCount(ctx, memeID, 1); err != nil {
		log.Error().Err(err).Str("meme_id", memeID).Msg("feed: failed to bump comment count")
	}

	return comment.ID, nil
}

// Comments returns a meme's comments oldest-first, with authors the viewer
// has muted filtered out. An empty viewerID skips filtering.
func (s *Service) Comments(ctx context.Context, viewerID, memeID string) ([]Comment, error) {
	comments, err := s.store.ListCommentsByMeme(ctx, memeID)
	if err != nil {
		return nil, err
	}
	if viewerID == "" || len(comments) == 0 {
		return comments, nil
	}

	muted, err := s.store.ListViewerMutes(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if len(muted) == 0 {
		return comments, nil
	}

	hidden := make(map[string]struct{}, len(muted))
	for _, id := range muted {
		hidden[id] = struct{}{}
	}

	visible := comments[:0]
	for _, c := range comments {
		if _, ok := hidden[c.AuthorID]; !ok {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

// Mute hides another user's content from the caller's view. This is a
// personal filter and has no effect on the target's ability to post.
func (s *Service) Mute(ctx context.Context, callerID, targetID string) error {
	if callerID == "" {
		return moderation.NewError(moderation.KindUnauthenticated, "Authentication required")
	}
	if targetID == "" {
		return moderation.NewError(moderation.KindInvalidArgument, "A target is required")
	}
	if callerID == targetID {
		return moderation.NewError(moderation.KindSelfMute, "You cannot mute yourself")
	}
	return s.store.PutViewerMute(ctx, callerID, targetID)
}

// Unmute removes a viewer mute. Unmuting a user who was never muted is a
// no-op.
func (s *Service) Unmute(ctx context.Context, callerID, targetID string) error {
	if callerID == "" {
		return moderation.NewError(moderation.KindUnauthenticated, "Authentication required")
	}
	return s.store.DeleteViewerMute(ctx, callerID, targetID)
}

// MutedUsers returns the IDs the caller has muted.
func (s *Service) MutedUsers(ctx context.Context, callerID string) ([]string, error) {
	if callerID == "" {
		return nil, moderation.NewError(moderation.KindUnauthenticated, "Authentication required")
	}
	return s.store.ListViewerMutes(ctx, callerID)
}

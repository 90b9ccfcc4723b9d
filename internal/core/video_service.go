package core

import (
	"context"
	"fmt"

	"github.com/kiraleos/assignment-helper/internal/store"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	// educationCategoryID is YouTube's "Education" video category.
	educationCategoryID = "27"
	youtubeWatchURL     = "https://www.youtube.com/watch?v="
)

// VideoService searches YouTube for educational videos.
type VideoService struct {
	yt     *youtube.Service
	logger *zap.Logger
}

func NewVideoService(ctx context.Context, logger *zap.Logger, opts ...option.ClientOption) (*VideoService, error) {
	yt, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube client: %w", err)
	}
	return &VideoService{yt: yt, logger: logger}, nil
}

// Search never fails the caller: API errors are logged and yield no videos.
func (s *VideoService) Search(ctx context.Context, query string, maxResults int) ([]store.VideoLink, error) {
	if query == "" || maxResults <= 0 {
		return []store.VideoLink{}, nil
	}

	resp, err := s.yt.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(int64(maxResults)).
		VideoCategoryId(educationCategoryID).
		RelevanceLanguage("en").
		Context(ctx).
		Do()
	if err != nil {
		s.logger.Warn("youtube search failed", zap.String("query", query), zap.Error(err))
		return []store.VideoLink{}, nil
	}

	videos := make([]store.VideoLink, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		link := store.VideoLink{
			Title: item.Snippet.Title,
			URL:   youtubeWatchURL + item.Id.VideoId,
		}
		if th := item.Snippet.Thumbnails; th != nil {
			switch {
			case th.Medium != nil:
				link.Thumbnail = th.Medium.Url
			case th.Default != nil:
				link.Thumbnail = th.Default.Url
			}
		}
		videos = append(videos, link)
	}
	return videos, nil
}

package media

import (
	"context"
	"fmt"

	"apodposter/internal/domain"
)

// Uploader pushes a local file to the social platform and returns its media handle.
type Uploader interface {
	UploadImage(ctx context.Context, path string) (string, error)
	UploadVideo(ctx context.Context, path string) (string, error)
}

// Strategy materializes the media behind a feed URL and uploads it.
// The caller owns the file returned by Fetch and must remove it.
type Strategy interface {
	Fetch(ctx context.Context, srcURL string) (string, error)
	Upload(ctx context.Context, up Uploader, path string) (string, error)
}

// Registry maps a declared media kind to the strategy handling it.
type Registry map[domain.MediaKind]Strategy

func NewRegistry(image Strategy, video Strategy) Registry {
	return Registry{
		domain.MediaImage: image,
		domain.MediaVideo: video,
	}
}

func (r Registry) For(kind domain.MediaKind) (Strategy, error) {
	s, ok := r[kind]
	if !ok || s == nil {
		return nil, fmt.Errorf("media kind %q: %w", kind, domain.ErrUnsupportedMedia)
	}

	return s, nil
}

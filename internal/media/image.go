package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

type ImageStrategy struct {
	httpClient *http.Client
	dir        string
	log        *slog.Logger
}

func NewImageStrategy(httpClient *http.Client, dir string, log *slog.Logger) *ImageStrategy {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &ImageStrategy{httpClient: httpClient, dir: dir, log: log}
}

// Fetch writes the response body verbatim to a file named after the URL's
// final path segment.
func (s *ImageStrategy) Fetch(ctx context.Context, srcURL string) (string, error) {
	dir, err := mediaDir(s.dir)
	if err != nil {
		return "", err
	}

	filePath, err := download(ctx, s.httpClient, srcURL, dir, fileNameFromURL(srcURL))
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}

	s.log.InfoContext(ctx, "Image is downloaded",
		"srcURL", srcURL,
		"path", filePath)

	return filePath, nil
}

func (s *ImageStrategy) Upload(ctx context.Context, up Uploader, path string) (string, error) {
	return up.UploadImage(ctx, path)
}

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const fallbackFileName = "media"

func mediaDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = os.TempDir()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	return dir, nil
}

// fileNameFromURL returns the final path segment of rawURL.
func fileNameFromURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fallbackFileName
	}

	name := path.Base(u.Path)
	if unescaped, unescapeErr := url.PathUnescape(name); unescapeErr == nil {
		name = unescaped
	}
	name = filepath.Base(name)

	if name == "" || name == "." || name == "/" || name == string(filepath.Separator) {
		return fallbackFileName
	}

	return name
}

func get(ctx context.Context, httpClient *http.Client, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d (URL = %s)", resp.StatusCode, rawURL)
	}

	return resp, nil
}

// writeFile copies r into dir/name. A partially written file is removed.
func writeFile(dir string, name string, r io.Reader) (filePath string, err error) {
	filePath = filepath.Join(dir, name)

	f, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close file: %w", closeErr)
		}
		if err != nil {
			err = errors.Join(err, removeIfExists(filePath))
			filePath = ""
		}
	}()

	if _, err = io.Copy(f, r); err != nil {
		return filePath, fmt.Errorf("write file: %w", err)
	}

	return filePath, nil
}

func download(ctx context.Context, httpClient *http.Client, rawURL string, dir string, name string) (string, error) {
	resp, err := get(ctx, httpClient, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return writeFile(dir, name, resp.Body)
}

// Remove deletes a materialized media file. A missing file is not an error.
func Remove(filePath string) error {
	return removeIfExists(filePath)
}

func removeIfExists(filePath string) error {
	if filePath == "" {
		return nil
	}

	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", filePath, err)
	}

	return nil
}

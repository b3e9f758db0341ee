package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kkdai/youtube/v2"
	"github.com/samber/lo"
	"mvdan.cc/xurls/v2"
)

const (
	mp4MimeType     = "video/mp4"
	mp4Extension    = ".mp4"
	maxPageBodySize = 8 << 20
)

var youtubeHosts = map[string]struct{}{
	"youtube.com":          {},
	"m.youtube.com":        {},
	"music.youtube.com":    {},
	"youtu.be":             {},
	"youtube-nocookie.com": {},
}

// errNoStream is returned when a hosting page exposes no downloadable mp4.
var errNoStream = errors.New("no progressive mp4 stream found")

type youtubeClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// VideoStrategy treats the feed URL as a reference to a hosting page and
// downloads the best progressive mp4 it exposes.
type VideoStrategy struct {
	httpClient *http.Client
	yt         youtubeClient
	dir        string
	log        *slog.Logger
}

func NewVideoStrategy(httpClient *http.Client, dir string, log *slog.Logger) *VideoStrategy {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &VideoStrategy{
		httpClient: httpClient,
		yt:         &youtube.Client{HTTPClient: httpClient},
		dir:        dir,
		log:        log,
	}
}

func (s *VideoStrategy) Fetch(ctx context.Context, srcURL string) (string, error) {
	srcURL = strings.TrimSpace(srcURL)

	u, err := url.Parse(srcURL)
	if err != nil {
		return "", fmt.Errorf("parse video URL: %w", err)
	}

	dir, err := mediaDir(s.dir)
	if err != nil {
		return "", err
	}

	var filePath string
	switch {
	case isYouTubeHost(u.Hostname()):
		filePath, err = s.fetchYouTube(ctx, srcURL, dir)
	case isMP4Path(u.Path):
		filePath, err = download(ctx, s.httpClient, srcURL, dir, fileNameFromURL(srcURL))
	default:
		filePath, err = s.fetchFromPage(ctx, u, dir)
	}
	if err != nil {
		return "", fmt.Errorf("download video (URL = %s): %w", srcURL, err)
	}

	s.log.InfoContext(ctx, "Video is downloaded",
		"srcURL", srcURL,
		"path", filePath)

	return filePath, nil
}

func (s *VideoStrategy) Upload(ctx context.Context, up Uploader, path string) (string, error) {
	return up.UploadVideo(ctx, path)
}

func (s *VideoStrategy) fetchYouTube(ctx context.Context, srcURL string, dir string) (string, error) {
	video, err := s.yt.GetVideoContext(ctx, srcURL)
	if err != nil {
		return "", fmt.Errorf("get YouTube video: %w", err)
	}

	format, ok := bestProgressiveMP4(video.Formats)
	if !ok {
		return "", errNoStream
	}

	stream, size, err := s.yt.GetStreamContext(ctx, video, format)
	if err != nil {
		return "", fmt.Errorf("get YouTube stream: %w", err)
	}
	defer stream.Close()

	s.log.InfoContext(ctx, "YouTube stream is selected",
		"videoID", video.ID,
		"itag", format.ItagNo,
		"qualityLabel", format.QualityLabel,
		"height", format.Height,
		"sizeBytes", size)

	return writeFile(dir, video.ID+mp4Extension, stream)
}

// bestProgressiveMP4 picks the mp4 format carrying both audio and video with
// the highest resolution.
func bestProgressiveMP4(formats youtube.FormatList) (*youtube.Format, bool) {
	progressive := lo.Filter(formats, func(f youtube.Format, _ int) bool {
		return f.AudioChannels > 0 && strings.HasPrefix(f.MimeType, mp4MimeType)
	})
	if len(progressive) == 0 {
		return nil, false
	}

	best := lo.MaxBy(progressive, func(a youtube.Format, b youtube.Format) bool {
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		return a.Bitrate > b.Bitrate
	})

	return &best, true
}

// fetchFromPage downloads the first mp4 exposed by an HTML hosting page.
func (s *VideoStrategy) fetchFromPage(ctx context.Context, pageURL *url.URL, dir string) (string, error) {
	resp, err := get(ctx, s.httpClient, pageURL.String())
	if err != nil {
		return "", fmt.Errorf("fetch hosting page: %w", err)
	}
	defer resp.Body.Close()

	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType == mp4MimeType {
		name := fileNameFromURL(pageURL.String())
		if !isMP4Path(name) {
			name += mp4Extension
		}
		return writeFile(dir, name, resp.Body)
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBodySize))
	if err != nil {
		return "", fmt.Errorf("read hosting page: %w", err)
	}

	candidates, err := pageCandidates(pageURL, page)
	if err != nil {
		return "", err
	}

	if len(candidates) == 0 {
		return "", errNoStream
	}

	candidate := candidates[0]
	if isYouTubeHost(candidate.Hostname()) {
		return s.fetchYouTube(ctx, candidate.String(), dir)
	}

	return download(ctx, s.httpClient, candidate.String(), dir, fileNameFromURL(candidate.String()))
}

// pageCandidates lists video sources in page order: <video>/<source> mp4
// elements first, then embedded YouTube players, then bare mp4 links.
func pageCandidates(pageURL *url.URL, page []byte) ([]*url.URL, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse hosting page: %w", err)
	}

	var candidates []*url.URL
	seen := make(map[string]struct{})
	add := func(raw string) {
		ref, parseErr := url.Parse(strings.TrimSpace(raw))
		if parseErr != nil || raw == "" {
			return
		}

		resolved := pageURL.ResolveReference(ref)
		if _, ok := seen[resolved.String()]; ok {
			return
		}

		seen[resolved.String()] = struct{}{}
		candidates = append(candidates, resolved)
	}

	doc.Find("video source, video[src]").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok {
			return
		}

		typ, _ := sel.Attr("type")
		if strings.Contains(typ, mp4MimeType) || isMP4Path(src) {
			add(src)
		}
	})

	doc.Find("iframe[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if ref, parseErr := url.Parse(src); parseErr == nil && isYouTubeHost(pageURL.ResolveReference(ref).Hostname()) {
			add(src)
		}
	})

	for _, link := range xurls.Strict().FindAllString(string(page), -1) {
		if u, parseErr := url.Parse(link); parseErr == nil && isMP4Path(u.Path) {
			add(link)
		}
	}

	return candidates, nil
}

func isYouTubeHost(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	_, ok := youtubeHosts[host]

	return ok
}

func isMP4Path(p string) bool {
	return strings.EqualFold(path.Ext(p), mp4Extension)
}

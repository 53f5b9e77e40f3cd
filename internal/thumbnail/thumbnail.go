// Package thumbnail proxies provider poster images through the service's own
// bucket, so a page showing a consent prompt never contacts the provider.
package thumbnail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sendrec/videoconsent/internal/provider"
)

const (
	maxImageBytes = 5 << 20
	linkExpiry    = time.Hour
)

var ErrNotFound = errors.New("thumbnail not found")

// Store is the bucket the proxy caches into.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type Proxy struct {
	store Store
	http  *http.Client
	group singleflight.Group

	youtubeImageBase string
	vimeoOEmbed      string
}

func NewProxy(store Store) *Proxy {
	return &Proxy{
		store:            store,
		http:             &http.Client{Timeout: 10 * time.Second},
		youtubeImageBase: "https://i.ytimg.com/vi",
		vimeoOEmbed:      "https://vimeo.com/api/oembed.json",
	}
}

func Key(p provider.Provider, videoID string) string {
	return "thumbnails/" + string(p) + "/" + videoID + ".jpg"
}

// URL returns a presigned link to the cached thumbnail, fetching it from the
// provider first on a miss. Concurrent misses for one video fetch once.
func (p *Proxy) URL(ctx context.Context, prov provider.Provider, videoID string) (string, error) {
	if !provider.ValidID(prov, videoID) {
		return "", ErrNotFound
	}
	key := Key(prov, videoID)

	_, err, _ := p.group.Do(key, func() (any, error) {
		ok, err := p.store.Exists(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, nil
		}

		body, contentType, err := p.fetch(ctx, prov, videoID)
		if err != nil {
			return nil, err
		}
		if err := p.store.Put(ctx, key, body, contentType); err != nil {
			return nil, err
		}
		slog.Info("thumbnail: cached", "provider", prov, "video_id", videoID, "bytes", len(body))
		return nil, nil
	})
	if err != nil {
		return "", err
	}

	return p.store.GenerateDownloadURL(ctx, key, linkExpiry)
}

func (p *Proxy) fetch(ctx context.Context, prov provider.Provider, videoID string) ([]byte, string, error) {
	switch prov {
	case provider.YouTube:
		return p.download(ctx, p.youtubeImageBase+"/"+url.PathEscape(videoID)+"/hqdefault.jpg")
	case provider.Vimeo:
		imageURL, err := p.vimeoThumbnail(ctx, videoID)
		if err != nil {
			return nil, "", err
		}
		return p.download(ctx, imageURL)
	default:
		return nil, "", ErrNotFound
	}
}

type vimeoOEmbed struct {
	ThumbnailURL string `json:"thumbnail_url"`
}

func (p *Proxy) vimeoThumbnail(ctx context.Context, videoID string) (string, error) {
	endpoint := p.vimeoOEmbed + "?url=" + url.QueryEscape("https://vimeo.com/"+videoID)
	body, _, err := p.get(ctx, endpoint, 64<<10)
	if err != nil {
		return "", fmt.Errorf("vimeo oembed: %w", err)
	}

	var meta vimeoOEmbed
	if err := json.Unmarshal(body, &meta); err != nil {
		return "", fmt.Errorf("decode vimeo oembed: %w", err)
	}
	if meta.ThumbnailURL == "" {
		return "", ErrNotFound
	}
	return meta.ThumbnailURL, nil
}

func (p *Proxy) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	body, contentType, err := p.get(ctx, imageURL, maxImageBytes)
	if err != nil {
		return nil, "", fmt.Errorf("download thumbnail: %w", err)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("download thumbnail: unexpected content type %q", contentType)
	}
	return body, contentType, nil
}

func (p *Proxy) get(ctx context.Context, rawURL string, limit int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(body)) > limit {
		return nil, "", fmt.Errorf("response larger than %d bytes", limit)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

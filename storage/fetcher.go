package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
)

const SchemeMinIO = "minio"

var ErrMinIONotConfigured = errors.New("minio client not configured")

// Fetcher resolves an input reference to a readable local file. References
// are local paths, http(s) URLs or minio://bucket/key.
type Fetcher struct {
	minio *minio.Client
	http  *http.Client
}

// NewFetcher accepts a nil minio client when no object store is configured.
func NewFetcher(minioClient *minio.Client, httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Fetcher{minio: minioClient, http: httpClient}
}

// Fetch returns ref unchanged when it is a local path. Remote references are
// downloaded to dst and dst is returned.
func (f *Fetcher) Fetch(ctx context.Context, ref, dst string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// A one-letter scheme is a Windows drive, not a URL.
		return ref, nil
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return u.Path, nil
	case "http", "https":
		err = f.fetchHTTP(ctx, ref, dst)
	case SchemeMinIO:
		err = f.fetchMinIO(ctx, u, dst)
	default:
		return "", fmt.Errorf("unsupported reference scheme %q", u.Scheme)
	}
	if err != nil {
		return "", err
	}
	zerolog.Ctx(ctx).Debug().Str("ref", ref).Str("path", dst).Msg("fetched input")
	return dst, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, ref, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %s", ref, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return fmt.Errorf("download %s: %w", ref, err)
	}
	return out.Close()
}

func (f *Fetcher) fetchMinIO(ctx context.Context, u *url.URL, dst string) error {
	if f.minio == nil {
		return ErrMinIONotConfigured
	}
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return fmt.Errorf("invalid minio reference %q", u.String())
	}
	if err := f.minio.FGetObject(ctx, bucket, key, dst, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("minio get %s/%s: %w", bucket, key, err)
	}
	return nil
}

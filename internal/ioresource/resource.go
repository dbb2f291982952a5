// Package ioresource opens schemas and linked documents from the local
// file system or over HTTP, keeping downloads in a cache directory.
package ioresource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gmlas/pkg/gmlas"
	"github.com/gnames/gnsys"
)

var errTooLarge = errors.New("resource too large")

type loader struct {
	cacheDir    string
	cacheLinks  bool
	allowRemote bool
	maxSize     int64
	client      *http.Client

	mu  sync.Mutex
	mem map[string][]byte
}

// New creates a ResourceLoader. Remote schemas are cached under the cache
// directory of HomeDir, when HomeDir is set.
func New(cfg *config.Config) gmlas.ResourceLoader {
	res := loader{
		cacheLinks:  cfg.XLink.CacheResults,
		allowRemote: cfg.XLink.AllowRemoteDownload,
		maxSize:     int64(cfg.XLink.MaxFileSize),
		client: &http.Client{
			Timeout: time.Duration(cfg.XLink.Timeout) * time.Second,
		},
		mem: make(map[string][]byte),
	}
	if cfg.HomeDir != "" {
		res.cacheDir = config.CacheDir(cfg.HomeDir)
	}
	return &res
}

// CleanCache removes downloaded schemas and linked resources kept under
// homeDir.
func CleanCache(homeDir string) error {
	dir := config.CacheDir(homeDir)
	if err := gnsys.CleanDir(dir); err != nil {
		return CleanCacheError(dir, err)
	}
	slog.Info("Cache cleaned up", "dir", dir)
	return nil
}

// Resolve makes uri absolute against basePath, which is a file path or a
// URL of the referencing document.
func Resolve(uri, basePath string) string {
	uri = strings.TrimSpace(uri)
	if IsURL(uri) || basePath == "" {
		return uri
	}
	if IsURL(basePath) {
		base, err := url.Parse(basePath)
		if err != nil {
			return uri
		}
		ref, err := url.Parse(uri)
		if err != nil {
			return uri
		}
		return base.ResolveReference(ref).String()
	}
	if filepath.IsAbs(uri) {
		return uri
	}
	return filepath.Join(filepath.Dir(basePath), uri)
}

// IsURL tells if s is an http(s) URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func (l *loader) Open(
	ctx context.Context,
	uri, basePath string,
) (io.ReadCloser, string, error) {
	loc := Resolve(uri, basePath)
	if !IsURL(loc) {
		f, err := os.Open(loc)
		if err != nil {
			return nil, loc, ResourceOpenError(loc, err)
		}
		return f, loc, nil
	}

	data, err := l.get(ctx, loc, 0, true)
	if err != nil {
		return nil, loc, err
	}
	return io.NopCloser(bytes.NewReader(data)), loc, nil
}

func (l *loader) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if !IsURL(uri) {
		data, err := os.ReadFile(uri)
		if err != nil {
			return nil, ResourceOpenError(uri, err)
		}
		if l.maxSize > 0 && int64(len(data)) > l.maxSize {
			return nil, ResourceTooLargeError(uri, l.maxSize)
		}
		return data, nil
	}
	return l.get(ctx, uri, l.maxSize, l.cacheLinks)
}

func (l *loader) get(
	ctx context.Context,
	uri string,
	limit int64,
	useCache bool,
) ([]byte, error) {
	l.mu.Lock()
	data, ok := l.mem[uri]
	l.mu.Unlock()
	if ok {
		return data, nil
	}

	cachePath := l.cachePath(uri)
	if useCache && cachePath != "" {
		if data, err := os.ReadFile(cachePath); err == nil {
			slog.Debug("Using cached resource", "url", uri, "path", cachePath)
			l.remember(uri, data)
			return data, nil
		}
	}

	if !l.allowRemote {
		return nil, ResourceDownloadError(uri,
			errors.New("remote download is disabled"))
	}

	data, err := l.download(ctx, uri, limit)
	if err != nil {
		return nil, err
	}
	l.remember(uri, data)

	if useCache && cachePath != "" {
		if err = gnsys.MakeDir(filepath.Dir(cachePath)); err == nil {
			err = os.WriteFile(cachePath, data, 0644)
		}
		if err != nil {
			slog.Warn("Cannot cache resource", "url", uri, "error", err)
		}
	}
	return data, nil
}

func (l *loader) download(ctx context.Context, uri string, limit int64) ([]byte, error) {
	slog.Info("Downloading resource", "url", uri)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, ResourceDownloadError(uri, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, ResourceDownloadError(uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ResourceDownloadError(uri,
			fmt.Errorf("unexpected status %s", resp.Status))
	}
	if limit > 0 && resp.ContentLength > limit {
		return nil, ResourceTooLargeError(uri, limit)
	}

	var r io.Reader = resp.Body
	if limit > 0 {
		r = io.LimitReader(resp.Body, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ResourceDownloadError(uri, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, ResourceTooLargeError(uri, limit)
	}
	return data, nil
}

func (l *loader) remember(uri string, data []byte) {
	l.mu.Lock()
	l.mem[uri] = data
	l.mu.Unlock()
}

// cachePath mirrors host and path of a URL under the cache directory.
func (l *loader) cachePath(uri string) string {
	if l.cacheDir == "" {
		return ""
	}
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return ""
	}
	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		p += "index"
	}
	if u.RawQuery != "" {
		p += "_" + sanitize(u.RawQuery)
	}
	res := filepath.Join(l.cacheDir, sanitize(u.Host), filepath.FromSlash(p))
	if !strings.HasPrefix(res, l.cacheDir+string(filepath.Separator)) {
		return ""
	}
	return res
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '?', '*', '"', '<', '>', '|', '&', '=':
			return '_'
		}
		return r
	}, s)
}

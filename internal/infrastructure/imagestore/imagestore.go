package imagestore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"resty.dev/v3"

	"houzel-server/internal/utils/httpclients"
	"houzel-server/internal/utils/idgen"
	"houzel-server/internal/utils/platformerrors"
)

// URLPrefix is the public path under which stored images are served.
const URLPrefix = "/storage/chat-images/"

// Store persists uploaded images and resolves stored references back to
// bytes for multimodal model calls.
type Store interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Resolve(ctx context.Context, ref string) ([]byte, string, error)
}

// DiskStore keeps images on the local filesystem and serves them under
// URLPrefix. References pointing at other hosts are fetched over HTTP.
type DiskStore struct {
	dir      string
	maxBytes int64
	client   *resty.Client
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore creates the store directory when missing.
func NewDiskStore(dir string, maxBytes int64, fetchTimeout time.Duration) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &DiskStore{
		dir:      dir,
		maxBytes: maxBytes,
		client:   httpclients.NewClient("imagestore", fetchTimeout),
	}, nil
}

// Dir returns the backing directory, used to mount the static file route.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save writes an uploaded image to disk under a generated name and returns
// the public reference URL.
func (s *DiskStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	id, err := idgen.GenerateSecureID("img", 24)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to generate image id")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".png"
	}
	name := id + ext

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to create image file")
	}
	defer f.Close()

	limited := io.LimitReader(r, s.maxBytes+1)
	written, err := io.Copy(f, limited)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to write image file")
	}
	if written > s.maxBytes {
		os.Remove(f.Name())
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeValidation, "image exceeds maximum size", nil)
	}

	return URLPrefix + name, nil
}

// Resolve maps an image reference to raw bytes and a media type. Local
// references (URLPrefix paths, with or without a host) are read from disk,
// anything else is fetched over HTTP.
func (s *DiskStore) Resolve(ctx context.Context, ref string) ([]byte, string, error) {
	if localPath, ok := s.localPath(ref); ok {
		data, err := os.ReadFile(localPath)
		if err != nil {
			return nil, "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound, "image file not found", err)
		}
		return data, detectMime(localPath, data), nil
	}

	resp, err := s.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(ref)
	if err != nil {
		return nil, "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "failed to fetch remote image", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode() != http.StatusOK {
		return nil, "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, fmt.Sprintf("remote image returned status %d", resp.StatusCode()), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes))
	if err != nil {
		return nil, "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal, "failed to read remote image", err)
	}

	mime := resp.Header().Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

// localPath extracts the on-disk path for references this store serves.
func (s *DiskStore) localPath(ref string) (string, bool) {
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	}
	if !strings.HasPrefix(p, URLPrefix) {
		return "", false
	}
	name := path.Base(p)
	// path.Base already strips directories, this guards odd inputs like "..".
	if name == "." || name == ".." || name == "/" {
		return "", false
	}
	return filepath.Join(s.dir, name), true
}

func detectMime(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return http.DetectContentType(data)
}

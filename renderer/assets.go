package renderer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxAssetBytes 限制单个远程图片大小。
const maxAssetBytes = 16 << 20

// ErrUnsupportedSource is returned for sources the loader refuses to open.
var ErrUnsupportedSource = errors.New("renderer: unsupported image source")

// AssetLoader 按来源读取图片。
type AssetLoader interface {
	Load(ctx context.Context, src string) (image.Image, error)
}

// Loader 支持 data URI、内置资源、本地路径与 http(s)（不携带凭据）。
type Loader struct {
	BaseDir string
	Images  map[string][]byte // built-in:<name>
	Client  *http.Client
}

var _ AssetLoader = (*Loader)(nil)

// NewLoader creates a loader rooted at baseDir.
func NewLoader(baseDir string) *Loader {
	return &Loader{
		BaseDir: baseDir,
		Images:  map[string][]byte{},
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Load implements AssetLoader.
func (l *Loader) Load(ctx context.Context, src string) (image.Image, error) {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return nil, fmt.Errorf("%w: empty source", ErrUnsupportedSource)
	case strings.HasPrefix(src, "data:"):
		return decodeDataURI(src)
	case strings.HasPrefix(src, "built-in:"), strings.HasPrefix(src, "builtin:"):
		name := strings.TrimPrefix(strings.TrimPrefix(src, "built-in:"), "builtin:")
		blob, ok := l.Images[name]
		if !ok {
			return nil, fmt.Errorf("找不到内置图片资源 built-in:%s", name)
		}
		return decode(bytes.NewReader(blob), src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return l.fetch(ctx, src)
	default:
		return l.open(src)
	}
}

func (l *Loader) open(src string) (image.Image, error) {
	path := strings.TrimPrefix(src, "file://")
	if l.BaseDir == "" && !filepath.IsAbs(path) {
		return nil, fmt.Errorf("未指定资源目录时不允许直接使用路径：%s", src)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.BaseDir, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", src, err)
	}
	defer file.Close()
	return decode(file, src)
}

func (l *Loader) fetch(ctx context.Context, src string) (image.Image, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("图片地址 %s 非法: %w", src, err)
	}
	// 跨域请求不携带凭据
	u.User = nil
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("下载图片 %s 失败: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载图片 %s 失败: HTTP %d", src, resp.StatusCode)
	}
	return decode(io.LimitReader(resp.Body, maxAssetBytes), src)
}

func decodeDataURI(src string) (image.Image, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data URI", ErrUnsupportedSource)
	}
	var raw []byte
	if strings.HasSuffix(header, ";base64") {
		var err error
		raw, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("解码 data URI 失败: %w", err)
		}
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("解码 data URI 失败: %w", err)
		}
		raw = []byte(unescaped)
	}
	return decode(bytes.NewReader(raw), "data URI")
}

func decode(r io.Reader, src string) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", src, err)
	}
	return img, nil
}

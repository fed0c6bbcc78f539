package canvas

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	// Registered decoders for page images written by other clients
	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

const (
	maxImageBytes = 16 << 20
	// Page images may be stored at up to this multiple of the surface size
	// (high density displays).
	maxImageScale = 2
)

var (
	ErrNotDataURL    = errors.New("image data is not a data url")
	ErrImageTooLarge = errors.New("image data too large")
)

// Fetcher loads image bytes referenced by an http(s) URL.
type Fetcher func(ctx context.Context, rawURL string) ([]byte, error)

var httpClient = &http.Client{Timeout: 5 * time.Second}

func HTTPFetcher(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxImageBytes {
		return nil, ErrImageTooLarge
	}
	return body, nil
}

var pngEncoder = png.Encoder{CompressionLevel: png.BestSpeed}

// EncodeDataURL serializes img as a PNG data URL.
func EncodeDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := pngEncoder.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodePNG writes img as PNG bytes.
func EncodePNG(w io.Writer, img image.Image) error {
	return pngEncoder.Encode(w, img)
}

// DataURLBytes extracts the payload of a data URL.
func DataURLBytes(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(dataURL[len("data:"):], ",")
	if !ok {
		return nil, errors.New("malformed data url")
	}

	if strings.HasSuffix(meta, ";base64") {
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode base64 payload: %w", err)
		}
		return raw, nil
	}

	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("unescape payload: %w", err)
	}
	return []byte(unescaped), nil
}

// DecodeImageData decodes a page's image data, either a data URL or an
// http(s) URL loaded through fetch. Images wider or taller than
// maxImageScale times size are refused before any pixels are decoded.
func DecodeImageData(ctx context.Context, imageData string, size image.Point, fetch Fetcher) (image.Image, error) {
	var raw []byte
	var err error
	switch {
	case strings.HasPrefix(imageData, "data:"):
		raw, err = DataURLBytes(imageData)
	case strings.HasPrefix(imageData, "http://"), strings.HasPrefix(imageData, "https://"):
		if fetch == nil {
			return nil, errors.New("no fetcher for remote image")
		}
		raw, err = fetch(ctx, imageData)
	default:
		return nil, ErrNotDataURL
	}
	if err != nil {
		return nil, err
	}
	if len(raw) > maxImageBytes {
		return nil, ErrImageTooLarge
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width > size.X*maxImageScale || cfg.Height > size.Y*maxImageScale {
		return nil, fmt.Errorf("%w: %dx%d on a %dx%d page", ErrImageTooLarge, cfg.Width, cfg.Height, size.X, size.Y)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

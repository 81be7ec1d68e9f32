package proof

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/julianstephens/habitenforcer/internal/logger"
)

const maxImageBytes = 20 << 20

// Loader reads proof images from data: URIs, http(s) URLs or local files.
type Loader struct {
	client    *http.Client
	twilioSID string
	twilioTok string
	// TwilioHosts lists hosts that get basic auth with the Twilio
	// credentials.
	TwilioHosts []string
}

func NewLoader(twilioSID, twilioToken string) *Loader {
	return &Loader{
		client:      &http.Client{Timeout: 10 * time.Second},
		twilioSID:   twilioSID,
		twilioTok:   twilioToken,
		TwilioHosts: []string{"api.twilio.com"},
	}
}

func (l *Loader) Load(ctx context.Context, source string) (Image, error) {
	switch {
	case strings.HasPrefix(source, "data:"):
		return decodeDataURI(source)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return l.download(ctx, source)
	default:
		return readFile(source)
	}
}

func decodeDataURI(uri string) (Image, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return Image{}, fmt.Errorf("malformed data URI")
	}
	mimeType, _, _ := strings.Cut(meta, ";")
	var data []byte
	var err error
	if strings.HasSuffix(meta, ";base64") {
		data, err = base64.StdEncoding.DecodeString(payload)
	} else {
		var s string
		s, err = url.PathUnescape(payload)
		data = []byte(s)
	}
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode data URI: %w", err)
	}
	return Image{Data: data, MIMEType: detectType(mimeType, "", data), Source: "data-uri"}, nil
}

func (l *Loader) download(ctx context.Context, rawURL string) (Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Image{}, fmt.Errorf("invalid image URL: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Image{}, err
	}
	if l.isTwilio(u.Hostname()) {
		if l.twilioSID == "" || l.twilioTok == "" {
			return Image{}, fmt.Errorf("twilio credentials not configured")
		}
		req.SetBasicAuth(l.twilioSID, l.twilioTok)
	}
	res, err := l.client.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("failed to download proof image: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Image{}, fmt.Errorf("failed to download proof image: status %d", res.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, maxImageBytes))
	if err != nil {
		return Image{}, fmt.Errorf("failed to download proof image: %w", err)
	}
	logger.Debug("Downloaded proof image", "bytes", len(data))
	return Image{Data: data, MIMEType: detectType(res.Header.Get("Content-Type"), u.Path, data), Source: rawURL}, nil
}

func (l *Loader) isTwilio(host string) bool {
	for _, h := range l.TwilioHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func readFile(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Image{}, fmt.Errorf("proof image not found: %s", path)
	}
	if err != nil {
		return Image{}, fmt.Errorf("failed to read proof image: %w", err)
	}
	return Image{Data: data, MIMEType: detectType("", path, data), Source: path}, nil
}

// detectType prefers an explicit image type, then the file extension, then
// content sniffing.
func detectType(header, name string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && strings.HasPrefix(mt, "image/") {
		return mt
	}
	if ext := filepath.Ext(name); ext != "" {
		if mt := mime.TypeByExtension(strings.ToLower(ext)); strings.HasPrefix(mt, "image/") {
			mt, _, _ = strings.Cut(mt, ";")
			return mt
		}
	}
	if mt := http.DetectContentType(data); strings.HasPrefix(mt, "image/") {
		return mt
	}
	return "image/jpeg"
}

// Package storage keeps uploaded GPX route files in an object store and maps
// between object keys and the public URLs saved on events.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	// RoutesPrefix is the key prefix every uploaded route file lives under.
	RoutesPrefix = "routes/"

	DefaultContentType = "application/gpx+xml"
	defaultFilename    = "route"
	maxSlugLength      = 80
)

var ErrNotConfigured = errors.New("storage: route bucket is not configured")

type RouteStore interface {
	Upload(ctx context.Context, in UploadInput) (StoredObject, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL returns the object key for a URL this store produced. URLs
	// pointing anywhere else report false.
	KeyFromURL(rawURL string) (string, bool)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	URLFor(key string) string
}

type UploadInput struct {
	Filename    string
	ContentType string
	Body        []byte
}

type StoredObject struct {
	Bucket string
	Key    string
	URL    string
}

type ObjectInfo struct {
	Key          string
	URL          string
	Size         int64
	LastModified time.Time
}

// RouteKey builds routes/YYYY/MM/<unix-ms>-<rand>-<slug>.gpx for an upload at now.
func RouteKey(filename string, now time.Time) string {
	now = now.UTC()
	rand := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%04d/%02d/%d-%s-%s",
		RoutesPrefix, now.Year(), int(now.Month()), now.UnixMilli(), rand, gpxFilename(filename))
}

func gpxFilename(filename string) string {
	base := strings.TrimSpace(path.Base(strings.ReplaceAll(filename, "\\", "/")))
	if strings.EqualFold(path.Ext(base), ".gpx") {
		base = base[:len(base)-len(".gpx")]
	}

	s := slug.Make(base)
	if len(s) > maxSlugLength {
		s = strings.Trim(s[:maxSlugLength], "-")
	}
	if s == "" {
		s = defaultFilename
	}
	return s + ".gpx"
}

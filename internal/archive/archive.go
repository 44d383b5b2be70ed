// Package archive uploads finished renders and hands back their public URL.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"sdbooth/internal/pkg/errors"
	"sdbooth/internal/pkg/logger"
	"sdbooth/internal/ports"
)

const defaultContentType = "image/png"

// Archiver stores artifacts through a StorageProvider as public downloads.
type Archiver struct {
	provider ports.StorageProvider
	log      *logger.Logger
}

func New(provider ports.StorageProvider, log *logger.Logger) *Archiver {
	return &Archiver{provider: provider, log: log.WithComponent("archive")}
}

// Upload stores data under filename and returns the public URL.
// Every failure, including an empty URL, carries CodeArchive.
func (a *Archiver) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	if filename == "" {
		return "", errors.New(errors.CodeArchive, "filename is required")
	}

	out, err := a.provider.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:          filename,
		ContentType:        ContentTypeFor(filename),
		ContentDisposition: fmt.Sprintf(`attachment; filename="%s"`, strings.ReplaceAll(filename, `"`, "")),
		Public:             true,
		Reader:             bytes.NewReader(data),
		Size:               int64(len(data)),
	})
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeArchive, "archive.upload", "upload failed").
			WithField("provider", a.provider.Provider())
	}

	url := out.URL
	if url == "" {
		url = a.provider.PublicURL(out.ObjectKey)
	}
	if url == "" {
		return "", errors.New(errors.CodeArchive, "provider returned no url").
			WithField("provider", a.provider.Provider())
	}

	a.log.Debug("artifact archived", "filename", filename, "size", len(data), "url", url)
	return url, nil
}

// ContentTypeFor maps an image extension to its MIME type, defaulting to PNG.
func ContentTypeFor(filename string) string {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if !strings.HasPrefix(ct, "image/") {
		return defaultContentType
	}
	return ct
}

package gdrive

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"sdbooth/internal/ports"
)

// Client implements ports.StorageProvider on Google Drive.
// The object key returned by PutObject is the Drive fileId; the requested key
// becomes the file name.
type Client struct {
	srv      *drive.Service
	folderID string
}

func NewClient(srv *drive.Service, folderID string) *Client {
	return &Client{srv: srv, folderID: folderID}
}

func (c *Client) Provider() string { return "gdrive" }

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	file := &drive.File{Name: in.ObjectKey, MimeType: in.ContentType}
	if c.folderID != "" {
		file.Parents = []string{c.folderID}
	}

	call := c.srv.Files.Create(file).Fields("id", "webContentLink")
	if in.ContentType != "" {
		call = call.Media(in.Reader, googleapi.ContentType(in.ContentType))
	} else {
		call = call.Media(in.Reader)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("gdrive upload failed: %w", err)
	}

	if in.Public {
		perm := &drive.Permission{Type: "anyone", Role: "reader"}
		if _, err := c.srv.Permissions.Create(created.Id, perm).Context(ctx).Do(); err != nil {
			return ports.PutObjectOutput{}, fmt.Errorf("gdrive share %s: %w", created.Id, err)
		}
	}

	link := created.WebContentLink
	if link == "" {
		link = c.PublicURL(created.Id)
	}
	return ports.PutObjectOutput{ObjectKey: created.Id, Size: in.Size, URL: link}, nil
}

func (c *Client) GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error) {
	resp, err := c.srv.Files.Get(objectKey).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, "", 0, err
	}
	return resp.Body, resp.Header.Get("Content-Type"), resp.ContentLength, nil
}

func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	return c.srv.Files.Delete(objectKey).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
}

// PublicURL is the direct download link of a shared file.
func (c *Client) PublicURL(fileID string) string {
	return "https://drive.google.com/uc?export=download&id=" + url.QueryEscape(fileID)
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.srv.About.Get().Fields("user").Context(ctx).Do()
	return err
}

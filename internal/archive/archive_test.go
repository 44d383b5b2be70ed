package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	apperrors "sdbooth/internal/pkg/errors"
	"sdbooth/internal/pkg/logger"
	"sdbooth/internal/ports"
)

type fakeProvider struct {
	in      ports.PutObjectInput
	body    []byte
	url     string
	base    string
	putErr  error
	pingErr error
}

func (f *fakeProvider) Provider() string { return "fake" }

func (f *fakeProvider) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Reader)
	if f.putErr != nil {
		return ports.PutObjectOutput{}, f.putErr
	}
	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: in.Size, URL: f.url}, nil
}

func (f *fakeProvider) GetObject(ctx context.Context, key string) (io.ReadCloser, string, int64, error) {
	return nil, "", 0, errors.New("not implemented")
}

func (f *fakeProvider) DeleteObject(ctx context.Context, key string) error { return nil }

func (f *fakeProvider) PublicURL(key string) string {
	if f.base == "" {
		return ""
	}
	return f.base + "/" + key
}

func (f *fakeProvider) Ping(ctx context.Context) error { return f.pingErr }

func TestUpload(t *testing.T) {
	p := &fakeProvider{url: "https://bucket/abc_face.png"}
	a := New(p, logger.Discard())

	url, err := a.Upload(context.Background(), []byte("pixels"), "abc_face.png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://bucket/abc_face.png" {
		t.Errorf("unexpected url %q", url)
	}
	if !p.in.Public {
		t.Error("expected public upload")
	}
	if p.in.ContentType != "image/png" {
		t.Errorf("content type = %q", p.in.ContentType)
	}
	if p.in.ContentDisposition != `attachment; filename="abc_face.png"` {
		t.Errorf("disposition = %q", p.in.ContentDisposition)
	}
	if string(p.body) != "pixels" || p.in.Size != 6 {
		t.Errorf("body=%q size=%d", p.body, p.in.Size)
	}
}

func TestUploadFallsBackToPublicURL(t *testing.T) {
	p := &fakeProvider{base: "http://local/archive"}
	url, err := New(p, logger.Discard()).Upload(context.Background(), []byte("x"), "a.jpg")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "http://local/archive/a.jpg" {
		t.Errorf("unexpected url %q", url)
	}
	if p.in.ContentType != "image/jpeg" {
		t.Errorf("content type = %q", p.in.ContentType)
	}
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		filename string
	}{
		{"provider error", &fakeProvider{putErr: errors.New("403 Forbidden")}, "a.png"},
		{"no url", &fakeProvider{}, "a.png"},
		{"no filename", &fakeProvider{url: "u"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.provider, logger.Discard()).Upload(context.Background(), []byte("x"), tt.filename)
			if !apperrors.IsCode(err, apperrors.CodeArchive) {
				t.Errorf("expected archive error, got %v", err)
			}
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.png":  "image/png",
		"a.PNG":  "image/png",
		"a.jpg":  "image/jpeg",
		"a.gif":  "image/gif",
		"a.txt":  "image/png",
		"noext":  "image/png",
	}
	for name, want := range tests {
		if got := ContentTypeFor(name); got != want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}

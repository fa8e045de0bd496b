package thumbnail

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
)

type fakeStore struct {
	uploaded map[string][]byte
	deleted  []string
	prefixes []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploaded: map[string][]byte{}}
}

func (s *fakeStore) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	s.uploaded[objectName] = b
	return &minio.UploadInfo{Key: objectName}, nil
}

func (s *fakeStore) DeleteObject(_ context.Context, objectKey string) error {
	s.deleted = append(s.deleted, objectKey)
	return nil
}

func (s *fakeStore) DeletePrefix(_ context.Context, prefix string) error {
	s.prefixes = append(s.prefixes, prefix)
	return nil
}

func TestGenerate_UploadsPNGUnderResumePrefix(t *testing.T) {
	store := newFakeStore()
	r, err := NewRenderer(store, "")
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	path, err := r.Generate(context.Background(), "Some resume content", "resume-1_detail-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !strings.HasPrefix(path, "thumbnails/resumes/resume-1_detail-1_") {
		t.Errorf("object path = %q, want resume/detail prefix", path)
	}
	if !strings.HasSuffix(path, ".png") {
		t.Errorf("object path = %q, want .png suffix", path)
	}

	data, ok := store.uploaded[path]
	if !ok {
		t.Fatalf("nothing uploaded under %q", path)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("uploaded object is not a png: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 400 || bounds.Dy() != 300 {
		t.Errorf("image size = %dx%d, want 400x300", bounds.Dx(), bounds.Dy())
	}
}

func TestDelete_BlankPathIsNoop(t *testing.T) {
	store := newFakeStore()
	r, err := NewRenderer(store, "")
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	if err := r.Delete(context.Background(), "   "); err != nil {
		t.Fatalf("delete blank: %v", err)
	}
	if len(store.deleted) != 0 {
		t.Errorf("deleted = %v, want none", store.deleted)
	}

	if err := r.Delete(context.Background(), "thumbnails/resumes/x.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.deleted) != 1 {
		t.Errorf("deleted = %v, want one entry", store.deleted)
	}
}

func TestDeleteForResume_UsesPrefix(t *testing.T) {
	store := newFakeStore()
	r, err := NewRenderer(store, "")
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	if err := r.DeleteForResume(context.Background(), "resume-1"); err != nil {
		t.Fatalf("delete for resume: %v", err)
	}
	if len(store.prefixes) != 1 || store.prefixes[0] != "thumbnails/resumes/resume-1_" {
		t.Errorf("prefixes = %v, want resume-scoped prefix", store.prefixes)
	}
}

func TestSanitizeContent(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"markdown stripped", "# Title\n**bold** and [link](https://x)", "Title\nbold and link"},
		{"whitespace trimmed", "  plain  ", "plain"},
		{"empty stays empty", "***", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sanitizeContent(tc.in); got != tc.want {
				t.Errorf("sanitizeContent(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeContent_Truncates(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := sanitizeContent(long)
	if len([]rune(got)) != 303 { // 300 字符 + "..."
		t.Errorf("len = %d, want 303", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated text should end with ellipsis")
	}
}

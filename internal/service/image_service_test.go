package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bookclub/internal/config"
	"bookclub/internal/testutil"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageService_UploadBoundsAndEncodesWebP(t *testing.T) {
	cfg := &config.Config{UploadDir: t.TempDir(), MediaBaseURL: "/media/", ImageMaxUploadSizeMB: 5}
	svc := NewImageService(cfg)

	img, err := svc.Upload(context.Background(), UploadImageInput{
		UserID:      4,
		Filename:    "cover.png",
		ContentType: "image/png",
		Content:     testutil.PNGBytes(t, 2048, 1024),
	})
	require.NoError(t, err)
	assert.Equal(t, 1024, img.Width)
	assert.Equal(t, 512, img.Height)
	assert.Equal(t, "/media/"+img.Hash+".webp", img.URL)

	f, err := os.Open(filepath.Join(cfg.UploadDir, img.Hash+".webp"))
	require.NoError(t, err)
	defer f.Close()
	decoded, err := webp.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 1024, decoded.Bounds().Dx())
}

func TestImageService_SameContentSameHash(t *testing.T) {
	svc := NewImageService(&config.Config{UploadDir: t.TempDir(), ImageMaxUploadSizeMB: 5})
	content := testutil.JPEGBytes(t, 64, 64)

	a, err := svc.Upload(context.Background(), UploadImageInput{UserID: 1, Content: content})
	require.NoError(t, err)
	b, err := svc.Upload(context.Background(), UploadImageInput{UserID: 2, Content: content})
	require.NoError(t, err)
	assert.Equal(t, a.Hash, b.Hash)
	assert.Equal(t, 64, b.Width)
}

func TestImageService_RejectsBadUploads(t *testing.T) {
	svc := NewImageService(&config.Config{UploadDir: t.TempDir(), ImageMaxUploadSizeMB: 1})
	ctx := context.Background()

	tests := []struct {
		name string
		in   UploadImageInput
	}{
		{"no user", UploadImageInput{Content: testutil.PNGBytes(t, 4, 4)}},
		{"empty", UploadImageInput{UserID: 1}},
		{"not an image", UploadImageInput{UserID: 1, Content: []byte("plain text, definitely not pixels")}},
		{"type mismatch", UploadImageInput{UserID: 1, ContentType: "image/jpeg", Content: testutil.PNGBytes(t, 4, 4)}},
		{"too large", UploadImageInput{UserID: 1, Content: make([]byte, 2*1024*1024)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tc.in)
			assertValidationError(t, err)
		})
	}
}

package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"bookclub/internal/config"
	"bookclub/internal/middleware"
	"bookclub/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageUploadDir       = "uploads"
	DefaultMediaBaseURL         = "/media"
	DefaultImageMaxUploadSizeMB = 10
	MaxImageDimension           = 1024
	WebPQuality                 = 80
)

type UploadImageInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// StoredImage describes an image written to the upload directory.
type StoredImage struct {
	Hash   string `json:"hash"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ImageService normalizes avatar and cover uploads to bounded WebP files
// named by the hash of their source bytes.
type ImageService struct {
	uploadDir          string
	baseURL            string
	maxUploadSizeBytes int64
}

func NewImageService(cfg *config.Config) *ImageService {
	uploadDir := DefaultImageUploadDir
	baseURL := DefaultMediaBaseURL
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB

	if cfg != nil {
		if cfg.UploadDir != "" {
			uploadDir = cfg.UploadDir
		}
		if cfg.MediaBaseURL != "" {
			baseURL = cfg.MediaBaseURL
		}
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
		}
	}

	return &ImageService{
		uploadDir:          uploadDir,
		baseURL:            strings.TrimRight(baseURL, "/"),
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// UploadDir is where encoded files are written.
func (s *ImageService) UploadDir() string {
	return s.uploadDir
}

func (s *ImageService) Upload(ctx context.Context, in UploadImageInput) (*StoredImage, error) {
	if in.UserID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detected := normalizeContentType(http.DetectContentType(in.Content))
	if !isAllowedImageMIME(detected) {
		return nil, models.NewValidationError("Invalid image type")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, detected) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	hash := contentHash(in.Content)
	name := hash + ".webp"
	path := filepath.Join(s.uploadDir, name)

	decoded, _, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	bounded := resizeToFit(decoded, MaxImageDimension, MaxImageDimension)
	b := bounded.Bounds()
	stored := &StoredImage{Hash: hash, URL: s.baseURL + "/" + name, Width: b.Dx(), Height: b.Dy()}

	if _, err := os.Stat(path); err == nil {
		return stored, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, models.NewInternalError(err)
	}

	encoded, err := encodeWebP(bounded, WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := writeBytesToFile(path, encoded); err != nil {
		return nil, models.NewInternalError(err)
	}

	middleware.Logger.InfoContext(ctx, "image stored",
		"hash", hash,
		"user_id", in.UserID,
		"filename", in.Filename,
		"bytes", len(encoded),
	)
	return stored, nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"scholarhub/internal/config"
	"scholarhub/internal/models"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	DefaultImageUploadDir       = "/tmp/scholarhub/uploads"
	DefaultImageMaxUploadSizeMB = 5
	WebPQuality                 = 75

	// University images are listing banners and fit inside this box.
	UniversityImageMaxWidth  = 1600
	UniversityImageMaxHeight = 900
	// Profile images become square avatars of at most this side.
	AvatarSize = 400
)

// Image kinds decide the folder an upload lands in and how it is shaped.
const (
	ImageKindUniversity = "university"
	ImageKindProfile    = "profile"
)

var imageShapers = map[string]func(image.Image) image.Image{
	ImageKindUniversity: fitBanner,
	ImageKindProfile:    cropAvatar,
}

// acceptedFormats maps decoder names to the MIME type a client may claim.
var acceptedFormats = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

type UploadImageInput struct {
	UserID      uint
	Kind        string
	Filename    string
	ContentType string
	Content     []byte
}

// StoredImage describes a processed upload.
type StoredImage struct {
	URL       string `json:"url"`
	Path      string `json:"-"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int    `json:"sizeBytes"`
}

// ImageService turns listing photos and avatars into WebP files under a
// content-addressed directory served at /uploads.
type ImageService struct {
	dir      string
	maxBytes int64
}

func NewImageService(cfg *config.Config) *ImageService {
	s := &ImageService{dir: DefaultImageUploadDir, maxBytes: DefaultImageMaxUploadSizeMB << 20}
	if cfg == nil {
		return s
	}
	if cfg.ImageUploadDir != "" {
		s.dir = cfg.ImageUploadDir
	}
	if cfg.ImageMaxUploadSizeMB > 0 {
		s.maxBytes = int64(cfg.ImageMaxUploadSizeMB) << 20
	}
	return s
}

// UploadDir is the directory served under /uploads.
func (s *ImageService) UploadDir() string { return s.dir }

// Upload validates, reshapes and stores an image. Identical bytes from the
// same user for the same kind resolve to the same file.
func (s *ImageService) Upload(_ context.Context, in UploadImageInput) (*StoredImage, error) {
	if in.UserID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	if in.Kind == "" {
		in.Kind = ImageKindProfile
	}
	shape, ok := imageShapers[in.Kind]
	if !ok {
		return nil, models.NewValidationError("Invalid image kind")
	}

	src, err := s.decode(in)
	if err != nil {
		return nil, err
	}
	out := shape(src)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, out, &webp.Options{Quality: WebPQuality}); err != nil {
		return nil, models.NewInternalError(err)
	}

	rel := in.Kind + "/" + contentKey(in.Kind, in.UserID, in.Content) + ".webp"
	abs := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := storeOnce(abs, buf.Bytes()); err != nil {
		return nil, models.NewInternalError(err)
	}

	b := out.Bounds()
	return &StoredImage{URL: "/uploads/" + rel, Path: abs, Width: b.Dx(), Height: b.Dy(), SizeBytes: buf.Len()}, nil
}

func (s *ImageService) decode(in UploadImageInput) (image.Image, error) {
	switch {
	case len(in.Content) == 0:
		return nil, models.NewValidationError("No file uploaded")
	case int64(len(in.Content)) > s.maxBytes:
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes>>20))
	}
	if _, ok := formatForMIME(http.DetectContentType(in.Content)); !ok {
		return nil, models.NewValidationError("Invalid image type")
	}

	img, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	want, ok := acceptedFormats[format]
	if !ok {
		return nil, models.NewValidationError("Unsupported image format")
	}
	if claimed, ok := formatForMIME(in.ContentType); ok && acceptedFormats[claimed] != want {
		return nil, models.NewValidationError("Image content type mismatch")
	}
	return img, nil
}

// formatForMIME maps a Content-Type header to a decoder name. image/jpg is
// accepted as an alias some browsers send.
func formatForMIME(contentType string) (string, bool) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = contentType
	}
	mt = strings.ToLower(strings.TrimSpace(mt))
	if mt == "image/jpg" {
		mt = "image/jpeg"
	}
	for format, m := range acceptedFormats {
		if m == mt {
			return format, true
		}
	}
	return "", false
}

func fitBanner(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= UniversityImageMaxWidth && b.Dy() <= UniversityImageMaxHeight {
		return img
	}
	return imaging.Fit(img, UniversityImageMaxWidth, UniversityImageMaxHeight, imaging.Lanczos)
}

// cropAvatar center-crops to a square and only ever scales down.
func cropAvatar(img image.Image) image.Image {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy(), AvatarSize)
	if b.Dx() == side && b.Dy() == side {
		return img
	}
	return imaging.Fill(img, side, side, imaging.Center, imaging.Lanczos)
}

func contentKey(kind string, userID uint, content []byte) string {
	h := sha256.New()
	h.Write([]byte(kind + ":" + strconv.FormatUint(uint64(userID), 10) + ":"))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// storeOnce writes data to path unless it already exists. The file appears
// atomically so concurrent identical uploads never expose a partial image.
func storeOnce(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

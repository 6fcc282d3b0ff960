// Package photos stores profile photos in S3.
//
// Uploads are size-checked, sniffed by magic bytes and fully decoded before
// anything is written, so only real images reach the bucket. Photos wider
// than MaxWidth are scaled down. Each upload gets a fresh key, so a new
// photo never overwrites a cached old one.
package photos

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decode support

	"github.com/familyhub/aniversaris/internal/config"
	"github.com/familyhub/aniversaris/internal/domain"
)

// Limits.
const (
	DefaultMaxSizeMB = 10
	MaxWidth         = 800
	jpegQuality      = 85
)

// s3API is the part of the S3 client used here.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PhotoSetter records the photo URL of a person.
type PhotoSetter interface {
	SetPhotoURL(ctx context.Context, id int64, url string) error
}

// Photo describes a stored upload.
type Photo struct {
	PersonID    int64  `json:"person_id"`
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int    `json:"size"`
}

// Store uploads photos and links them to persons.
type Store struct {
	client    s3API
	persons   PhotoSetter
	bucket    string
	region    string
	publicURL string
	maxBytes  int
	log       *zap.Logger
}

// NewS3Client creates an S3 client for cfg.
func NewS3Client(ctx context.Context, cfg config.PhotosConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

// NewStore creates a photo store.
func NewStore(client s3API, persons PhotoSetter, cfg config.PhotosConfig, log *zap.Logger) *Store {
	maxMB := cfg.MaxSizeMB
	if maxMB <= 0 {
		maxMB = DefaultMaxSizeMB
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		client:    client,
		persons:   persons,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		publicURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxBytes:  maxMB * 1024 * 1024,
		log:       log,
	}
}

// Upload validates r as an image, stores it under personas/<id>/ and
// records its URL on the person.
func (s *Store) Upload(ctx context.Context, personID int64, r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(s.maxBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if len(data) > s.maxBytes {
		return nil, &domain.ValidationError{Field: "photo", Message: fmt.Sprintf("photo exceeds %d MB", s.maxBytes/(1024*1024))}
	}

	contentType := detectContentType(data)
	if contentType == "" {
		return nil, &domain.ValidationError{Field: "photo", Message: "unsupported image type"}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.ValidationError{Field: "photo", Message: "image could not be decoded"}
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width > MaxWidth {
		resized, outType, err := resize(img, format)
		if err != nil {
			return nil, fmt.Errorf("resizing photo: %w", err)
		}
		data, contentType = resized, outType
		height = height * MaxWidth / width
		width = MaxWidth
	}

	key := fmt.Sprintf("personas/%d/%s%s", personID, uuid.NewString(), extension(contentType))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000"),
	})
	if err != nil {
		return nil, domain.Upstream("upload photo", err)
	}

	url := s.buildURL(key)
	if err := s.persons.SetPhotoURL(ctx, personID, url); err != nil {
		return nil, err
	}
	s.log.Info("photo uploaded", zap.Int64("person_id", personID), zap.String("key", key), zap.Int("bytes", len(data)))

	return &Photo{
		PersonID:    personID,
		Key:         key,
		URL:         url,
		ContentType: contentType,
		Width:       width,
		Height:      height,
		Size:        len(data),
	}, nil
}

func (s *Store) buildURL(key string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// resize scales img to MaxWidth keeping the aspect ratio. WebP has no
// encoder here, so it is re-encoded as JPEG.
func resize(img image.Image, format string) ([]byte, string, error) {
	b := img.Bounds()
	h := b.Dy() * MaxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, MaxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, dst); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	case "gif":
		if err := gif.Encode(&buf, dst, nil); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/gif", nil
	default:
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}

func detectContentType(data []byte) string {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return "image/jpeg"
	case len(data) >= 8 && data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G':
		return "image/png"
	case len(data) >= 6 && data[0] == 'G' && data[1] == 'I' && data[2] == 'F':
		return "image/gif"
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	}
	return ""
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}

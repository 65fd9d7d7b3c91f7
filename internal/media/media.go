// Package media stores product pictures with an external image host.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"lojafacil/backend/internal/domain"
)

var ErrEmptyImage = errors.New("empty image")

// Uploader returns the public URL of the stored image.
type Uploader interface {
	Upload(ctx context.Context, image domain.ImageUpload) (string, error)
}

// NoopUploader stores nothing and yields an empty URL.
type NoopUploader struct{}

func (NoopUploader) Upload(_ context.Context, _ domain.ImageUpload) (string, error) {
	return "", nil
}

// HTTPUploader posts images as multipart forms to a Cloudinary-compatible
// unsigned upload endpoint.
type HTTPUploader struct {
	client    *resty.Client
	uploadURL string
	preset    string
}

type uploadResponse struct {
	PublicID  string `json:"public_id"`
	URL       string `json:"url"`
	SecureURL string `json:"secure_url"`
}

func NewHTTPUploader(uploadURL string, preset string, timeout time.Duration) *HTTPUploader {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &HTTPUploader{
		client:    client,
		uploadURL: uploadURL,
		preset:    preset,
	}
}

func (u *HTTPUploader) Upload(ctx context.Context, image domain.ImageUpload) (string, error) {
	if len(image.Content) == 0 {
		return "", ErrEmptyImage
	}
	name := strings.TrimSpace(image.FileName)
	if name == "" {
		name = "product-image"
	}

	form := map[string]string{}
	if u.preset != "" {
		form["upload_preset"] = u.preset
	}

	var result uploadResponse
	resp, err := u.client.R().
		SetContext(ctx).
		SetFileReader("file", name, bytes.NewReader(image.Content)).
		SetFormData(form).
		SetResult(&result).
		Post(u.uploadURL)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("upload image: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	if result.SecureURL != "" {
		return result.SecureURL, nil
	}
	if result.URL != "" {
		return result.URL, nil
	}
	return "", errors.New("upload image: response carried no url")
}

// Package media moves inline post images to Cloudinary.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"goodmoments/config"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type Uploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewUploader(cfg config.Cloudinary) (*Uploader, error) {
	cld, err := cloudinary.NewFromURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	return &Uploader{cld: cld, folder: cfg.Folder}, nil
}

// IsDataURI reports whether value is an inline base64 image rather than a
// URL.
func IsDataURI(value string) bool {
	return strings.HasPrefix(value, "data:image/")
}

// Store uploads an inline image and returns its hosted URL. Anything that
// is not a data URI is returned unchanged.
func (u *Uploader) Store(ctx context.Context, value string) (string, error) {
	if !IsDataURI(value) {
		return value, nil
	}
	res, err := u.cld.Upload.Upload(ctx, value, uploader.UploadParams{
		Folder:         u.folder,
		Transformation: "c_limit,w_1600,h_1600,q_auto",
	})
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if res.Error.Message != "" {
		return "", errors.New("upload image: " + res.Error.Message)
	}
	return res.SecureURL, nil
}

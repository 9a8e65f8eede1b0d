package blogapi

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrEmptyImage is returned when an attachment has no bytes.
var ErrEmptyImage = errors.New("empty image data")

const uploadQuality = 85

// PrepareImage decodes an attachment, applies its EXIF orientation, shrinks it
// to fit within maxDim on its longest side and re-encodes it as JPEG.
// Images already within bounds are not upscaled. A maxDim <= 0 skips resizing.
func PrepareImage(name string, data []byte, maxDim int) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrEmptyImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Image{}, fmt.Errorf("decode image: %w", err)
	}
	if maxDim > 0 {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(uploadQuality)); err != nil {
		return Image{}, fmt.Errorf("encode image: %w", err)
	}
	return Image{
		Name:        jpegName(name),
		ContentType: "image/jpeg",
		Data:        buf.Bytes(),
	}, nil
}

func jpegName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "image.jpg"
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"
}

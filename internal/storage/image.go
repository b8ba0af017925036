package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path"
	"strings"

	"golang.org/x/image/draw"
)

const (
	maxCoverWidth = 1200
	jpegQuality   = 80
)

// CoverImage describes a processed post cover.
type CoverImage struct {
	Filename string
	Width    int
	Height   int
}

// ProcessCover decodes an uploaded image, scales it down to maxCoverWidth
// when wider, and re-encodes it as JPEG.
func ProcessCover(src io.Reader, originalName string) (CoverImage, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return CoverImage{}, nil, fmt.Errorf("storage: decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width > maxCoverWidth {
		scaledHeight := height * maxCoverWidth / width
		dst := image.NewRGBA(image.Rect(0, 0, maxCoverWidth, scaledHeight))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		width = maxCoverWidth
		height = scaledHeight
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return CoverImage{}, nil, fmt.Errorf("storage: encode jpeg: %w", err)
	}

	return CoverImage{
		Filename: slugifyFilename(originalName) + ".jpg",
		Width:    width,
		Height:   height,
	}, buf.Bytes(), nil
}

func slugifyFilename(name string) string {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "image"
	}
	return slug
}

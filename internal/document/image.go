package document

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// EncodeJPEG downsizes img to at most maxWidth pixels wide, keeping the
// aspect ratio, and encodes it as JPEG. maxWidth <= 0 keeps the width.
func EncodeJPEG(img image.Image, maxWidth, quality int) ([]byte, error) {
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

package faceapi

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/kozaktomas/face-search/internal/facematch"
	_ "github.com/spakin/netpbm"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var formatMIME = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// checkImage decodes data to make sure it is an image and returns its MIME type.
func checkImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty input: %w", facematch.ErrDecode)
	}

	_, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", facematch.ErrDecode, err)
	}

	if mime, ok := formatMIME[format]; ok {
		return mime, nil
	}
	// Netpbm variants (pbm, pgm, ppm, pam).
	return "image/x-portable-anymap", nil
}

package imageprocessor

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

var (
	// ErrEmptyImage is returned when no image bytes were supplied.
	ErrEmptyImage = errors.New("image payload is empty")
	// ErrDecodeFailed is returned when the payload is not a decodable image.
	ErrDecodeFailed = errors.New("image decode failed")
)

// Decoder turns an encoded image into pixels.
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// ImagingDecoder decodes with disintegration/imaging and applies EXIF orientation.
type ImagingDecoder struct{}

// Decode implements Decoder.
func (ImagingDecoder) Decode(data []byte) (image.Image, error) {
	return Decode(data)
}

// Decode reads PNG, JPEG, GIF, BMP, TIFF or WebP bytes. Phone photos carry an
// EXIF orientation tag, so the image is rotated upright before it is returned.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return img, nil
}

// DecodeBase64 decodes a base64 image payload. Padding is optional and a
// leading data URL header ("data:image/png;base64,") is stripped.
func DecodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, ErrEmptyImage
	}
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return nil, fmt.Errorf("%w: malformed data url", ErrDecodeFailed)
		}
		payload = payload[comma+1:]
	}
	payload = strings.Join(strings.Fields(payload), "")

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}

	var lastErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(payload)
		if err == nil {
			if len(data) == 0 {
				return nil, ErrEmptyImage
			}
			return data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: invalid base64: %v", ErrDecodeFailed, lastErr)
}

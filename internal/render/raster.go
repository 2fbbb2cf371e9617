package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DecodeToPNG decodes an image in any supported scan format and returns
// both the decoded image and its PNG encoding. Scanners emit JPEG, TIFF
// and occasionally BMP; downstream stages only ever see PNG.
func DecodeToPNG(data []byte) (image.Image, []byte, error) {
	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("decoding image: %w", err)
	}
	if format == "png" {
		return decoded, data, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, nil, fmt.Errorf("encoding png: %w", err)
	}
	return decoded, buf.Bytes(), nil
}

// DecodePNG decodes a PNG crop or raster back into an image.
func DecodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding png: %w", err)
	}
	return img, nil
}

package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"image"
	"image/png"
)

// SamplePNG contains the raw bytes of the embedded sample image, used as the
// default payload for the import demo and as a test fixture.
//
//go:embed sample.png
var SamplePNG []byte

// SampleImage decodes the embedded PNG into an image.Image.
func SampleImage() (image.Image, error) {
	if len(SamplePNG) == 0 {
		return nil, fmt.Errorf("embedded sample.png is empty")
	}
	img, err := png.Decode(bytes.NewReader(SamplePNG))
	if err != nil {
		return nil, err
	}
	return img, nil
}

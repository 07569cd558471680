package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// faceCropMargin expands the detector box by 20% on each side so the
// extractor sees some context around the face.
const faceCropMargin = 0.2

// faceCropSize is the square edge the crop is scaled to before embedding.
const faceCropSize = 160

// CropFace cuts the detection box (with margin) out of a JPEG frame and
// scales it to the extractor's input size.
func CropFace(frame []byte, det Detection) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	bounds := img.Bounds()
	mx := det.Width() * faceCropMargin
	my := det.Height() * faceCropMargin

	rect := image.Rect(
		clamp(int(det.BBox[0]-mx), bounds.Min.X, bounds.Max.X),
		clamp(int(det.BBox[1]-my), bounds.Min.Y, bounds.Max.Y),
		clamp(int(det.BBox[2]+mx), bounds.Min.X, bounds.Max.X),
		clamp(int(det.BBox[3]+my), bounds.Min.Y, bounds.Max.Y),
	)
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return nil, fmt.Errorf("degenerate face box %v", det.BBox)
	}

	crop := image.NewRGBA(image.Rect(0, 0, faceCropSize, faceCropSize))
	draw.CatmullRom.Scale(crop, crop.Bounds(), img, rect, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode face crop: %w", err)
	}
	return buf.Bytes(), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

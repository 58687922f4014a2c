// Package phash computes the 10x10 average perceptual hash used to recognise
// recurring CAPTCHA images, and persists hash to answer mappings.
package phash

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Size is the edge length of the downscaled image; hashes are Size*Size bits.
const Size = 10

// Compute decodes data and returns its average hash: the image is scaled to
// 10x10, converted to grayscale, and each pixel becomes '1' when brighter
// than the mean and '0' otherwise.
func Compute(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	return FromImage(img), nil
}

// FromImage hashes an already decoded image.
func FromImage(img image.Image) string {
	small := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.CatmullRom.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var gray [Size * Size]int
	total := 0
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			g := color.GrayModel.Convert(small.At(x, y)).(color.Gray)
			gray[y*Size+x] = int(g.Y)
			total += int(g.Y)
		}
	}

	// Compare against the mean without losing the fraction.
	var sb strings.Builder
	sb.Grow(Size * Size)
	for _, v := range gray {
		if v*Size*Size > total {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Similarity returns the fraction of positions at which a and b agree.
// Hashes of different length are not comparable and score 0.
func Similarity(a, b string) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	same := 0
	for i := 0; i < len(a); i++ {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / float64(len(a))
}

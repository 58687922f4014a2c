package phash

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

// gradientPNG encodes a horizontal gradient so the hash has both bit values.
func gradientPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / (w - 1))})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestCompute_Deterministic(t *testing.T) {
	data := gradientPNG(t, 120, 40)

	first, err := Compute(data)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	second, err := Compute(bytes.Clone(data))
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	if first != second {
		t.Errorf("expected identical hashes, got %s and %s", first, second)
	}
	if len(first) != Size*Size {
		t.Errorf("expected %d bits, got %d", Size*Size, len(first))
	}
	if strings.Trim(first, "01") != "" {
		t.Errorf("hash contains non-bit characters: %s", first)
	}
}

func TestCompute_GradientSplitsAtMean(t *testing.T) {
	hash, err := Compute(gradientPNG(t, 100, 100))
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	// Every row is the same left-dark, right-bright gradient.
	for row := 0; row < Size; row++ {
		line := hash[row*Size : (row+1)*Size]
		if line[0] != '0' || line[Size-1] != '1' {
			t.Errorf("row %d = %s, expected dark left and bright right", row, line)
		}
	}
}

func TestCompute_InvalidData(t *testing.T) {
	if _, err := Compute([]byte("not an image")); err == nil {
		t.Error("expected error for undecodable data")
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"1111", "1111", 1},
		{"1111", "0000", 0},
		{"1100", "1000", 0.75},
		{"1", "10", 0},
		{"", "", 0},
	}

	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); got != tt.want {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

package fingerprint

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func uniform(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func checker(w, h, cell int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func gradient(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / (w - 1))})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestSharpness(t *testing.T) {
	if got := Sharpness(uniform(32, 32, 128)); got != 0 {
		t.Errorf("uniform image sharpness = %v, want 0", got)
	}
	if got := Sharpness(uniform(2, 2, 10)); got != 0 {
		t.Errorf("tiny image sharpness = %v, want 0", got)
	}
	// A linear ramp has zero second derivative.
	if got := Sharpness(gradient(52, 16)); got > 1e-9 {
		t.Errorf("gradient sharpness = %v, want ~0", got)
	}

	fine := Sharpness(checker(64, 64, 1))
	coarse := Sharpness(checker(64, 64, 8))
	if fine <= coarse {
		t.Errorf("fine checker sharpness %v should exceed coarse %v", fine, coarse)
	}
	if coarse <= 0 {
		t.Errorf("coarse checker sharpness = %v, want > 0", coarse)
	}
}

func TestSharpness_OffsetBounds(t *testing.T) {
	img := checker(40, 40, 2)
	sub := img.SubImage(image.Rect(8, 8, 40, 40))
	if got := Sharpness(sub); got <= 0 {
		t.Errorf("sub-image sharpness = %v, want > 0", got)
	}
}

func TestHash_Deterministic(t *testing.T) {
	img := checker(64, 64, 8)

	a, err := Hash(img)
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	b, err := Hash(img)
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	if a != b {
		t.Errorf("Hash() not deterministic: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Errorf("Hash() = %q, want 16 hex digits", a)
	}
	if _, err := ParseHash(a); err != nil {
		t.Errorf("ParseHash(%q) error: %v", a, err)
	}
}

func TestCompute(t *testing.T) {
	img := checker(64, 64, 4)
	data := encodePNG(t, img)

	fp, err := Compute(context.Background(), data)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}

	wantHash, _ := Hash(img)
	if fp.Hash != wantHash {
		t.Errorf("Hash = %s, want %s", fp.Hash, wantHash)
	}
	if fp.Sharpness != Sharpness(img) {
		t.Errorf("Sharpness = %v, want %v", fp.Sharpness, Sharpness(img))
	}
}

func TestCompute_JPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, checker(64, 64, 8), nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}

	fp, err := Compute(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}
	if fp.Hash == "" || fp.Sharpness <= 0 {
		t.Errorf("Compute() = %+v, want non-empty hash and positive sharpness", fp)
	}
}

func TestCompute_DecodeError(t *testing.T) {
	if _, err := Compute(context.Background(), []byte("not an image")); err == nil {
		t.Error("Compute() expected decode error")
	}
}

func TestCompute_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Compute(ctx, encodePNG(t, checker(64, 64, 4)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Compute() error = %v, want context.Canceled", err)
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b    string
		want    int
		wantErr bool
	}{
		{"0000000000000000", "0000000000000000", 0, false},
		{"0000000000000000", "000000000000000f", 4, false},
		{"ffffffffffffffff", "0000000000000000", 64, false},
		{"8000000000000001", "0000000000000000", 2, false},
		{"undefined", "0000000000000000", 0, true},
		{"abc", "0000000000000000", 0, true},
	}

	for _, tt := range tests {
		got, err := Distance(tt.a, tt.b)
		if (err != nil) != tt.wantErr {
			t.Errorf("Distance(%s, %s) error = %v, wantErr %v", tt.a, tt.b, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidHash) {
				t.Errorf("Distance(%s, %s) error = %v, want ErrInvalidHash", tt.a, tt.b, err)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("Distance(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestVector(t *testing.T) {
	v, err := Vector("8000000000000001")
	if err != nil {
		t.Fatalf("Vector() error: %v", err)
	}
	if len(v) != HashBits {
		t.Fatalf("len = %d, want %d", len(v), HashBits)
	}
	for i, x := range v {
		want := float32(0)
		if i == 0 || i == HashBits-1 {
			want = 1
		}
		if x != want {
			t.Errorf("v[%d] = %v, want %v", i, x, want)
		}
	}
}

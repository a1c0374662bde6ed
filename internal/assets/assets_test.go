package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"testing"

	"github.com/ayusman/kundan/internal/catalog"
	"github.com/ayusman/kundan/testdata"
)

type fakeProducts map[string]*catalog.Product

func (f fakeProducts) GetByID(id string) (*catalog.Product, error) {
	p, ok := f[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

func TestLoader_LoadAndCache(t *testing.T) {
	dir := t.TempDir()
	if _, err := testdata.WritePNG(dir, "kada.png", testdata.Bangle(64, 0.6, color.NRGBA{R: 200, A: 255})); err != nil {
		t.Fatal(err)
	}
	products := fakeProducts{"p1": {ID: "p1", Kind: catalog.KindBangle, ImagePath: "kada.png"}}
	l := NewLoader(products, dir, nil)

	img, err := l.Load(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if img.Bounds().Dx() != 64 {
		t.Errorf("width = %d, want 64", img.Bounds().Dx())
	}

	again, err := l.Load(context.Background(), "p1")
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if again != img {
		t.Error("second Load() should return the cached image")
	}
	if l.Cached() != 1 {
		t.Errorf("Cached() = %d, want 1", l.Cached())
	}

	l.Invalidate("p1")
	if l.Cached() != 0 {
		t.Errorf("Cached() after Invalidate = %d", l.Cached())
	}
}

func TestLoader_ReloadsWhenPathChanges(t *testing.T) {
	dir := t.TempDir()
	testdata.WritePNG(dir, "a.png", testdata.Solid(8, 8, color.White))
	testdata.WritePNG(dir, "b.png", testdata.Solid(16, 16, color.White))

	p := &catalog.Product{ID: "p1", Kind: catalog.KindRing, ImagePath: filepath.Join(dir, "a.png")}
	l := NewLoader(fakeProducts{"p1": p}, "", nil)

	first, err := l.Load(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	p.ImagePath = filepath.Join(dir, "b.png")
	second, err := l.Load(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if first.Bounds() == second.Bounds() {
		t.Error("image should be reloaded after its path changed")
	}
}

func TestLoader_Errors(t *testing.T) {
	dir := t.TempDir()
	products := fakeProducts{
		"missing-file": {ID: "missing-file", ImagePath: "nope.png"},
	}
	l := NewLoader(products, dir, nil)

	if _, err := l.Load(context.Background(), "unknown"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("unknown product error = %v, want ErrNotFound", err)
	}
	if _, err := l.Load(context.Background(), "missing-file"); err == nil {
		t.Error("missing file should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Load(ctx, "missing-file"); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled Load() error = %v, want context.Canceled", err)
	}
}

func TestDecode(t *testing.T) {
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, testdata.Solid(10, 6, color.Gray{Y: 128}), nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		data       []byte
		wantFormat string
		wantErr    error
	}{
		{"png", testdata.PNG(testdata.Solid(4, 4, color.White)), "png", nil},
		{"jpeg", jpg.Bytes(), "jpeg", nil},
		{"garbage", []byte("not an image"), "", ErrUnsupported},
		{"too large", testdata.PNG(image.NewNRGBA(image.Rect(0, 0, MaxDimension+1, 1))), "", ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, format, err := Decode(bytes.NewReader(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if format != tt.wantFormat {
				t.Errorf("format = %q, want %q", format, tt.wantFormat)
			}
			if img.Bounds().Empty() {
				t.Error("decoded image is empty")
			}
		})
	}
}

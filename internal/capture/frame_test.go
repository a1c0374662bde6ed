package capture

import (
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/kundan/internal/detector"
	"github.com/ayusman/kundan/testdata"
)

func TestFrameFromMat(t *testing.T) {
	mat := testdata.FrameMat(64, 48, 128)
	defer mat.Close()

	hands := []detector.HandLandmarks{detector.BackOfHandLandmarks()}
	ts := time.UnixMilli(1700000000000)

	f, err := FrameFromMat(&mat, hands, ts)
	if err != nil {
		t.Fatalf("FrameFromMat() error = %v", err)
	}
	if f.Width != 64 || f.Height != 48 {
		t.Errorf("size = %dx%d, want 64x48", f.Width, f.Height)
	}
	if f.Timestamp != ts.UnixMilli() {
		t.Errorf("Timestamp = %d", f.Timestamp)
	}
	if len(f.Hands) != 1 {
		t.Errorf("len(Hands) = %d, want 1", len(f.Hands))
	}
	if !f.Valid() {
		t.Error("frame should be valid")
	}
	r, g, b, _ := f.Image.At(10, 10).RGBA()
	if r>>8 != 128 || g>>8 != 128 || b>>8 != 128 {
		t.Errorf("pixel = %d,%d,%d, want gray 128", r>>8, g>>8, b>>8)
	}
}

func TestFrameFromMat_Empty(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	if _, err := FrameFromMat(&empty, nil, time.Now()); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("error = %v, want ErrEmptyFrame", err)
	}
	if _, err := FrameFromMat(nil, nil, time.Now()); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("nil mat error = %v, want ErrEmptyFrame", err)
	}
	if (Frame{}).Valid() {
		t.Error("zero frame should not be valid")
	}
}

func TestMockCamera_Playback(t *testing.T) {
	frame1 := testdata.FrameMat(64, 48, 0)
	defer frame1.Close()
	frame2 := testdata.FrameMat(64, 48, 255)
	defer frame2.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame1, &frame2}, false)

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("read before Open error = %v, want ErrCameraNotOpen", err)
	}
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	for i := 0; i < 2; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() %d error = %v", i, err)
		}
		f.Close()
	}
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrNoFrames) {
		t.Errorf("error after playback = %v, want ErrNoFrames", err)
	}
	if cam.Reads() != 2 {
		t.Errorf("Reads() = %d, want 2", cam.Reads())
	}
}

func TestMockCamera_Loop(t *testing.T) {
	frame := testdata.FrameMat(32, 32, 0)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)
	cam.Open()
	defer cam.Close()

	for i := 0; i < 5; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() iteration %d error = %v", i, err)
		}
		f.Close()
	}
}

func TestMockCamera_OpenError(t *testing.T) {
	cam := NewMockCamera(nil, false)
	fault := errors.New("permission denied")
	cam.SetOpenError(fault)

	if err := cam.Open(); !errors.Is(err, fault) {
		t.Errorf("Open() error = %v, want %v", err, fault)
	}
	if cam.IsOpen() {
		t.Error("camera should stay closed after a failed Open")
	}
}

package inference

import (
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/config"
)

func TestSkipFrame(t *testing.T) {
	tests := []struct {
		frames, skip int
		want         bool
	}{
		{1, 0, false},
		{1, 1, false},
		{1, 3, true},
		{2, 3, true},
		{3, 3, false},
		{6, 3, false},
	}
	for _, tt := range tests {
		if got := skipFrame(tt.frames, tt.skip); got != tt.want {
			t.Errorf("skipFrame(%d, %d) = %v, want %v", tt.frames, tt.skip, got, tt.want)
		}
	}
}

func TestDecodeRows(t *testing.T) {
	labels := []string{"person", "tiger"}
	data := []float32{
		// tiger centered at (320, 320), 100x200, objectness 0.9
		320, 320, 100, 200, 0.9, 0.1, 0.8,
		// below objectness threshold
		100, 100, 10, 10, 0.1, 0.9, 0.0,
		// person with low class score
		50, 50, 20, 40, 0.9, 0.2, 0.0,
	}

	got := decodeRows(data, 7, labels, 0.25, 2, 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	c := got[0]
	if c.label != "tiger" {
		t.Errorf("label = %q", c.label)
	}
	if c.score < 0.71 || c.score > 0.73 {
		t.Errorf("score = %v, want 0.72", c.score)
	}
	// x is scaled by 2, y by 1
	if c.rect.Dx() != 200 || c.rect.Dy() != 200 || c.rect.Min.X != 540 || c.rect.Min.Y != 220 {
		t.Errorf("rect = %v", c.rect)
	}
}

func TestFakeReplaysScript(t *testing.T) {
	svc := NewFake(3, 2,
		model.RawDetection{Category: "tiger", Confidence: 0.9},
		model.RawDetection{Category: "deer", Confidence: 0.7},
	)
	defer svc.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	camera := model.Camera{ID: "cam-7"}

	var got []string
	for i := 0; i < 6; i++ {
		dets, err := svc.Detect(camera, frame)
		if err != nil {
			t.Fatal(err)
		}
		for _, d := range dets {
			if d.CameraID != "cam-7" {
				t.Errorf("camera id not set: %+v", d)
			}
			got = append(got, d.Category)
		}
	}
	if len(got) != 3 || got[0] != "tiger" || got[1] != "deer" || got[2] != "tiger" {
		t.Errorf("replayed %v", got)
	}
	if !svc.CanSkipFrame(1) || svc.CanSkipFrame(3) {
		t.Error("frame skipping not applied")
	}
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coco.names")
	if err := os.WriteFile(path, []byte("person\r\nbicycle\ncar\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	labels, err := loadLabels(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(labels) != 3 || labels[0] != "person" || labels[2] != "car" {
		t.Errorf("labels = %q", labels)
	}
	if _, err := loadLabels(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing labels")
	}
}

func TestNewYoloMissingModel(t *testing.T) {
	_, err := NewYolo(config.StreamerParameters{ModelPath: filepath.Join(t.TempDir(), "none.onnx")}, 1, 1)
	if err == nil {
		t.Error("expected error for missing model")
	}
}

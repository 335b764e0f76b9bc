package inference

import (
	"fmt"
	"image"
	"os"
	"strings"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/wildwatch-go/model"
	"github.com/khaledhikmat/wildwatch-go/service/config"
)

// yoloService runs a YOLOv5 ONNX model through the OpenCV DNN module.
// gocv.Net is not safe for concurrent use, so the service keeps one net per
// worker in a pool.
type yoloService struct {
	params    config.StreamerParameters
	frameSkip int
	labels    []string
	nets      chan *gocv.Net
	size      int
}

func NewYolo(params config.StreamerParameters, frameSkip, workers int) (IService, error) {
	if _, err := os.Stat(params.ModelPath); err != nil {
		return nil, fmt.Errorf("yolo model %s: %w", params.ModelPath, err)
	}

	labels, err := loadLabels(params.LabelsPath)
	if err != nil {
		return nil, err
	}

	if params.InputSize <= 0 {
		params.InputSize = 640
	}
	if workers <= 0 {
		workers = 1
	}

	svc := &yoloService{
		params:    params,
		frameSkip: frameSkip,
		labels:    labels,
		nets:      make(chan *gocv.Net, workers),
		size:      workers,
	}

	for i := 0; i < workers; i++ {
		net := gocv.ReadNet(params.ModelPath, "")
		if net.Empty() {
			svc.Close()
			return nil, fmt.Errorf("error reading yolo model %s", params.ModelPath)
		}
		if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
			net.Close()
			svc.Close()
			return nil, fmt.Errorf("error setting backend: %w", err)
		}
		if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
			net.Close()
			svc.Close()
			return nil, fmt.Errorf("error setting target: %w", err)
		}
		svc.nets <- &net
	}

	return svc, nil
}

func (svc *yoloService) Detect(camera model.Camera, frame gocv.Mat) ([]model.RawDetection, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	net := <-svc.nets
	defer func() { svc.nets <- net }()

	in := svc.params.InputSize
	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(in, in), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	net.SetInput(blob, "")
	output := net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected DNN output dims: %v", dims)
	}

	reshaped := output.Reshape(1, dims[1])
	defer reshaped.Close()
	if reshaped.Empty() || reshaped.Cols() < 5+len(svc.labels) {
		return nil, fmt.Errorf("unexpected DNN output shape %dx%d", reshaped.Rows(), reshaped.Cols())
	}

	data, err := reshaped.DataPtrFloat32()
	if err != nil {
		return nil, err
	}

	candidates := decodeRows(data, reshaped.Cols(), svc.labels, svc.params.ObjectConfidenceThreshold,
		float32(frame.Cols())/float32(in), float32(frame.Rows())/float32(in))
	if len(candidates) == 0 {
		return nil, nil
	}

	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		boxes[i] = c.rect
		scores[i] = c.score
	}
	keep := gocv.NMSBoxes(boxes, scores, svc.params.ObjectConfidenceThreshold, svc.params.NMSThreshold)

	detections := make([]model.RawDetection, 0, len(keep))
	for _, i := range keep {
		c := candidates[i]
		detections = append(detections, model.RawDetection{
			CameraID:   camera.ID,
			Category:   c.label,
			Confidence: float64(c.score),
			Box: model.BBox{
				X:      c.rect.Min.X,
				Y:      c.rect.Min.Y,
				Width:  c.rect.Dx(),
				Height: c.rect.Dy(),
			},
		})
	}
	return detections, nil
}

func (svc *yoloService) CanSkipFrame(frames int) bool {
	return skipFrame(frames, svc.frameSkip)
}

func (svc *yoloService) Close() error {
	for {
		select {
		case net := <-svc.nets:
			net.Close()
		default:
			return nil
		}
	}
}

type candidate struct {
	label string
	score float32
	rect  image.Rectangle
}

// decodeRows parses YOLOv5 rows of [cx, cy, w, h, objectness, class scores...]
// given in input pixels and scales them to frame pixels.
func decodeRows(data []float32, cols int, labels []string, threshold, scaleX, scaleY float32) []candidate {
	var out []candidate
	for off := 0; off+cols <= len(data); off += cols {
		row := data[off : off+cols]
		objectness := row[4]
		if objectness < threshold {
			continue
		}

		classID, classScore := -1, float32(0)
		for j, s := range row[5 : 5+len(labels)] {
			if s > classScore {
				classID, classScore = j, s
			}
		}
		score := objectness * classScore
		if classID < 0 || score < threshold {
			continue
		}

		cx, cy := row[0]*scaleX, row[1]*scaleY
		w, h := row[2]*scaleX, row[3]*scaleY
		x, y := int(cx-w/2), int(cy-h/2)
		out = append(out, candidate{
			label: labels[classID],
			score: score,
			rect:  image.Rect(x, y, x+int(w), y+int(h)),
		})
	}
	return out
}

func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("labels %s: %w", path, err)
	}

	var labels []string
	for _, l := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		labels = append(labels, strings.TrimSpace(l))
	}
	return labels, nil
}

//go:build gocv

package detector

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"liveview/internal/config"
	"liveview/internal/log"
	"liveview/internal/models"
)

func init() {
	Register("yolo", func(cfg config.DetectorConfig) (Detector, error) {
		y := DefaultYOLOConfig()
		if cfg.ModelPath != "" {
			y.ModelPath = cfg.ModelPath
		}
		return NewYOLO(y)
	})
}

// YOLOConfig holds YOLOv8 ONNX model settings.
type YOLOConfig struct {
	ModelPath        string
	ConfidenceThresh float32
	NMSThresh        float32
	InputWidth       int
	InputHeight      int
}

func DefaultYOLOConfig() YOLOConfig {
	return YOLOConfig{
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
	}
}

// YOLODetector runs a YOLOv8 model in-process with OpenCV's DNN module.
type YOLODetector struct {
	mu        sync.Mutex
	net       gocv.Net
	config    YOLOConfig
	inputSize image.Point
}

func NewYOLO(cfg YOLOConfig) (*YOLODetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model file %s", cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, errors.Errorf("failed to load YOLO model from %s", cfg.ModelPath)
	}
	_ = net.SetPreferableBackend(gocv.NetBackendDefault)
	_ = net.SetPreferableTarget(gocv.NetTargetCPU)

	log.Info("yolo model loaded", "path", cfg.ModelPath)
	return &YOLODetector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

func (d *YOLODetector) Detect(ctx context.Context, frame image.Image, maxResults int) ([]models.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, errors.Wrap(err, "convert frame")
	}
	defer img.Close()
	if img.Empty() {
		return nil, errors.New("empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	dets := d.parseOutput(output, float32(img.Cols()), float32(img.Rows()))
	return Rank(dets, maxResults), nil
}

// parseOutput decodes the [1, 84, N] YOLOv8 tensor: 4 box values (centre
// x, centre y, width, height in input pixels) then 80 class scores.
func (d *YOLODetector) parseOutput(output gocv.Mat, imgW, imgH float32) []models.RawDetection {
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil
	}
	cols, rows := sizes[1], sizes[2]

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil
	}

	sx := imgW / float32(d.config.InputWidth)
	sy := imgH / float32(d.config.InputHeight)

	var boxes []image.Rectangle
	var scores []float32
	var classIDs []int

	for i := 0; i < rows; i++ {
		best := float32(0)
		classID := 0
		for c := 4; c < cols; c++ {
			if s := data[c*rows+i]; s > best {
				best = s
				classID = c - 4
			}
		}
		if best < d.config.ConfidenceThresh {
			continue
		}

		cx, cy := data[i], data[rows+i]
		w, h := data[2*rows+i], data[3*rows+i]

		boxes = append(boxes, image.Rect(
			int((cx-w/2)*sx), int((cy-h/2)*sy),
			int((cx+w/2)*sx), int((cy+h/2)*sy),
		))
		scores = append(scores, best)
		classIDs = append(classIDs, classID)
	}
	if len(boxes) == 0 {
		return nil
	}

	keep := gocv.NMSBoxes(boxes, scores, d.config.ConfidenceThresh, d.config.NMSThresh)
	out := make([]models.RawDetection, 0, len(keep))
	for _, idx := range keep {
		b := boxes[idx]
		out = append(out, models.RawDetection{
			Label:      COCOLabel(classIDs[idx]),
			Confidence: float64(scores[idx]),
			Box: models.Box{
				X:      float64(b.Min.X),
				Y:      float64(b.Min.Y),
				Width:  float64(b.Dx()),
				Height: float64(b.Dy()),
			},
		})
	}
	return out
}

func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

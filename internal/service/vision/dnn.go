package vision

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"inventorycounter/internal/config"
	"inventorycounter/internal/dto"
	"inventorycounter/internal/logger"
)

// DNNDetector runs an SSD MobileNet COCO model in-process. It is the offline
// alternative to the hosted detection service.
type DNNDetector struct {
	mu     sync.Mutex
	net    gocv.Net
	logger *logger.Logger
}

// NewDNNDetector loads the model and config named in cfg.
func NewDNNDetector(cfg *config.Config, logger *logger.Logger) (*DNNDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if _, err := os.Stat(cfg.ModelConfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", cfg.ModelConfigPath)
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ModelConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	logger.Info("🤖 Local detection network initialized from %s", cfg.ModelPath)
	return &DNNDetector{net: net, logger: logger}, nil
}

// Detect decodes the frame, runs the network and converts each output row
// [batch, class, confidence, x1, y1, x2, y2] into a center-form detection in pixels.
func (d *DNNDetector) Detect(ctx context.Context, jpeg []byte) ([]dto.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	cols := float64(mat.Cols())
	rows := float64(mat.Rows())

	reshaped := output.Reshape(1, output.Total()/7)
	defer reshaped.Close()

	var detections []dto.Detection
	for i := 0; i < reshaped.Rows(); i++ {
		confidence := float64(reshaped.GetFloatAt(i, 2))
		if confidence <= 0 {
			continue
		}
		classID := int(reshaped.GetFloatAt(i, 1))
		x1 := float64(reshaped.GetFloatAt(i, 3)) * cols
		y1 := float64(reshaped.GetFloatAt(i, 4)) * rows
		x2 := float64(reshaped.GetFloatAt(i, 5)) * cols
		y2 := float64(reshaped.GetFloatAt(i, 6)) * rows

		detections = append(detections, dto.Detection{
			Class:      cocoLabel(classID),
			Confidence: min(confidence, 1),
			X:          (x1 + x2) / 2,
			Y:          (y1 + y2) / 2,
			Width:      x2 - x1,
			Height:     y2 - y1,
		})
	}

	d.logger.Debug("Local detector found %d object(s)", len(detections))
	return detections, nil
}

// Close releases the network.
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// cocoLabel maps SSD COCO class IDs to names for the objects worth stocking.
func cocoLabel(classID int) string {
	labels := map[int]string{
		44: "bottle",
		46: "wine glass",
		47: "cup",
		48: "fork",
		49: "knife",
		50: "spoon",
		51: "bowl",
		52: "banana",
		53: "apple",
		54: "sandwich",
		55: "orange",
		56: "broccoli",
		57: "carrot",
		73: "laptop",
		74: "mouse",
		76: "keyboard",
		77: "cell phone",
		84: "book",
		85: "clock",
		87: "scissors",
	}

	if label, exists := labels[classID]; exists {
		return label
	}
	return fmt.Sprintf("unknown%d", classID)
}

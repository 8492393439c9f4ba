package vision

import (
	"fmt"
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"inventorycounter/internal/config"
	"inventorycounter/internal/dto"
	"inventorycounter/internal/logger"
)

// Camera reads frames from a local capture device and encodes them as JPEG
// scaled so the long side is at most uploadSize.
type Camera struct {
	mu         sync.Mutex
	capture    *gocv.VideoCapture
	frame      gocv.Mat
	uploadSize int
	quality    int
	seq        uint64
	logger     *logger.Logger
}

// OpenCamera opens cfg.CameraDevice and applies the requested size and rate.
func OpenCamera(cfg *config.Config, logger *logger.Logger) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(cfg.CameraDevice)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", cfg.CameraDevice, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.FrameWidth))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.FrameHeight))
	capture.Set(gocv.VideoCaptureFPS, float64(cfg.FrameRate))

	logger.Info("📷 Camera %d opened (%dx%d @ %d fps)", cfg.CameraDevice, cfg.FrameWidth, cfg.FrameHeight, cfg.FrameRate)

	return &Camera{
		capture:    capture,
		frame:      gocv.NewMat(),
		uploadSize: cfg.UploadSize,
		quality:    cfg.JPEGQuality,
		logger:     logger,
	}, nil
}

// NextFrame grabs and encodes one frame. ok is false on a capture miss.
func (c *Camera) NextFrame() (dto.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ok := c.capture.Read(&c.frame); !ok || c.frame.Empty() {
		return dto.Frame{}, false
	}

	encoded, width, height, err := c.encode(c.frame)
	if err != nil {
		c.logger.Warning("Failed to encode frame: %v", err)
		return dto.Frame{}, false
	}

	c.seq++
	return dto.Frame{
		JPEG:      encoded,
		Seq:       c.seq,
		Timestamp: time.Now(),
		Width:     width,
		Height:    height,
	}, true
}

func (c *Camera) encode(mat gocv.Mat) ([]byte, int, int, error) {
	src := mat
	if longSide := max(mat.Cols(), mat.Rows()); c.uploadSize > 0 && longSide != c.uploadSize {
		scale := float64(c.uploadSize) / float64(longSide)
		resized := gocv.NewMat()
		defer resized.Close()
		if err := gocv.Resize(mat, &resized, image.Point{}, scale, scale, gocv.InterpolationArea); err != nil {
			return nil, 0, 0, fmt.Errorf("failed to resize frame: %w", err)
		}
		src = resized
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, src, []int{int(gocv.IMWriteJpegQuality), c.quality})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, src.Cols(), src.Rows(), nil
}

// Close releases the device.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frame.Close()
	return c.capture.Close()
}

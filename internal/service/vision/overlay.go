package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"inventorycounter/internal/dto"
)

var overlayGreen = color.RGBA{R: 0, G: 255, B: 0, A: 0}

// Annotate draws a box and "class (NN.N%)" label for every detection at or
// above minConfidence and returns the re-encoded JPEG.
func Annotate(jpeg []byte, detections []dto.Detection, minConfidence float64) ([]byte, error) {
	mat, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	for _, det := range dto.FilterByConfidence(detections, minConfidence) {
		halfW, halfH := det.Width/2, det.Height/2
		rect := image.Rect(int(det.X-halfW), int(det.Y-halfH), int(det.X+halfW), int(det.Y+halfH))
		if err := gocv.Rectangle(&mat, rect, overlayGreen, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}

		label := fmt.Sprintf("%s (%.1f%%)", det.Class, det.Confidence*100)
		pt := image.Pt(rect.Min.X, rect.Min.Y-10)
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, 0.5, overlayGreen, 2); err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

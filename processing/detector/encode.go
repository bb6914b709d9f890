package detector

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"liveview/internal/models"
)

const jpegQuality = 85

// upload is an encoded frame plus the factors that map boxes found on it
// back to the original frame.
type upload struct {
	data   []byte
	width  int
	height int
	sx, sy float64
}

// encodeFrame JPEG-encodes frame, first shrinking it so its longer side is
// at most maxSide. A non-positive maxSide keeps the original size.
func encodeFrame(frame image.Image, maxSide int) (upload, error) {
	b := frame.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return upload{}, errors.New("encode: empty frame")
	}

	img := frame
	long := max(b.Dx(), b.Dy())
	if maxSide > 0 && long > maxSide {
		if b.Dx() >= b.Dy() {
			img = resize.Resize(uint(maxSide), 0, frame, resize.Bilinear)
		} else {
			img = resize.Resize(0, uint(maxSide), frame, resize.Bilinear)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return upload{}, errors.Wrap(err, "jpeg encode")
	}

	sent := img.Bounds()
	return upload{
		data:   buf.Bytes(),
		width:  sent.Dx(),
		height: sent.Dy(),
		sx:     float64(b.Dx()) / float64(sent.Dx()),
		sy:     float64(b.Dy()) / float64(sent.Dy()),
	}, nil
}

// toNative maps boxes from the uploaded image back to frame pixels in place.
func (u upload) toNative(dets []models.RawDetection) []models.RawDetection {
	if u.sx == 1 && u.sy == 1 {
		return dets
	}
	for i := range dets {
		dets[i].Box = dets[i].Box.Scale(u.sx, u.sy)
	}
	return dets
}

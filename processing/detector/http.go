package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"liveview/internal/config"
	"liveview/internal/models"
)

func init() {
	Register("http", func(cfg config.DetectorConfig) (Detector, error) {
		return NewHTTPDetector(cfg.Address, timeoutOf(cfg), cfg.UploadMaxSide), nil
	})
}

// HTTPDetector posts each frame as a multipart upload to a predict endpoint.
type HTTPDetector struct {
	predictURL    string
	uploadMaxSide int
	client        *http.Client
}

// NewHTTPDetector accepts a bare host:port, which is expanded to
// http://host:port/predict, or a full URL.
func NewHTTPDetector(address string, timeout time.Duration, uploadMaxSide int) *HTTPDetector {
	u := address
	if !strings.Contains(u, "://") {
		u = "http://" + strings.TrimSuffix(u, "/") + "/predict"
	}
	return &HTTPDetector{
		predictURL:    u,
		uploadMaxSide: uploadMaxSide,
		client:        &http.Client{Timeout: timeout},
	}
}

type predictResponse struct {
	Detections []models.RawDetection `json:"detections"`
	Success    *bool                 `json:"success"`
	Message    string                `json:"message"`
	Error      string                `json:"error"`
}

func (d *HTTPDetector) Detect(ctx context.Context, frame image.Image, maxResults int) ([]models.RawDetection, error) {
	up, err := encodeFrame(frame, d.uploadMaxSide)
	if err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, errors.Wrap(err, "create form file")
	}
	if _, err := part.Write(up.data); err != nil {
		return nil, errors.Wrap(err, "copy image data")
	}
	if err := writer.WriteField("max_results", strconv.Itoa(maxResults)); err != nil {
		return nil, errors.Wrap(err, "write max_results")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.predictURL, body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	var result predictResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode != http.StatusOK {
		if result.Error != "" {
			return nil, errors.Errorf("inference failed with status %d: %s", resp.StatusCode, result.Error)
		}
		return nil, errors.Errorf("inference failed with status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, errors.Wrap(decodeErr, "decode response")
	}
	if result.Success != nil && !*result.Success {
		return nil, errors.Errorf("inference rejected frame: %s", result.Message)
	}

	return Rank(up.toNative(result.Detections), maxResults), nil
}

// Health checks that the inference service answers on /health.
func (d *HTTPDetector) Health(ctx context.Context) error {
	u := strings.TrimSuffix(d.predictURL, "/predict") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "health")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("ml service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

func (d *HTTPDetector) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

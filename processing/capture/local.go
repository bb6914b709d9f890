package capture

import (
	"encoding/json"
	"os/exec"
	"time"

	"github.com/pkg/errors"
)

const standardFps uint = 30

// NewFileStreamer plays a video file through ffmpeg at fps frames per
// second. A zero width or height keeps the file's own resolution.
func NewFileStreamer(path string, fps uint, width, height int) (VideoStreamer, error) {
	if width <= 0 || height <= 0 {
		w, h, err := probeVideoDimensions(path)
		if err != nil {
			return nil, errors.Wrap(err, "probe video")
		}
		width, height = w, h
	}
	if fps == 0 {
		fps = standardFps
	}
	s := newFFmpegStreamer("file "+path, []string{"-i", path}, fps, width, height)
	s.pace = time.Second / time.Duration(fps)
	return s, nil
}

type probeData struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
}

func probeVideoDimensions(path string) (int, int, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, 0, err
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (int, int, error) {
	var data probeData
	if err := json.Unmarshal(output, &data); err != nil {
		return 0, 0, err
	}

	if len(data.Streams) == 0 {
		return 0, 0, errors.New("no video streams found")
	}

	return data.Streams[0].Width, data.Streams[0].Height, nil
}

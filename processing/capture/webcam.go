package capture

import (
	"bytes"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
)

// NewWebcamStreamer captures from a camera device through ffmpeg. The device
// is a dshow name on Windows, an avfoundation index on macOS and a v4l2 node
// elsewhere.
func NewWebcamStreamer(device string, fps uint, width, height int) VideoStreamer {
	var input []string
	switch runtime.GOOS {
	case "windows":
		input = []string{"-f", "dshow", "-i", "video=" + device}
	case "darwin":
		input = []string{"-f", "avfoundation", "-framerate", "30", "-i", device}
	default:
		input = []string{"-f", "v4l2", "-i", device}
	}

	s := newFFmpegStreamer("webcam "+device, input, fps, width, height)
	s.dropLate = true
	return s
}

var dshowVideoDevice = regexp.MustCompile(`"([^"]+)"\s+\(video\)`)

// ListCameras returns the capture devices ffmpeg can open. An empty list
// means no camera is available.
func ListCameras() ([]string, error) {
	if runtime.GOOS == "windows" {
		cmd := exec.Command("ffmpeg", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		// ffmpeg always exits non-zero for the dummy input
		_ = cmd.Run()
		return parseDshowDevices(stderr.String()), nil
	}

	nodes, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	sort.Strings(nodes)
	return nodes, nil
}

func parseDshowDevices(output string) []string {
	var cameras []string
	seen := make(map[string]bool)
	for _, m := range dshowVideoDevice.FindAllStringSubmatch(output, -1) {
		name := m[1]
		if name != "dummy" && !seen[name] {
			cameras = append(cameras, name)
			seen[name] = true
		}
	}
	return cameras
}

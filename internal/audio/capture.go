package audio

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"

	apperrors "github.com/speaklarity/platform/internal/errors"
)

const framesPerBuffer = 1024

// Recorder captures mono audio from an input device.
type Recorder struct {
	sampleRate int
	device     string
}

// NewRecorder creates a recorder. An empty device name selects the default input.
func NewRecorder(sampleRate int, device string) *Recorder {
	return &Recorder{sampleRate: sampleRate, device: device}
}

// Record captures until d elapses or ctx is cancelled, whichever comes first.
// A non-positive d records until cancellation.
func (r *Recorder) Record(ctx context.Context, d time.Duration) (Clip, error) {
	if err := portaudio.Initialize(); err != nil {
		return Clip{}, apperrors.Wrap(err, apperrors.Unavailable, "initialize audio")
	}
	defer func() { _ = portaudio.Terminate() }()

	dev, err := r.inputDevice()
	if err != nil {
		return Clip{}, err
	}

	buf := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(r.sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}, buf)
	if err != nil {
		return Clip{}, apperrors.Wrapf(err, apperrors.Unavailable, "open input %q", dev.Name)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return Clip{}, apperrors.Wrapf(err, apperrors.Unavailable, "start input %q", dev.Name)
	}
	defer func() { _ = stream.Stop() }()

	slog.Info("recording started", "device", dev.Name, "sample_rate", r.sampleRate)

	limit := 0
	if d > 0 {
		limit = int(d.Seconds() * float64(r.sampleRate))
	}
	var samples []float32
	for limit == 0 || len(samples) < limit {
		if ctx.Err() != nil {
			break
		}
		if err := stream.Read(); err != nil {
			slog.Debug("audio read error", "device", dev.Name, "error", err)
			break
		}
		samples = append(samples, buf...)
	}
	if limit > 0 && len(samples) > limit {
		samples = samples[:limit]
	}
	if len(samples) == 0 {
		return Clip{}, apperrors.New(apperrors.AudioEmptyInput, "no audio captured")
	}

	slog.Info("recording stopped", "device", dev.Name, "seconds", float64(len(samples))/float64(r.sampleRate))
	return Clip{Samples: samples, Rate: r.sampleRate}, nil
}

func (r *Recorder) inputDevice() (*portaudio.DeviceInfo, error) {
	if r.device != "" {
		devices, err := portaudio.Devices()
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.Unavailable, "list audio devices")
		}
		if dev := matchDevice(devices, r.device); dev != nil {
			return dev, nil
		}
		slog.Warn("input device not found, using default", "device", r.device)
	}
	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unavailable, "no default input device")
	}
	return dev, nil
}

// matchDevice returns the first input-capable device whose name contains want,
// ignoring case.
func matchDevice(devices []*portaudio.DeviceInfo, want string) *portaudio.DeviceInfo {
	want = strings.ToLower(want)
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 {
			continue
		}
		if strings.Contains(strings.ToLower(dev.Name), want) {
			return dev
		}
	}
	return nil
}

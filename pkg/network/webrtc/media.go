package webrtc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/xid"
	"github.com/wirecall/wirecall/pkg/client"
	"github.com/wirecall/wirecall/pkg/logger"
)

var ErrNoMedia = errors.New("no media requested")

// Opus silence frame.
var silence = []byte{0xf8, 0xff, 0xfe}

const frameDuration = 20 * time.Millisecond

// Source provides the frames of a synthetic track, nil skips the frame.
type Source func(kind string) []byte

// SilentSource sends silence and no video frames.
func SilentSource(kind string) []byte {
	if kind == client.KindAudio {
		return silence
	}
	return nil
}

// Devices are headless media devices.
// Their tracks are fed from the source.
type Devices struct {
	Source Source
	log    *logger.Logger
}

func NewDevices(source Source, log *logger.Logger) *Devices {
	if source == nil {
		source = SilentSource
	}
	return &Devices{Source: source, log: log.Module("media")}
}

func (d *Devices) GetUserMedia(ctx context.Context, c client.Constraints) (client.MediaStream, error) {
	if !c.Audio && !c.Video {
		return nil, ErrNoMedia
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stream := &Stream{id: xid.New().String(), done: make(chan struct{})}
	if c.Audio {
		t, err := newTrack(client.KindAudio, webrtc.MimeTypeOpus, stream.id)
		if err != nil {
			return nil, err
		}
		stream.tracks = append(stream.tracks, t)
	}
	if c.Video {
		t, err := newTrack(client.KindVideo, webrtc.MimeTypeVP8, stream.id)
		if err != nil {
			return nil, err
		}
		stream.tracks = append(stream.tracks, t)
	}
	go stream.pump(d.Source, d.log)
	return stream, nil
}

// Stream is a set of synthetic tracks.
type Stream struct {
	id     string
	tracks []*Track
	once   sync.Once
	done   chan struct{}
}

func (s *Stream) Tracks() []client.Track {
	out := make([]client.Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *Stream) Stop() {
	s.once.Do(func() { close(s.done) })
	for _, t := range s.tracks {
		t.Stop()
	}
}

func (s *Stream) pump(source Source, log *logger.Logger) {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			for _, t := range s.tracks {
				frame := source(t.kind)
				if frame == nil {
					continue
				}
				if err := t.WriteSample(frame, frameDuration); err != nil {
					log.Error().Err(err).Msgf("%v track", t.kind)
				}
			}
		}
	}
}

type Track struct {
	kind    string
	local   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
	stopped atomic.Bool
}

func newTrack(kind, mime, stream string) (*Track, error) {
	local, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, kind, stream)
	if err != nil {
		return nil, err
	}
	t := &Track{kind: kind, local: local}
	t.enabled.Store(true)
	return t, nil
}

func (t *Track) Kind() string             { return t.kind }
func (t *Track) Enabled() bool            { return t.enabled.Load() }
func (t *Track) SetEnabled(on bool)       { t.enabled.Store(on) }
func (t *Track) Stop()                    { t.stopped.Store(true) }
func (t *Track) Stopped() bool            { return t.stopped.Load() }
func (t *Track) Local() webrtc.TrackLocal { return t.local }

// WriteSample sends the frame unless the track is muted or stopped.
func (t *Track) WriteSample(data []byte, d time.Duration) error {
	if !t.Enabled() || t.Stopped() {
		return nil
	}
	return t.local.WriteSample(media.Sample{Data: data, Duration: d})
}

package config

import (
	"time"

	flag "github.com/spf13/pflag"
)

type PeerConfig struct {
	Peer   Peer
	Webrtc Webrtc
}

type Peer struct {
	Debug    bool
	Address  string `default:"ws://localhost:8000/ws"`
	Identity struct {
		Id     string
		Name   string
		Avatar string
	}
	// AutoAccept answers every incoming call.
	AutoAccept bool
	// EndedDelay is how long the ended call stays on the screen.
	EndedDelay time.Duration `default:"2s"`
	NoAudio    bool
	NoVideo    bool
}

func NewPeerConfig(path string) (conf PeerConfig, file string, err error) {
	file, err = LoadConfig(&conf, path)
	return
}

func (c *PeerConfig) WithFlags(fs *flag.FlagSet) {
	fs.BoolVarP(&c.Peer.Debug, "debug", "d", c.Peer.Debug, "Verbose logs")
	fs.StringVar(&c.Peer.Address, "address", c.Peer.Address, "Coordinator websocket address")
	fs.StringVar(&c.Peer.Identity.Id, "id", c.Peer.Identity.Id, "User id")
	fs.StringVar(&c.Peer.Identity.Name, "name", c.Peer.Identity.Name, "User display name")
	fs.BoolVar(&c.Peer.AutoAccept, "auto-accept", c.Peer.AutoAccept, "Accept incoming calls")
	fs.BoolVar(&c.Peer.NoAudio, "no-audio", c.Peer.NoAudio, "Do not send audio")
	fs.BoolVar(&c.Peer.NoVideo, "no-video", c.Peer.NoVideo, "Do not send video")
	fs.String(PathFlag, "", "Set custom configuration file directory")
}

package config

import "strings"

// Webrtc is the pion setup of the peers.
type Webrtc struct {
	DisableDefaultInterceptors bool
	IceServers                 []IceServer
	// IcePorts limit the ephemeral UDP ports of the ICE candidates.
	IcePorts PortRange
	// IceIpMap is the public IP put into the host candidates.
	IceIpMap string
	// SinglePort muxes all the connections through one UDP port.
	SinglePort int
	// IncludeLoopback gathers the loopback candidates for the peers on one host.
	IncludeLoopback bool
	LogLevel        int `default:"2"`
}

type PortRange struct {
	Min uint16
	Max uint16
}

// IceServer is a STUN or TURN server,
// Urls may have many comma-separated addresses.
type IceServer struct {
	Urls       string `json:"urls,omitempty"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

func (s IceServer) URLs() []string {
	var out []string
	for _, u := range strings.Split(s.Urls, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func (w *Webrtc) HasPortRange() bool  { return w.IcePorts.Min > 0 && w.IcePorts.Max >= w.IcePorts.Min }
func (w *Webrtc) HasSinglePort() bool { return w.SinglePort > 0 }
func (w *Webrtc) HasIceIpMap() bool   { return w.IceIpMap != "" }

// Package rtc builds the WebRTC configuration handed to browser clients.
// The relay never opens a PeerConnection itself.
package rtc

import (
	"strings"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/videochat/internal/config"
)

func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{
			URLs: []string{"stun:stun.l.google.com:19302"},
		},
	}
}

// ICEConfig is the body served to clients before they create their PeerConnection.
type ICEConfig struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

// NewICEConfig converts configured servers, dropping URLs pion cannot parse.
// An empty result falls back to DefaultICEServers.
func NewICEConfig(servers []config.ICEServer) ICEConfig {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		urls := make([]string, 0, len(s.URLs))
		for _, raw := range s.URLs {
			raw = strings.TrimSpace(raw)
			if _, err := stun.ParseURI(raw); err != nil {
				log.Warn().Err(err).Str("module", "rtc").Str("url", raw).Msg("skipping ICE server url")
				continue
			}
			urls = append(urls, raw)
		}
		if len(urls) == 0 {
			continue
		}
		server := webrtc.ICEServer{URLs: urls, Username: s.Username}
		if s.Credential != "" {
			server.Credential = s.Credential
		}
		out = append(out, server)
	}
	if len(out) == 0 {
		out = DefaultICEServers()
	}
	return ICEConfig{ICEServers: out}
}

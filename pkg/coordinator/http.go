package coordinator

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/wirecall/wirecall/pkg/config"
	"github.com/wirecall/wirecall/pkg/logger"
	"github.com/wirecall/wirecall/pkg/network/httpx"
)

func NewHTTPServer(conf config.CoordinatorConfig, log *logger.Logger, fnMux func(*httpx.Mux)) (*httpx.Server, error) {
	return httpx.NewServer(
		conf.Coordinator.Server.GetAddr(),
		func(*httpx.Server) httpx.Handler {
			h := httpx.NewServeMux("")
			h.HandleW("/healthz", func(w http.ResponseWriter) { _, _ = w.Write([]byte("ok")) })
			fnMux(h)
			return h
		},
		httpx.WithServerConfig(conf.Coordinator.Server),
		httpx.WithLogger(log),
	)
}

// roster shows who is online right now.
func roster(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(h.Roster()); err != nil {
			h.log.Error().Err(err).Msg("roster")
		}
	}
}

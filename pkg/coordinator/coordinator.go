package coordinator

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/wirecall/wirecall/pkg/config"
	"github.com/wirecall/wirecall/pkg/logger"
	"github.com/wirecall/wirecall/pkg/monitoring"
	"github.com/wirecall/wirecall/pkg/network/httpx"
	"github.com/wirecall/wirecall/pkg/service"
)

type Coordinator struct {
	hub      *Hub
	server   *httpx.Server
	services service.Group
}

func New(conf config.CoordinatorConfig, log *logger.Logger) (*Coordinator, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := NewHub(conf, NewMetrics(reg), log)
	c := &Coordinator{hub: hub}

	srv, err := NewHTTPServer(conf, log, func(mux *httpx.Mux) {
		mux.HandleFunc("/ws", hub.handleUserConnection)
		mux.Handle("/roster", roster(hub))
	})
	if err != nil {
		return nil, fmt.Errorf("http init fail: %w", err)
	}
	c.server = srv
	// the hub goes after the server to drop the users first on shutdown
	c.services.Add(srv, hub)

	if conf.Coordinator.Monitoring.IsEnabled() {
		mon, err := monitoring.New(conf.Coordinator.Monitoring, reg, log)
		if err != nil {
			log.Error().Err(err).Msg("monitoring server init")
		} else {
			c.services.Add(mon)
		}
	}
	return c, nil
}

func (c *Coordinator) Start() { c.services.Start() }

func (c *Coordinator) Shutdown(ctx context.Context) error { return c.services.Shutdown(ctx) }

// Addr is the real address of the HTTP server.
func (c *Coordinator) Addr() string { return fmt.Sprintf("%v:%d", c.server.GetHost(), c.server.GetPort()) }

func (c *Coordinator) Hub() *Hub { return c.hub }

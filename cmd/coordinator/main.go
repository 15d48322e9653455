package main

import (
	"context"
	goflag "flag"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/wirecall/wirecall/pkg/config"
	"github.com/wirecall/wirecall/pkg/coordinator"
	"github.com/wirecall/wirecall/pkg/logger"
	xos "github.com/wirecall/wirecall/pkg/os"
)

var Version = "?"

func main() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf, file, err := config.NewCoordinatorConfig(config.PeekPath(os.Args[1:]))
	if err != nil {
		logger.Default().Fatal().Err(err).Msg("config")
	}
	conf.WithFlags(flag.CommandLine)
	flag.Parse()

	log := logger.NewConsole(conf.Coordinator.Debug, "c", false)

	log.Info().Msgf("version %s", Version)
	if file != "" {
		log.Info().Msgf("config: %v", file)
	}
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}
	c, err := coordinator.New(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init fail")
	}
	c.Start()

	<-xos.ExpectTermination()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("service shutdown errors")
	}
}

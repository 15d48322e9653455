package config

import flag "github.com/spf13/pflag"

type CoordinatorConfig struct {
	Coordinator Coordinator
}

type Coordinator struct {
	Debug      bool
	Monitoring Monitoring
	// Origin is the allowed Origin header of the websocket clients,
	// * allows any.
	Origin string
	Server Server
}

func NewCoordinatorConfig(path string) (conf CoordinatorConfig, file string, err error) {
	file, err = LoadConfig(&conf, path)
	return
}

func (c *CoordinatorConfig) WithFlags(fs *flag.FlagSet) {
	c.Coordinator.Server.WithFlags(fs)
	fs.BoolVarP(&c.Coordinator.Debug, "debug", "d", c.Coordinator.Debug, "Verbose logs")
	fs.IntVar(&c.Coordinator.Monitoring.Port, "monitoring.port", c.Coordinator.Monitoring.Port, "Monitoring server port")
	fs.StringVar(&c.Coordinator.Origin, "origin", c.Coordinator.Origin, "Allowed websocket origin")
	fs.String(PathFlag, "", "Set custom configuration file directory")
}

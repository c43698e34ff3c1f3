package hetzner

import (
	"time"

	"github.com/cuemby/swarm-autopilot/internal/provider"
	"github.com/spf13/pflag"
)

func init() {
	provider.Register("hetzner", RegisterFlags, func(flags *pflag.FlagSet) (provider.Provider, error) {
		cfg, err := LoadConfig(flags)
		if err != nil {
			return nil, err
		}
		return New(cfg, 30*time.Second), nil
	})
}

package main

import (
	"github.com/jackzampolin/bitbybit/internal/api"
	"github.com/jackzampolin/bitbybit/internal/server/endpoints"
)

func init() {
	reg := api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{}) {
		reg.Register(ep)
	}
	rootCmd.AddCommand(reg.BuildCommands(getServerURL))
}

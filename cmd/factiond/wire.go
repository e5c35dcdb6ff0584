//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/cory-johannsen/factions/internal/config"
)

func initApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	wire.Build(providerSet, wire.Struct(new(App), "*"))
	return nil, nil
}

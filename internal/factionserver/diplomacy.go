package factionserver

import (
	"context"
	"time"

	"github.com/cory-johannsen/factions/internal/game/territory"
)

func requestAlliance(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	from, to, err := in.pair("faction", "target")
	if err != nil {
		return nil, err
	}
	expires, err := svc.RequestAlliance(from, to)
	if err != nil {
		return nil, err
	}
	return map[string]any{"expires_at": expires.UTC().Format(time.RFC3339)}, nil
}

func acceptAlliance(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	return relate(svc, in, "requester", svc.AcceptAlliance)
}

func denyAlliance(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	return relate(svc, in, "requester", svc.DenyAlliance)
}

func breakAlliance(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	return relate(svc, in, "other", svc.BreakAlliance)
}

func declareEnemy(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	return relate(svc, in, "other", svc.DeclareEnemy)
}

func makeNeutral(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	return relate(svc, in, "other", svc.MakeNeutral)
}

// relate applies op to the pair and reports the resulting relation.
func relate(svc *territory.Service, in args, other string, op func(a, b string) error) (map[string]any, error) {
	a, b, err := in.pair("faction", other)
	if err != nil {
		return nil, err
	}
	if err := op(a, b); err != nil {
		return nil, err
	}
	return map[string]any{"relation": svc.Relation(a, b).String()}, nil
}

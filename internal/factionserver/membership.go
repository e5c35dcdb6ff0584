package factionserver

import (
	"context"
	"time"

	"github.com/cory-johannsen/factions/internal/game/faction"
	"github.com/cory-johannsen/factions/internal/game/rank"
	"github.com/cory-johannsen/factions/internal/game/territory"
)

// addMember joins actor directly, bypassing invitations. rank defaults to Member.
func addMember(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	name, actor, err := in.pair("faction", "actor")
	if err != nil {
		return nil, err
	}
	var rk rank.Rank
	if _, ok := in.lookup("rank"); ok {
		if rk, err = in.rank("rank", svc.Ranks()); err != nil {
			return nil, err
		}
	}
	if err := svc.AddMember(name, actor, rk); err != nil {
		return nil, err
	}
	return memberRank(svc, actor), nil
}

func leave(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	return map[string]any{}, svc.Leave(actor)
}

func kick(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	kicker, target, err := in.pair("kicker", "target")
	if err != nil {
		return nil, err
	}
	return map[string]any{}, svc.Kick(kicker, target)
}

func invite(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	name, actor, err := in.pair("faction", "actor")
	if err != nil {
		return nil, err
	}
	expires, err := svc.Invite(name, actor)
	if err != nil {
		return nil, err
	}
	return map[string]any{"expires_at": expires.UTC().Format(time.RFC3339)}, nil
}

func revokeInvitation(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	name, actor, err := in.pair("faction", "actor")
	if err != nil {
		return nil, err
	}
	return map[string]any{"revoked": svc.RevokeInvitation(name, actor)}, nil
}

func acceptInvitation(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	name, actor, err := in.pair("faction", "actor")
	if err != nil {
		return nil, err
	}
	if err := svc.AcceptInvitation(name, actor); err != nil {
		return nil, err
	}
	return memberRank(svc, actor), nil
}

func promote(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	return step(svc, in, svc.Promote)
}

func demote(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	return step(svc, in, svc.Demote)
}

func step(svc *territory.Service, in args, op func(name, actor string) (rank.Rank, error)) (map[string]any, error) {
	name, actor, err := in.pair("faction", "actor")
	if err != nil {
		return nil, err
	}
	r, err := op(name, actor)
	if err != nil {
		return nil, err
	}
	return map[string]any{"rank": svc.Ranks().Key(r), "title": r.Name}, nil
}

func setRank(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	name, actor, err := in.pair("faction", "actor")
	if err != nil {
		return nil, err
	}
	rk, err := in.rank("rank", svc.Ranks())
	if err != nil {
		return nil, err
	}
	if err := svc.SetRank(name, actor, rk); err != nil {
		return nil, err
	}
	return memberRank(svc, actor), nil
}

func transferLeadership(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	name, actor, err := in.pair("faction", "actor")
	if err != nil {
		return nil, err
	}
	if err := svc.TransferLeadership(name, actor); err != nil {
		return nil, err
	}
	return map[string]any{"leader": actor}, nil
}

func rename(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	name, newName, err := in.pair("faction", "new_name")
	if err != nil {
		return nil, err
	}
	if err := svc.Rename(name, newName); err != nil {
		return nil, err
	}
	return map[string]any{"name": newName}, nil
}

// setDescription accepts an empty description, which clears it.
func setDescription(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	name, err := in.str("faction")
	if err != nil {
		return nil, err
	}
	return map[string]any{}, svc.SetDescription(name, in.optStr("description"))
}

func setHome(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	pos, err := in.position()
	if err != nil {
		return nil, err
	}
	return map[string]any{}, svc.SetHome(actor, faction.Home{World: pos.World, X: pos.X, Y: pos.Y, Z: pos.Z})
}

func clearHome(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	name, err := in.str("faction")
	if err != nil {
		return nil, err
	}
	return map[string]any{}, svc.ClearHome(name)
}

func memberRank(svc *territory.Service, actor string) map[string]any {
	name, _ := svc.FactionOf(actor)
	rk, _ := svc.RankOf(actor)
	return map[string]any{"faction": name, "rank": svc.Ranks().Key(rk)}
}

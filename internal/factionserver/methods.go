package factionserver

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cory-johannsen/factions/internal/game/claim"
	"github.com/cory-johannsen/factions/internal/game/territory"
)

type handlerFunc func(ctx context.Context, svc *territory.Service, in args) (map[string]any, error)

type method struct {
	name     string
	mutating bool
	fields   []field
	fn       handlerFunc
}

// maxMapHalf bounds the Map square to 33x33 cells.
const maxMapHalf = 16

var (
	cellFields = []field{strField("world"), intField("x"), intField("z")}
	posFields  = []field{strField("world"), numField("x"), numField("y"), numField("z")}
	pairFields = []field{strField("faction"), strField("other")}
)

func one(name string) []field { return []field{strField(name)} }

// methods is the full RPC surface, in schema order. Mutating methods require
// the admin token. Field numbers follow the order of fields.
var methods = []method{
	{"GetFaction", false, one("name"), getFaction},
	{"ListFactions", false, nil, listFactions},
	{"FactionOf", false, one("actor"), factionOf},
	{"GetClaim", false, cellFields, getClaim},
	{"ClaimsOf", false, one("faction"), claimsOf},
	{"Standing", false, fields(one("actor"), cellFields), standing},
	{"CanDamage", false, fields(one("victim"), one("attacker"), cellFields), canDamage},
	{"PowerOf", false, one("actor"), powerOf},
	{"GetStats", false, nil, getStats},
	{"Invitations", false, one("actor"), invitations},
	{"AllianceRequests", false, one("faction"), allianceRequests},
	{"Relation", false, pairFields, relation},
	{"GetHome", false, one("actor"), getHome},
	{"Map", false, fields(one("actor"), cellFields, []field{intField("half")}), mapCells},

	{"Connect", true, one("actor"), connect},
	{"Disconnect", true, one("actor"), disconnect},
	{"Move", true, fields(one("actor"), posFields), move},
	{"HandleDeath", true, fields(one("victim"), one("killer")), handleDeath},
	{"CreateFaction", true, fields(one("founder"), one("name")), createFaction},
	{"Disband", true, one("name"), disband},
	{"AddMember", true, fields(one("faction"), one("actor"), one("rank")), addMember},
	{"Leave", true, one("actor"), leave},
	{"Kick", true, fields(one("kicker"), one("target")), kick},
	{"Invite", true, fields(one("faction"), one("actor")), invite},
	{"RevokeInvitation", true, fields(one("faction"), one("actor")), revokeInvitation},
	{"AcceptInvitation", true, fields(one("faction"), one("actor")), acceptInvitation},
	{"Promote", true, fields(one("faction"), one("actor")), promote},
	{"Demote", true, fields(one("faction"), one("actor")), demote},
	{"SetRank", true, fields(one("faction"), one("actor"), one("rank")), setRank},
	{"TransferLeadership", true, fields(one("faction"), one("actor")), transferLeadership},
	{"Rename", true, fields(one("faction"), one("new_name")), rename},
	{"SetDescription", true, fields(one("faction"), one("description")), setDescription},
	{"SetHome", true, fields(one("actor"), posFields), setHome},
	{"ClearHome", true, one("faction"), clearHome},
	{"RequestAlliance", true, fields(one("faction"), one("target")), requestAlliance},
	{"AcceptAlliance", true, fields(one("faction"), one("requester")), acceptAlliance},
	{"DenyAlliance", true, fields(one("faction"), one("requester")), denyAlliance},
	{"BreakAlliance", true, pairFields, breakAlliance},
	{"DeclareEnemy", true, pairFields, declareEnemy},
	{"MakeNeutral", true, pairFields, makeNeutral},
	{"Claim", true, fields(one("actor"), cellFields), claimCell},
	{"Overclaim", true, fields(one("actor"), cellFields), overclaimCell},
	{"Unclaim", true, fields(one("actor"), cellFields), unclaimCell},
	{"UnclaimAll", true, one("actor"), unclaimAll},
	{"Deposit", true, fields(one("actor"), []field{numField("amount")}), deposit},
	{"Withdraw", true, fields(one("actor"), []field{numField("amount")}), withdraw},
	{"SetPower", true, fields(one("actor"), []field{intField("value")}), setPower},
	{"AdjustPower", true, fields(one("actor"), []field{intField("delta")}), adjustPower},
}

func getFaction(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	name, err := in.str("name")
	if err != nil {
		return nil, err
	}
	info, err := svc.Info(name)
	if err != nil {
		return nil, err
	}
	f := info.Faction
	members := make([]any, 0, len(f.Members))
	for _, actor := range f.MemberNames() {
		m := f.Members[actor]
		members = append(members, map[string]any{
			"actor":     m.Actor,
			"rank":      svc.Ranks().Key(m.Rank),
			"title":     m.Rank.Name,
			"joined_at": m.JoinedAt.UTC().Format(time.RFC3339),
		})
	}
	out := map[string]any{
		"name":        f.Name,
		"leader":      f.Leader,
		"description": f.Description,
		"balance":     f.Balance,
		"power":       info.Power,
		"max_power":   info.MaxPower,
		"claims":      info.Claims,
		"online":      stringList(info.Online),
		"members":     members,
		"allies":      stringList(f.AllyNames()),
		"enemies":     stringList(f.EnemyNames()),
		"created_at":  f.CreatedAt.UTC().Format(time.RFC3339),
	}
	if f.Home != nil {
		out["home"] = map[string]any{"world": f.Home.World, "x": f.Home.X, "y": f.Home.Y, "z": f.Home.Z}
	}
	return out, nil
}

func listFactions(_ context.Context, svc *territory.Service, _ args) (map[string]any, error) {
	return map[string]any{"factions": stringList(svc.Factions())}, nil
}

func factionOf(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	name, ok := svc.FactionOf(actor)
	if !ok {
		return nil, territory.ErrNotInFaction
	}
	rk, _ := svc.RankOf(actor)
	return map[string]any{"faction": name, "rank": svc.Ranks().Key(rk)}, nil
}

func getClaim(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	k, err := in.cell()
	if err != nil {
		return nil, err
	}
	c, ok := svc.ClaimAt(k)
	if !ok {
		return map[string]any{"claimed": false}, nil
	}
	return map[string]any{
		"claimed":    true,
		"faction":    c.Faction,
		"claimed_at": c.ClaimedAt.UTC().Format(time.RFC3339),
	}, nil
}

func claimsOf(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	name, err := in.str("faction")
	if err != nil {
		return nil, err
	}
	if _, err := svc.Info(name); err != nil {
		return nil, err
	}
	return map[string]any{"claims": cells(svc.ClaimsOf(name))}, nil
}

func standing(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	k, err := in.cell()
	if err != nil {
		return nil, err
	}
	st, owner := svc.Standing(actor, k)
	return map[string]any{
		"standing":  string(st),
		"owner":     owner,
		"can_build": svc.CanBuild(actor, k),
		"can_fly":   svc.CanFly(actor, k),
		"pvp":       svc.PvPAllowed(k),
	}, nil
}

func canDamage(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	victim, err := in.str("victim")
	if err != nil {
		return nil, err
	}
	attacker, err := in.str("attacker")
	if err != nil {
		return nil, err
	}
	k, err := in.cell()
	if err != nil {
		return nil, err
	}
	return map[string]any{"allowed": svc.CanDamage(victim, attacker, k)}, nil
}

func powerOf(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	return map[string]any{"power": svc.PowerOf(actor)}, nil
}

func getStats(_ context.Context, svc *territory.Service, _ args) (map[string]any, error) {
	st := svc.Stats()
	return map[string]any{
		"factions":        st.Factions,
		"active_factions": st.ActiveFactions,
		"claims":          st.Claims,
		"online":          st.Online,
	}, nil
}

func invitations(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	return map[string]any{"factions": stringList(svc.Invitations(actor))}, nil
}

func allianceRequests(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	name, err := in.str("faction")
	if err != nil {
		return nil, err
	}
	if _, err := svc.Info(name); err != nil {
		return nil, err
	}
	return map[string]any{"factions": stringList(svc.AllianceRequests(name))}, nil
}

func relation(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	a, b, err := in.pair("faction", "other")
	if err != nil {
		return nil, err
	}
	return map[string]any{"relation": svc.Relation(a, b).String()}, nil
}

func getHome(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	h, err := svc.Home(actor)
	if err != nil {
		return nil, err
	}
	return map[string]any{"world": h.World, "x": h.X, "y": h.Y, "z": h.Z}, nil
}

func mapCells(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	center, err := in.cell()
	if err != nil {
		return nil, err
	}
	half, err := in.int("half")
	if err != nil {
		return nil, err
	}
	if half < 0 || half > maxMapHalf {
		return nil, status.Errorf(codes.InvalidArgument, "half must be in [0, %d]", maxMapHalf)
	}
	grid := svc.Map(actor, center, half)
	rows := make([]any, len(grid))
	for i, row := range grid {
		out := make([]any, len(row))
		for j, c := range row {
			out[j] = map[string]any{"x": c.Key.X, "z": c.Key.Z, "owner": c.Owner, "standing": string(c.Standing)}
		}
		rows[i] = out
	}
	return map[string]any{"rows": rows}, nil
}

func connect(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	if err := svc.Connect(actor); err != nil {
		return nil, err
	}
	return map[string]any{"power": svc.PowerOf(actor)}, nil
}

func disconnect(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	return map[string]any{}, svc.Disconnect(actor)
}

func move(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	pos, err := in.position()
	if err != nil {
		return nil, err
	}
	return map[string]any{}, svc.Move(actor, pos)
}

func handleDeath(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	victim, err := in.str("victim")
	if err != nil {
		return nil, err
	}
	killer := in.optStr("killer")
	svc.HandleDeath(victim, killer)
	out := map[string]any{"victim_power": svc.PowerOf(victim)}
	if killer != "" {
		out["killer_power"] = svc.PowerOf(killer)
	}
	return out, nil
}

func createFaction(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	founder, err := in.str("founder")
	if err != nil {
		return nil, err
	}
	name, err := in.str("name")
	if err != nil {
		return nil, err
	}
	f, err := svc.CreateFaction(founder, name)
	if err != nil {
		return nil, err
	}
	return map[string]any{"name": f.Name, "leader": f.Leader}, nil
}

func disband(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	name, err := in.str("name")
	if err != nil {
		return nil, err
	}
	return map[string]any{}, svc.Disband(name)
}

func claimCell(ctx context.Context, svc *territory.Service, in args) (map[string]any, error) {
	return landChange(ctx, in, svc.Claim)
}

func overclaimCell(ctx context.Context, svc *territory.Service, in args) (map[string]any, error) {
	return landChange(ctx, in, svc.Overclaim)
}

func landChange(ctx context.Context, in args, op func(context.Context, string, claim.Key) (claim.Claim, error)) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	k, err := in.cell()
	if err != nil {
		return nil, err
	}
	c, err := op(ctx, actor, k)
	if err != nil {
		return nil, err
	}
	return map[string]any{"faction": c.Faction, "claimed_at": c.ClaimedAt.UTC().Format(time.RFC3339)}, nil
}

func unclaimCell(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	k, err := in.cell()
	if err != nil {
		return nil, err
	}
	return map[string]any{}, svc.Unclaim(actor, k)
}

func deposit(ctx context.Context, svc *territory.Service, in args) (map[string]any, error) {
	return treasury(ctx, in, svc.Deposit)
}

func withdraw(ctx context.Context, svc *territory.Service, in args) (map[string]any, error) {
	return treasury(ctx, in, svc.Withdraw)
}

func treasury(ctx context.Context, in args, op func(context.Context, string, float64) (float64, error)) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	amount, err := in.num("amount")
	if err != nil {
		return nil, err
	}
	balance, err := op(ctx, actor, amount)
	if err != nil {
		return nil, err
	}
	return map[string]any{"balance": balance}, nil
}

func setPower(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	value, err := in.int("value")
	if err != nil {
		return nil, err
	}
	c := svc.SetPower(actor, value)
	return map[string]any{"old": c.Old, "new": c.New}, nil
}

func adjustPower(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	delta, err := in.int("delta")
	if err != nil {
		return nil, err
	}
	c := svc.AdjustPower(actor, delta)
	return map[string]any{"old": c.Old, "new": c.New}, nil
}

func unclaimAll(_ context.Context, svc *territory.Service, in args) (map[string]any, error) {
	actor, err := in.str("actor")
	if err != nil {
		return nil, err
	}
	n, err := svc.UnclaimAll(actor)
	if err != nil {
		return nil, err
	}
	return map[string]any{"released": n}, nil
}

func stringList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func cells(in []claim.Claim) []any {
	out := make([]any, len(in))
	for i, c := range in {
		out[i] = map[string]any{"world": c.World, "x": c.X, "z": c.Z}
	}
	return out
}

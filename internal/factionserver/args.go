package factionserver

import (
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/cory-johannsen/factions/internal/game/claim"
	"github.com/cory-johannsen/factions/internal/game/presence"
	"github.com/cory-johannsen/factions/internal/game/rank"
)

// args reads fields from a typed request message. Absent or empty fields
// yield InvalidArgument.
type args struct {
	msg protoreflect.Message
}

func newArgs(msg protoreflect.Message) args {
	return args{msg: msg}
}

func (a args) lookup(key string) (protoreflect.FieldDescriptor, bool) {
	fd := a.msg.Descriptor().Fields().ByName(protoreflect.Name(key))
	if fd == nil || !a.msg.Has(fd) {
		return nil, false
	}
	return fd, true
}

func (a args) str(key string) (string, error) {
	fd, ok := a.lookup(key)
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "missing field %q", key)
	}
	s := a.msg.Get(fd).String()
	if s == "" {
		return "", status.Errorf(codes.InvalidArgument, "field %q must be a non-empty string", key)
	}
	return s, nil
}

// optStr returns the string at key, or "" when absent.
func (a args) optStr(key string) string {
	fd, ok := a.lookup(key)
	if !ok {
		return ""
	}
	return a.msg.Get(fd).String()
}

func (a args) num(key string) (float64, error) {
	fd, ok := a.lookup(key)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "missing field %q", key)
	}
	n := a.msg.Get(fd).Float()
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, status.Errorf(codes.InvalidArgument, "field %q must be a finite number", key)
	}
	return n, nil
}

func (a args) int(key string) (int, error) {
	fd, ok := a.lookup(key)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "missing field %q", key)
	}
	return int(a.msg.Get(fd).Int()), nil
}

// cell reads world, x and z.
func (a args) cell() (claim.Key, error) {
	world, err := a.str("world")
	if err != nil {
		return claim.Key{}, err
	}
	x, err := a.int("x")
	if err != nil {
		return claim.Key{}, err
	}
	z, err := a.int("z")
	if err != nil {
		return claim.Key{}, err
	}
	return claim.Key{World: world, X: x, Z: z}, nil
}

// position reads world, x, y and z.
func (a args) position() (presence.Position, error) {
	world, err := a.str("world")
	if err != nil {
		return presence.Position{}, err
	}
	pos := presence.Position{World: world}
	for _, f := range []struct {
		key string
		dst *float64
	}{{"x", &pos.X}, {"y", &pos.Y}, {"z", &pos.Z}} {
		if *f.dst, err = a.num(f.key); err != nil {
			return presence.Position{}, err
		}
	}
	return pos, nil
}

// pair reads two required strings.
func (a args) pair(first, second string) (string, string, error) {
	x, err := a.str(first)
	if err != nil {
		return "", "", err
	}
	y, err := a.str(second)
	if err != nil {
		return "", "", err
	}
	return x, y, nil
}

// rank resolves the rank named at key by canonical key or configured name.
func (a args) rank(key string, table *rank.Table) (rank.Rank, error) {
	name, err := a.str(key)
	if err != nil {
		return rank.Rank{}, err
	}
	r, ok := table.Lookup(name)
	if !ok {
		return rank.Rank{}, status.Errorf(codes.InvalidArgument, "unknown rank %q", name)
	}
	return r, nil
}

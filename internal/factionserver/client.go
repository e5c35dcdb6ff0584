package factionserver

import (
	"context"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the Territory service with plain maps.
type Client struct {
	cc    grpc.ClientConnInterface
	token string
}

// NewClient wraps cc. token is sent on every call when non-empty.
func NewClient(cc grpc.ClientConnInterface, token string) *Client {
	return &Client{cc: cc, token: token}
}

// Call invokes method with req and returns the response fields. Numbers in the
// response are float64.
//
// Precondition: req keys must be fields of the method's request message.
func (c *Client) Call(ctx context.Context, method string, req map[string]any) (map[string]any, error) {
	in, err := NewRequest(method, req)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, AuthorizationHeader, "Bearer "+c.token)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// NewRequest builds the typed request for method from fields. Strings fill
// string fields; numbers fill double and int32 fields, where int32 fields
// require an integral value.
//
// Postcondition: Returns Unimplemented for an unknown method and
// InvalidArgument for an unknown field or a value of the wrong type.
func NewRequest(method string, fields map[string]any) (*dynamicpb.Message, error) {
	md := RequestDescriptor(method)
	if md == nil {
		return nil, status.Errorf(codes.Unimplemented, "unknown method %q", method)
	}
	msg := dynamicpb.NewMessage(md)
	for key, raw := range fields {
		fd := md.Fields().ByName(protoreflect.Name(key))
		if fd == nil {
			return nil, status.Errorf(codes.InvalidArgument, "%s has no field %q", method, key)
		}
		v, err := fieldValue(fd, raw)
		if err != nil {
			return nil, err
		}
		msg.Set(fd, v)
	}
	return msg, nil
}

func fieldValue(fd protoreflect.FieldDescriptor, raw any) (protoreflect.Value, error) {
	switch fd.Kind() {
	case protoreflect.StringKind:
		s, ok := raw.(string)
		if !ok {
			return protoreflect.Value{}, status.Errorf(codes.InvalidArgument, "field %q must be a string", fd.Name())
		}
		return protoreflect.ValueOfString(s), nil
	case protoreflect.DoubleKind:
		n, ok := toFloat(raw)
		if !ok {
			return protoreflect.Value{}, status.Errorf(codes.InvalidArgument, "field %q must be a number", fd.Name())
		}
		return protoreflect.ValueOfFloat64(n), nil
	case protoreflect.Int32Kind:
		n, ok := toFloat(raw)
		if !ok || n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
			return protoreflect.Value{}, status.Errorf(codes.InvalidArgument, "field %q must be an integer", fd.Name())
		}
		return protoreflect.ValueOfInt32(int32(n)), nil
	default:
		return protoreflect.Value{}, status.Errorf(codes.Internal, "field %q has unsupported kind %s", fd.Name(), fd.Kind())
	}
}

func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

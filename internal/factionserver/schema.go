package factionserver

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// SchemaPath is the import path of the Territory schema, mirrored by
// api/proto/factions/v1/territory.proto.
const SchemaPath = "factions/v1/territory.proto"

const schemaPackage = "factions.v1"

// fieldKind is the wire type of a request field.
type fieldKind int

const (
	kindString fieldKind = iota
	kindDouble
	kindInt32
)

func (k fieldKind) protoType() descriptorpb.FieldDescriptorProto_Type {
	switch k {
	case kindDouble:
		return descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	case kindInt32:
		return descriptorpb.FieldDescriptorProto_TYPE_INT32
	default:
		return descriptorpb.FieldDescriptorProto_TYPE_STRING
	}
}

// field is one request field. Every field is proto3 optional so handlers can
// tell an absent field from a zero value.
type field struct {
	name string
	kind fieldKind
}

func strField(name string) field { return field{name: name, kind: kindString} }
func numField(name string) field { return field{name: name, kind: kindDouble} }
func intField(name string) field { return field{name: name, kind: kindInt32} }

func fields(parts ...[]field) []field {
	var out []field
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// schema is the compiled Territory file descriptor.
var schema = mustBuildSchema()

// Schema returns the Territory file descriptor. Each method takes a
// <Method>Request message and returns a google.protobuf.Struct.
func Schema() protoreflect.FileDescriptor {
	return schema
}

// RequestDescriptor returns the request message of method, or nil if the
// method does not exist.
func RequestDescriptor(method string) protoreflect.MessageDescriptor {
	return schema.Messages().ByName(protoreflect.Name(method + "Request"))
}

func mustBuildSchema() protoreflect.FileDescriptor {
	fd, err := buildSchema(methods)
	if err != nil {
		panic(fmt.Sprintf("factionserver: building %s: %v", SchemaPath, err))
	}
	return fd
}

func buildSchema(table []method) (protoreflect.FileDescriptor, error) {
	file := &descriptorpb.FileDescriptorProto{
		Name:       proto.String(SchemaPath),
		Package:    proto.String(schemaPackage),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"google/protobuf/struct.proto"},
	}
	svc := &descriptorpb.ServiceDescriptorProto{Name: proto.String("Territory")}
	response := "." + string((&structpb.Struct{}).ProtoReflect().Descriptor().FullName())

	for _, m := range table {
		msg := &descriptorpb.DescriptorProto{Name: proto.String(m.name + "Request")}
		for i, f := range m.fields {
			msg.OneofDecl = append(msg.OneofDecl, &descriptorpb.OneofDescriptorProto{
				Name: proto.String("_" + f.name),
			})
			msg.Field = append(msg.Field, &descriptorpb.FieldDescriptorProto{
				Name:           proto.String(f.name),
				Number:         proto.Int32(int32(i + 1)),
				Label:          descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:           f.kind.protoType().Enum(),
				OneofIndex:     proto.Int32(int32(i)),
				Proto3Optional: proto.Bool(true),
			})
		}
		file.MessageType = append(file.MessageType, msg)
		svc.Method = append(svc.Method, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.name),
			InputType:  proto.String("." + schemaPackage + "." + m.name + "Request"),
			OutputType: proto.String(response),
		})
	}
	file.Service = []*descriptorpb.ServiceDescriptorProto{svc}
	return protodesc.NewFile(file, protoregistry.GlobalFiles)
}

// Package main provides an admin CLI for the faction daemon.
//
// Usage:
//
//	factionctl hash-token <token>
//	factionctl [-addr host:port] [-token t] <Method> [key=value ...]
//
// Values are typed by the method's request fields.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/cory-johannsen/factions/internal/factionserver"
)

func main() {
	start := time.Now()

	addr := flag.String("addr", "127.0.0.1:50061", "daemon gRPC address")
	token := flag.String("token", os.Getenv("FACTIONS_ADMIN_TOKEN"), "admin token for mutating methods")
	timeout := flag.Duration("timeout", 10*time.Second, "call timeout")
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if flag.Arg(0) == "hash-token" {
		if flag.NArg() != 2 {
			log.Fatalf("usage: factionctl hash-token <token>")
		}
		hash, err := factionserver.HashToken(flag.Arg(1))
		if err != nil {
			log.Fatalf("hashing token: %v", err)
		}
		fmt.Fprintln(os.Stdout, hash)
		return
	}

	req, err := parseFields(flag.Arg(0), flag.Args()[1:])
	if err != nil {
		log.Fatalf("parsing arguments: %v", err)
	}

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("connecting to %s: %v", *addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := factionserver.NewClient(conn, *token).Call(ctx, flag.Arg(0), req)
	if err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		log.Fatalf("encoding response: %v", err)
	}
	fmt.Fprintf(os.Stdout, "%s\n", out)
	fmt.Fprintf(os.Stderr, "[%s]\n", time.Since(start))
}

// parseFields turns key=value pairs into a request map, parsing each value as
// the type of the matching request field.
func parseFields(method string, pairs []string) (map[string]any, error) {
	md := factionserver.RequestDescriptor(method)
	if md == nil {
		return nil, fmt.Errorf("unknown method %q", method)
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		fd := md.Fields().ByName(protoreflect.Name(key))
		if fd == nil {
			return nil, fmt.Errorf("%s has no field %q", method, key)
		}
		if fd.Kind() == protoreflect.StringKind {
			out[key] = value
			continue
		}
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		out[key] = n
	}
	return out, nil
}

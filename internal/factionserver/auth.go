package factionserver

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthorizationHeader carries "Bearer <token>" on mutating calls.
const AuthorizationHeader = "authorization"

// HashToken creates a bcrypt hash of an admin token for grpc.admin_token_hash.
//
// Postcondition: Returns a bcrypt hash string.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing token: %w", err)
	}
	return string(hash), nil
}

// CheckToken reports whether token matches hash.
func CheckToken(token, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// adminAuth rejects calls to guarded methods that lack a token matching hash.
// An empty hash disables the check.
func adminAuth(hash string, guarded func(fullMethod string) bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if hash == "" || !guarded(info.FullMethod) {
			return handler(ctx, req)
		}
		token, ok := bearer(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "admin token required")
		}
		if !CheckToken(token, hash) {
			return nil, status.Error(codes.PermissionDenied, "invalid admin token")
		}
		return handler(ctx, req)
	}
}

func bearer(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	for _, v := range md.Get(AuthorizationHeader) {
		if token, found := strings.CutPrefix(v, "Bearer "); found && token != "" {
			return token, true
		}
	}
	return "", false
}

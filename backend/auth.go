package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// gatewayClaims identify the chat gateway process holding the socket.
// The subject names the gateway; user identities travel per frame.
type gatewayClaims struct {
	jwt.RegisteredClaims
}

// gatewayFromRequest returns the authenticated gateway name. The token is
// read from the Authorization header, falling back to the token query
// parameter for clients that cannot set headers on upgrade.
func gatewayFromRequest(r *http.Request, secret []byte) (string, bool) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return parseGatewayToken(strings.TrimPrefix(auth, "Bearer "), secret)
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return parseGatewayToken(q, secret)
	}
	return "", false
}

func parseGatewayToken(tokenStr string, secret []byte) (string, bool) {
	var claims gatewayClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", false
	}
	if claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// contextLogger returns the request-scoped logger bound to ctx tagged with component, or base when ctx carries none.
func contextLogger(ctx context.Context, base zerolog.Logger, component string) zerolog.Logger {
	scoped := zerolog.Ctx(ctx)
	if scoped.GetLevel() == zerolog.Disabled {
		return base
	}
	return scoped.With().Str("component", component).Logger()
}

func maskEmailAddress(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return "***"
	}
	if len(local) <= 2 {
		return local[:1] + "***@" + domain
	}
	return local[:1] + "***" + local[len(local)-1:] + "@" + domain
}

func computeChecksum(parts ...string) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(part))
		hasher.Write([]byte("|"))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// formatMarks renders marks without trailing zeros, e.g. 7.5 or 10.
func formatMarks(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

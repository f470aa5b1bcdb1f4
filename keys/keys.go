// Package keys classifies candidate API keys by shape. Classification is
// pure string matching — it is the cheap rejection path that runs before
// any network liveness probe, and it never touches key material beyond
// the pattern check.
package keys

import (
	"regexp"
	"strings"
)

// Type identifies the kind of provider key a credential appears to be.
type Type string

const (
	TypeLegacy         Type = "legacy"
	TypeProject        Type = "project"
	TypeServiceAccount Type = "serviceAccount"
	TypeAdmin          Type = "admin"
	TypeUnknown        Type = "unknown"
)

// Prefix is the provider prefix every key must carry.
const Prefix = "sk-"

// Rejection reasons returned in Result.Reason.
const (
	ReasonInvalidPrefix = "invalid-prefix"
	ReasonInvalidFormat = "invalid-format"
)

var (
	// Modern keys bracket a fixed signature token with 20-74 chars of
	// URL-safe alphabet on either side, under a sub-kind prefix.
	modernRE = regexp.MustCompile(`^sk-(proj|svcacct|admin)-[A-Za-z0-9_-]{20,74}T3BlbkFJ[A-Za-z0-9_-]{20,74}$`)

	// Legacy keys are exactly 51 characters: "sk-" plus a 48-char
	// alphanumeric body.
	legacyRE = regexp.MustCompile(`^sk-[A-Za-z0-9]{48}$`)
)

var modernTypes = map[string]Type{
	"proj":    TypeProject,
	"svcacct": TypeServiceAccount,
	"admin":   TypeAdmin,
}

// Result describes a shape classification. It carries no secret material
// and is safe to log or return to a client.
type Result struct {
	Valid  bool
	Type   Type
	Length int
	Reason string
}

// Format reports the broad family of an accepted key.
func (r Result) Format() string {
	switch r.Type {
	case TypeLegacy:
		return "legacy"
	case TypeProject, TypeServiceAccount, TypeAdmin:
		return "modern"
	default:
		return ""
	}
}

// Validate classifies candidate by shape. It is deterministic and has no
// side effects.
func Validate(candidate string) Result {
	if !strings.HasPrefix(candidate, Prefix) {
		return Result{Type: TypeUnknown, Length: len(candidate), Reason: ReasonInvalidPrefix}
	}

	if m := modernRE.FindStringSubmatch(candidate); m != nil {
		return Result{Valid: true, Type: modernTypes[m[1]], Length: len(candidate)}
	}

	if legacyRE.MatchString(candidate) {
		return Result{Valid: true, Type: TypeLegacy, Length: len(candidate)}
	}

	return Result{Type: TypeUnknown, Length: len(candidate), Reason: ReasonInvalidFormat}
}

package source

import (
	"os"
	"strings"

	"github.com/ops-intel/orchestrator/infrastructure/apperrors"
)

// ResolveCredential resolves def's password reference into secret
// material at open time, consulting the environment for "env:NAME" or a
// secret store for "vault:PATH". Plaintext def.Password is honored only
// when def.DevMode is true (the documented source inconsistency, kept
// rather than silently normalized away).
func ResolveCredential(def Def) (ResolvedCredential, error) {
	ref := strings.TrimSpace(def.PasswordRef)
	switch {
	case strings.HasPrefix(ref, "env:"):
		name := strings.TrimPrefix(ref, "env:")
		val, ok := os.LookupEnv(name)
		if !ok {
			return ResolvedCredential{}, apperrors.Of(apperrors.CodeConfigurationError, "env credential not set: "+name)
		}
		return ResolvedCredential{Username: def.Username, Secret: val}, nil
	case strings.HasPrefix(ref, "vault:"):
		path := strings.TrimPrefix(ref, "vault:")
		val, err := resolveVaultPath(path)
		if err != nil {
			return ResolvedCredential{}, err
		}
		return ResolvedCredential{Username: def.Username, Secret: val}, nil
	case ref == "" && def.Password != "" && def.DevMode:
		return ResolvedCredential{Username: def.Username, Secret: def.Password}, nil
	case ref == "":
		return ResolvedCredential{Username: def.Username, Secret: ""}, nil
	default:
		return ResolvedCredential{}, apperrors.Of(apperrors.CodeConfigurationError, "unsupported credential reference form")
	}
}

// vaultResolver is swappable in tests; the production default reads from
// an environment variable namespaced by the vault path, since no vault
// client library appears anywhere in the retrieval pack to ground a real
// client against.
var vaultResolver = func(path string) (string, error) {
	envKey := "VAULT_" + strings.ToUpper(strings.ReplaceAll(path, "/", "_"))
	if v, ok := os.LookupEnv(envKey); ok {
		return v, nil
	}
	return "", apperrors.Of(apperrors.CodeConfigurationError, "vault path not resolvable: "+path)
}

func resolveVaultPath(path string) (string, error) {
	return vaultResolver(path)
}

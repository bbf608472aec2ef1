package envsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	vverrors "github.com/systmms/vaultenv/internal/errors"
)

// withBindingTimeout bounds one vault call. A zero timeout leaves ctx alone.
func withBindingTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// timeoutError turns a deadline into a UserError with a per-type hint.
// Other errors are returned unchanged.
func timeoutError(err error, providerType string, timeout time.Duration) error {
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return vverrors.UserError{
		Message:    "Vault request timed out",
		Details:    fmt.Sprintf("Request exceeded %s timeout", timeout),
		Suggestion: timeoutSuggestion(providerType, timeout),
		Err:        err,
	}
}

func timeoutSuggestion(providerType string, timeout time.Duration) string {
	short := timeout < 10*time.Second

	switch providerType {
	case "1password", "onepassword":
		if short {
			return "1Password CLI can be slow. Try increasing timeout_ms to 15000 or check 'op signin'"
		}
		return "Check 1Password connectivity. Use 'op signin' if session expired"

	case "aws.secretsmanager", "aws.ssm":
		if short {
			return "AWS API can be slow. Try increasing timeout_ms to 10000"
		}
		return "Check AWS connectivity and credentials. Verify region is correct"

	case "gcp.secretmanager":
		if short {
			return "Google Cloud API can be slow. Try increasing timeout_ms to 10000"
		}
		return "Check Google Cloud connectivity and authentication"

	case "azure.keyvault":
		if short {
			return "Azure API can be slow. Try increasing timeout_ms to 10000"
		}
		return "Check Azure connectivity and authentication"

	case "hashicorp.vault":
		if short {
			return "Vault API can be slow. Try increasing timeout_ms to 10000"
		}
		return "Check Vault connectivity and authentication. Verify VAULT_ADDR"

	case "keychain":
		return "The keychain may be waiting for an unlock prompt. Unlock it and retry"
	}

	if short {
		return "Vault request timed out. Try increasing timeout_ms on the binding"
	}
	return "Check network connectivity and vault authentication. Consider increasing timeout_ms if the vault is consistently slow"
}

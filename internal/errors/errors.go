package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  " + e.Suggestion
	}

	return msg
}

// ProviderError enhances vault provider errors with context
func ProviderError(provider string, operation string, err error) error {
	suggestion := getProviderSuggestion(provider, err)

	return UserError{
		Message:    fmt.Sprintf("%s provider error during %s", provider, operation),
		Suggestion: suggestion,
		Err:        err,
	}
}

// getProviderSuggestion returns helpful suggestions based on provider type and error
func getProviderSuggestion(provider string, err error) string {
	errStr := err.Error()

	switch provider {
	case "1password", "onepassword":
		if strings.Contains(errStr, "not signed in") || strings.Contains(errStr, "not currently signed in") {
			return "Run 'op signin' to authenticate with 1Password"
		}
		if strings.Contains(errStr, "session expired") {
			return "Your 1Password session has expired. Run 'op signin' again"
		}
		if strings.Contains(errStr, "executable was not found") {
			return "Install 1Password CLI: https://developer.1password.com/docs/cli/get-started/"
		}
		if strings.Contains(errStr, "isn't an item") || strings.Contains(errStr, "not found") {
			return "Verify the entry exists. Use 'op item list --vault <vault>' to see available items"
		}

	case "aws.secretsmanager", "aws.ssm":
		if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization") {
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		}
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for secretsmanager:GetSecretValue or ssm:GetParametersByPath"
		}
		if strings.Contains(errStr, "ResourceNotFoundException") || strings.Contains(errStr, "entry not found") {
			return "Verify the entry name and region"
		}
		if strings.Contains(errStr, "ThrottlingException") {
			return "AWS rate limit exceeded. Wait a moment and try again"
		}

	case "gcp.secretmanager":
		if strings.Contains(errStr, "PermissionDenied") || strings.Contains(errStr, "could not find default credentials") {
			return "Run 'gcloud auth application-default login' or set service_account_key_path"
		}

	case "azure.keyvault":
		if strings.Contains(errStr, "DefaultAzureCredential") || strings.Contains(errStr, "authentication failed") {
			return "Run 'az login' or configure a managed identity"
		}

	case "hashicorp.vault":
		if strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "missing client token") {
			return "Run 'vault login' or set VAULT_TOKEN"
		}

	case "keychain":
		if strings.Contains(errStr, "keychain item not found") {
			return "Store the value with your OS keychain tool (e.g. 'secret-tool store' or 'security add-generic-password')"
		}
	}

	// Generic suggestions
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and provider configuration"
	}

	return ""
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var configErr ConfigError
	if errors.As(err, &configErr) {
		return err
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}

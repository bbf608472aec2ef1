package vault

// NotFoundError indicates that the configured entry does not exist in the
// vault.
//
// It is distinct from a key missing inside an existing entry, which
// providers report by omitting the key from their result.
//
// Example:
//
//	if resp == nil {
//	    return nil, NotFoundError{Vault: p.Name(), Entry: path}
//	}
type NotFoundError struct {
	// Vault is the name of the vault binding.
	Vault string

	// Entry is the entry identifier that could not be found.
	Entry string
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return "entry not found: " + e.Entry + " in " + e.Vault
}

// AuthError indicates that authentication to the vault failed.
//
// Returned when credentials are missing, expired or rejected, or when the
// vault CLI reports that no session is active.
type AuthError struct {
	// Vault is the name of the vault binding.
	Vault string

	// Message provides details about the authentication failure.
	Message string
}

// Error implements the error interface.
func (e AuthError) Error() string {
	return "authentication failed for " + e.Vault + ": " + e.Message
}

// Package fakes provides test doubles for vaultenv vault interfaces.
//
// This package contains fake implementations of the SDK client interfaces
// the vault providers depend on, so providers can be unit tested without
// real service dependencies. Fakes are manually implemented (not generated)
// to provide precise control over test behavior.
//
// Usage:
//
//	fake := fakes.NewFakeSecretsManagerClient()
//	fake.AddSecretString("frameio", `{"API_KEY":"secret123"}`)
//	v, _ := vaults.NewAWSSecretsManagerVault(ctx, "frameio", cfg,
//	    vaults.WithSecretsManagerClient(fake),
//	    vaults.WithSecretsManagerSTSClient(fakes.NewFakeSTSClient()))
//	// Test vault methods...
package fakes

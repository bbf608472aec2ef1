package vault

import (
	"context"
	"testing"
)

// ContractTest defines the standard test suite every vault provider must pass
type ContractTest struct {
	// CreateVault creates a new instance of the vault to test. The vault must
	// hold exactly the values in Fixture.
	CreateVault func(t *testing.T) Vault

	// Fixture is the full content of the entry the vault reads.
	Fixture map[string]string

	// SkipFullEntry skips the nil-keys listing test for vaults that cannot
	// enumerate their content.
	SkipFullEntry bool
}

// RunContractTests runs the standard vault contract test suite
func RunContractTests(t *testing.T, contract ContractTest) {
	t.Run("Contract", func(t *testing.T) {
		t.Run("Name", func(t *testing.T) {
			testVaultName(t, contract)
		})

		t.Run("RequestedKeys", func(t *testing.T) {
			testVaultRequestedKeys(t, contract)
		})

		t.Run("PartialResult", func(t *testing.T) {
			testVaultPartialResult(t, contract)
		})

		if !contract.SkipFullEntry {
			t.Run("FullEntry", func(t *testing.T) {
				testVaultFullEntry(t, contract)
			})
		}
	})
}

func testVaultName(t *testing.T, contract ContractTest) {
	v := contract.CreateVault(t)

	name := v.Name()
	if name == "" {
		t.Error("Vault.Name() returned empty string")
	}
	if name != v.Name() {
		t.Errorf("Vault.Name() not consistent: %q != %q", name, v.Name())
	}
}

func testVaultRequestedKeys(t *testing.T, contract ContractTest) {
	v := contract.CreateVault(t)

	keys := make([]string, 0, len(contract.Fixture))
	for k := range contract.Fixture {
		keys = append(keys, k)
	}

	got, err := v.Values(context.Background(), keys)
	if err != nil {
		t.Fatalf("Vault.Values() failed: %v", err)
	}
	for k, want := range contract.Fixture {
		if got[k] != want {
			t.Errorf("Vault.Values()[%q] = %q, want %q", k, got[k], want)
		}
	}
}

func testVaultPartialResult(t *testing.T, contract ContractTest) {
	v := contract.CreateVault(t)

	missing := "VAULTENV_CONTRACT_MISSING_KEY"
	got, err := v.Values(context.Background(), []string{missing})
	if err != nil {
		t.Fatalf("Vault.Values() with an unknown key should not fail: %v", err)
	}
	if _, ok := got[missing]; ok {
		t.Errorf("Vault.Values() returned a value for unknown key %q", missing)
	}
}

func testVaultFullEntry(t *testing.T, contract ContractTest) {
	v := contract.CreateVault(t)

	got, err := v.Values(context.Background(), nil)
	if err != nil {
		t.Fatalf("Vault.Values(nil) failed: %v", err)
	}
	if len(got) != len(contract.Fixture) {
		t.Errorf("Vault.Values(nil) returned %d values, want %d", len(got), len(contract.Fixture))
	}
	for k, want := range contract.Fixture {
		if got[k] != want {
			t.Errorf("Vault.Values(nil)[%q] = %q, want %q", k, got[k], want)
		}
	}
}

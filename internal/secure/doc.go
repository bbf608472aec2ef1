// Package secure keeps collected vault values encrypted in memory.
//
// Values are sealed into memguard enclaves as soon as a provider returns
// them and only revealed when the managed block is rendered:
//
//	store := secure.NewStore()
//	defer store.Destroy()
//
//	store.SealAll(values)
//	plain, err := store.RevealAll()
//
// Enclaves are encrypted with XSalsa20Poly1305 and the key material lives
// in mlocked memory. Call memguard.Purge() at process exit to wipe it.
//
// It does NOT protect against:
//
//   - Attackers with root access to the running process
//   - Hardware-level attacks (cold boot, DMA)
//   - Copies made after a value is revealed
package secure

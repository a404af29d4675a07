/**
 * @description
 * Deterministic account addressing.
 * Maps a market's external key (creator, sequence) to its vault and share-asset
 * handles. Callers never choose these; every operation re-derives them and
 * rejects mismatching operands.
 *
 * @dependencies
 * - github.com/google/uuid: name-based (SHA-1) UUIDs give a stable derivation
 */

package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// accountNamespace seeds the name-based UUID derivation. Changing it would
// re-key every vault and share asset, so it is fixed for the life of the system.
var accountNamespace = uuid.MustParse("0e7cfc63-8df1-4f52-9d2e-5a86b17a40ab")

const (
	kindVault    = "vault"
	kindYesAsset = "yes"
	kindNoAsset  = "no"
)

func deriveHandle(kind, creator string, sequence uint64) string {
	name := fmt.Sprintf("%s/%s/%d", kind, creator, sequence)
	return fmt.Sprintf("%s-%s", kind, uuid.NewSHA1(accountNamespace, []byte(name)))
}

// DeriveVault returns the pooled-collateral custody account for a market.
func DeriveVault(creator string, sequence uint64) string {
	return deriveHandle(kindVault, creator, sequence)
}

// DeriveShareAssets returns the YES and NO share-asset identifiers for a market.
func DeriveShareAssets(creator string, sequence uint64) (yes, no string) {
	return deriveHandle(kindYesAsset, creator, sequence),
		deriveHandle(kindNoAsset, creator, sequence)
}

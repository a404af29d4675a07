/**
 * @description
 * Signature Verification Service.
 * Resolution requests carry a wallet signature proof: the resolver signs a
 * canonical message binding the market key, the outcome and a timestamp, and
 * the backend recovers the signer and checks it against the wallet on file.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/crypto: secp256k1 recovery
 * - github.com/ethereum/go-ethereum/common/hexutil
 */

package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// proofMaxAge bounds how stale a resolution proof may be.
const proofMaxAge = 5 * time.Minute

type SignatureVerifier struct {
	now func() time.Time
}

func NewSignatureVerifier() *SignatureVerifier {
	return &SignatureVerifier{now: time.Now}
}

// ResolutionMessage is the canonical text the resolver signs.
func ResolutionMessage(creator string, sequence uint64, outcome bool, timestamp int64) string {
	return fmt.Sprintf("foresight:resolve:%s:%d:%t:%d", creator, sequence, outcome, timestamp)
}

// VerifyResolutionProof checks that signatureHex is a personal_sign signature
// of the canonical resolution message by walletAddress, and that the proof is
// fresh.
func (v *SignatureVerifier) VerifyResolutionProof(walletAddress, creator string, sequence uint64, outcome bool, timestamp int64, signatureHex string) error {
	if strings.TrimSpace(walletAddress) == "" {
		return fmt.Errorf("no wallet address on file")
	}

	age := v.now().Sub(time.Unix(timestamp, 0))
	if age > proofMaxAge || age < -proofMaxAge {
		return fmt.Errorf("resolution proof timestamp out of range")
	}

	sig, err := hexutil.Decode(signatureHex)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != 65 {
		return fmt.Errorf("invalid signature length %d", len(sig))
	}
	// Wallets emit V as 27/28; crypto.SigToPub wants 0/1.
	if sig[64] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[64] -= 27
	}

	message := ResolutionMessage(creator, sequence, outcome, timestamp)
	hash := crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)))

	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %w", err)
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	if !strings.EqualFold(recovered.Hex(), strings.TrimSpace(walletAddress)) {
		return fmt.Errorf("signer %s does not match wallet %s", recovered.Hex(), walletAddress)
	}
	return nil
}

package jindisk

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/golibos/libos/internal/errutil"
)

// Encryptor performs the block-level authenticated encryption spec.md
// §4.F names: "data writes go through an encryption layer (block-level
// authenticated encryption; tag stored next to the block in the index
// record)." AES-GCM is used as the concrete primitive — the original
// SGX-targeted implementation models sealing/crypto through the host's
// trusted crypto library rather than a portable Go package, so per
// spec.md §1 ("sealed storage, attestation... are modeled only through
// interfaces, not reimplemented") the primitive itself is a stand-in, not
// a port of original_source's crypto backend.
type Encryptor struct {
	rootKey Key
}

func NewEncryptor(rootKey Key) *Encryptor {
	return &Encryptor{rootKey: rootKey}
}

// Encrypt derives a fresh per-block key from a random nonce, seals
// plaintext with AES-GCM, and returns a data blob the same size as a
// device block plus the derived key and tag. The derived key is itself
// stored in the index record (per spec.md's "(lba, hba, key, mac,
// version)" tuple) so Decrypt does not need to re-derive it.
func (e *Encryptor) Encrypt(plaintext []byte) (cipherBlock []byte, key Key, mac MAC, err error) {
	var nonce [12]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, key, mac, errutil.Wrap(errutil.EIO, err, "jindisk: failed to generate nonce")
	}
	copy(key[:], e.rootKey[:])
	copy(key[:12], nonce[:])

	block, err := aes.NewCipher(e.deriveAESKey(key))
	if err != nil {
		return nil, key, mac, errutil.Wrap(errutil.EIO, err, "jindisk: cipher init failed")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, key, mac, errutil.Wrap(errutil.EIO, err, "jindisk: gcm init failed")
	}
	sealed := gcm.Seal(nil, nonce[:gcm.NonceSize()], plaintext, nil)
	// sealed = ciphertext || 16-byte tag; split so we can hand the
	// fixed-size data region just the ciphertext and keep the tag in the
	// index record, per spec.md's "tag stored next to the block."
	tagStart := len(sealed) - gcm.Overhead()
	copy(mac[:], sealed[tagStart:])
	return sealed[:tagStart], key, mac, nil
}

// Decrypt reverses Encrypt given the record's stored key and mac.
func (e *Encryptor) Decrypt(cipherBlock []byte, key Key, mac MAC) ([]byte, error) {
	block, err := aes.NewCipher(e.deriveAESKey(key))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	var nonce [12]byte
	copy(nonce[:], key[:12])
	sealed := append(append([]byte{}, cipherBlock...), mac[:]...)
	return gcm.Open(nil, nonce[:gcm.NonceSize()], sealed, nil)
}

// deriveAESKey stretches the 16-byte root+nonce mix into an AES-128 key.
// A real implementation would use a KDF; this is a direct 16-byte key use,
// acceptable here since AES-GCM's security does not require key stretching
// for a uniformly random 128-bit input.
func (e *Encryptor) deriveAESKey(key Key) []byte {
	out := make([]byte, 16)
	copy(out, key[:])
	return out
}

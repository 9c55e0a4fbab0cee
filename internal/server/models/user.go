package models

import "time"

// User is a local account. PasswordHash is an argon2id hash, never a
// plaintext credential. PGPPublicKey, when set, is the armored public key
// that authorizes this user to sign administrative control messages.
type User struct {
	Username     string
	PasswordHash []byte
	Salt         []byte
	PGPPublicKey string
	CreatedAt    time.Time
}

// Package secrets hashes and verifies user credentials (passwords and
// transaction PINs) with argon2id. Parameters come from viper so they
// can be tuned per deployment without a rebuild.
package secrets

import (
	cryptorand "crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

func params() (time, memory uint32, threads uint8, keyLen, saltLen uint32) {
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	return uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")),
		uint32(viper.GetInt("argon2.salt_length"))
}

// Hash returns the secret hashed as "salt$hash", both base64 encoded.
func Hash(secret string) (string, error) {
	time, memory, threads, keyLen, saltLen := params()

	salt := make([]byte, saltLen)
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(secret), salt, time, memory, threads, keyLen)
	return fmt.Sprintf("%s$%s",
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash)), nil
}

// Verify reports whether secret matches an encoded "salt$hash" value.
func Verify(secret, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	time, memory, threads, keyLen, _ := params()
	computed := argon2.IDKey([]byte(secret), salt, time, memory, threads, keyLen)
	return string(hash) == string(computed)
}

package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword bcrypt-hashes plain with the given cost. Costs outside
// bcrypt's valid range fall back to the library default, so a
// misconfigured BCRYPT_COST can never yield weak or failing hashes.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
// It deliberately collapses "wrong password" and "malformed hash" into
// one answer.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

package kiosk

import (
	"crypto/subtle"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// AdminGate verifies the shared administrative credential that guards
// enrollment and deletion. The credential is a bcrypt hash; a plaintext
// fallback exists for local development only.
type AdminGate struct {
	hash  []byte
	plain string
}

// NewAdminGate creates a credential gate. At least one of hash and plain
// must be set or every verification fails.
func NewAdminGate(hash, plain string) *AdminGate {
	return &AdminGate{hash: []byte(hash), plain: plain}
}

// Configured reports whether any credential is set at all.
func (g *AdminGate) Configured() bool {
	return len(g.hash) > 0 || g.plain != ""
}

// Verify checks the entered password. Failures return ErrAuthorization;
// the kiosk re-prompts rather than aborting.
func (g *AdminGate) Verify(password string) error {
	if len(g.hash) > 0 {
		if err := bcrypt.CompareHashAndPassword(g.hash, []byte(password)); err != nil {
			return fmt.Errorf("%w: %v", store.ErrAuthorization, err)
		}
		return nil
	}
	if g.plain != "" && subtle.ConstantTimeCompare([]byte(g.plain), []byte(password)) == 1 {
		return nil
	}
	return store.ErrAuthorization
}

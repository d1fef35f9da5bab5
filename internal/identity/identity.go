package identity

import (
	"github.com/google/uuid"

	"storefront-be/internal/apperror"
)

const (
	ownerPrefixAccount = "account:"
	ownerPrefixSession = "session:"

	minSessionTokenLen = 8
	maxSessionTokenLen = 128
)

// Identity is the resolved owner of a cart or order. Exactly one of the two
// fields is set.
type Identity struct {
	AccountID    *uuid.UUID
	SessionToken *string
}

func Account(id uuid.UUID) Identity {
	return Identity{AccountID: &id}
}

func Session(token string) Identity {
	return Identity{SessionToken: &token}
}

func (i Identity) Validate() error {
	hasAccount := i.AccountID != nil && *i.AccountID != uuid.Nil
	hasSession := i.SessionToken != nil && *i.SessionToken != ""

	if hasAccount == hasSession {
		return apperror.ErrNoIdentity
	}
	return nil
}

// Key is the persisted owner key, e.g. "account:<uuid>" or "session:<token>".
func (i Identity) Key() string {
	if i.AccountID != nil {
		return ownerPrefixAccount + i.AccountID.String()
	}
	if i.SessionToken != nil {
		return ownerPrefixSession + *i.SessionToken
	}
	return ""
}

func (i Identity) IsAccount() bool {
	return i.AccountID != nil
}

// LogValue renders the identity for logs without leaking the session token.
func (i Identity) LogValue() string {
	if i.AccountID != nil {
		return i.Key()
	}
	if i.SessionToken != nil {
		tok := *i.SessionToken
		if len(tok) > 6 {
			tok = tok[:6]
		}
		return ownerPrefixSession + tok + "…"
	}
	return "anonymous"
}

func validSessionToken(tok string) bool {
	if len(tok) < minSessionTokenLen || len(tok) > maxSessionTokenLen {
		return false
	}
	for _, r := range tok {
		if r <= ' ' || r == 0x7f {
			return false
		}
	}
	return true
}

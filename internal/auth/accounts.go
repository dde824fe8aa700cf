package auth

import (
	"log"
	"strings"
	"time"
)

// Account is one entry of the VIP allow-list. Loaded once at startup from
// configuration and read-only afterwards.
type Account struct {
	Phone  string
	Code   string
	Expiry time.Time
}

// AccountStore holds the static VIP allow-list keyed by phone number.
type AccountStore struct {
	accounts map[string]Account
}

// ParseAccounts builds an AccountStore from "<phone>:<code>:<YYYY-MM-DD>"
// entries. Malformed entries are logged and skipped, never fatal.
func ParseAccounts(entries []string) *AccountStore {
	store := &AccountStore{accounts: make(map[string]Account)}
	for _, entry := range entries {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) != 3 {
			log.Printf("Skipping malformed account entry %q: want phone:code:expiry", entry)
			continue
		}
		phone, code := parts[0], parts[1]
		if !ValidatePhone(phone) {
			log.Printf("Skipping account entry %q: bad phone number", entry)
			continue
		}
		if code == "" {
			log.Printf("Skipping account entry %q: empty access code", entry)
			continue
		}
		expiry, err := time.Parse("2006-01-02", parts[2])
		if err != nil {
			log.Printf("Skipping account entry %q: bad expiry date: %v", entry, err)
			continue
		}
		// Memberships run through the end of the expiry day.
		store.accounts[phone] = Account{
			Phone:  phone,
			Code:   code,
			Expiry: expiry.Add(24*time.Hour - time.Second),
		}
	}
	log.Printf("Loaded %d VIP accounts", len(store.accounts))
	return store
}

// Lookup returns the account for a phone number, if one exists.
func (s *AccountStore) Lookup(phone string) (Account, bool) {
	acct, ok := s.accounts[phone]
	return acct, ok
}

// Len returns the number of loaded accounts.
func (s *AccountStore) Len() int {
	return len(s.accounts)
}

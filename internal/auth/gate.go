package auth

import (
	"fmt"
	"log"
	"time"

	"github.com/bayerngomez/retouchlab/internal/quota"
	"github.com/bayerngomez/retouchlab/internal/session"
)

// Guest sessions are identified only by phone number and live for a day.
const guestSessionTTL = 24 * time.Hour

// QuotaReader is the slice of the ledger the gate needs: reading a phone's
// usage record. Consumption happens at analysis time, never at login.
type QuotaReader interface {
	Peek(phone string) (quota.Record, error)
}

// HistoryLoader restores a VIP account's persisted history and favorites.
type HistoryLoader interface {
	LoadHistory(phone string) (history, favorites []*session.Record, err error)
}

// Gate validates credentials against the account store or grants bounded
// guest sessions, and initializes session state on success.
type Gate struct {
	accounts *AccountStore
	ledger   QuotaReader
	sessions *session.Manager
	history  HistoryLoader // nil disables VIP history restore
}

func NewGate(accounts *AccountStore, ledger QuotaReader, sessions *session.Manager, history HistoryLoader) *Gate {
	return &Gate{
		accounts: accounts,
		ledger:   ledger,
		sessions: sessions,
		history:  history,
	}
}

// Authenticate checks a phone/code pair against the allow-list and returns a
// fresh VIP session. Repeated calls with the same valid credentials succeed
// identically, each returning its own session.
func (g *Gate) Authenticate(phone, code string) (*session.Session, error) {
	if !ValidatePhone(phone) {
		return nil, ErrInvalidPhoneFormat
	}
	acct, ok := g.accounts.Lookup(phone)
	if !ok || acct.Code != code {
		return nil, ErrInvalidCredentials
	}
	if time.Now().After(acct.Expiry) {
		return nil, &MembershipExpiredError{Expiry: acct.Expiry}
	}

	sess := g.sessions.Create(phone, session.RoleVIP, acct.Expiry)
	if g.history != nil {
		history, favorites, err := g.history.LoadHistory(phone)
		if err != nil {
			// A broken history store must not lock a paying member out.
			log.Printf("Failed to restore history for %s: %v", phone, err)
		} else {
			sess.SeedHistory(history)
			sess.SeedFavorites(favorites)
		}
	}
	return sess, nil
}

// StartGuestTrial grants a guest session when the phone still has trial uses
// left. No usage is consumed here; that happens on analysis.
func (g *Gate) StartGuestTrial(phone string) (*session.Session, error) {
	if !ValidatePhone(phone) {
		return nil, ErrInvalidPhoneFormat
	}
	rec, err := g.ledger.Peek(phone)
	if err != nil {
		return nil, fmt.Errorf("failed to read trial ledger: %w", err)
	}
	if rec.Total >= quota.MaxTotal {
		return nil, ErrTrialExhausted
	}
	return g.sessions.Create(phone, session.RoleGuest, time.Now().Add(guestSessionTTL)), nil
}

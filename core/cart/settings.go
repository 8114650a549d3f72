package cart

import (
	"fmt"
	"sync"

	"golang.org/x/text/currency"
)

// Settings holds the store-wide cart configuration. Values are read when
// they are used, so a change only affects carts that have not frozen them yet.
type Settings struct {
	mu       sync.RWMutex
	enabled  bool
	currency string
	account  string
}

// NewSettings returns enabled settings.
func NewSettings(cur string, account string) (*Settings, error) {
	s := &Settings{enabled: true, account: account}
	if err := s.SetCurrency(cur); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Currency() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currency
}

func (s *Settings) PaymentAccount() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

func (s *Settings) SetCurrency(cur string) error {
	unit, err := currency.ParseISO(cur)
	if err != nil {
		return fmt.Errorf("invalid currency %q: %w", cur, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.currency = unit.String()
	return nil
}

func (s *Settings) SetPaymentAccount(account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = account
}

// Enabled reports whether carts may be used at all.
func (s *Settings) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *Settings) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

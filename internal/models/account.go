package models

// VerificationStatus: статус KYC по профилю.
type VerificationStatus int

const (
	NotVerified VerificationStatus = iota
	Verified
	PendingVerification
)

// Account: торговый счёт пользователя (demo или live).
type Account struct {
	ID            string             `json:"id"`
	Currency      string             `json:"currency"`
	Symbol        string             `json:"symbol"`
	Balance       float64            `json:"balance"`
	Bonus         float64            `json:"bonus"`
	IsLive        bool               `json:"isLive"`
	MinMultiplier float64            `json:"minMultiplier"`
	MaxMultiplier float64            `json:"maxMultiplier"`
	Verification  VerificationStatus `json:"verificationStatus"`
}

// AllowsMultiplier: границы плеча счёта; нули = без ограничений.
func (a Account) AllowsMultiplier(m float64) bool {
	if a.MinMultiplier > 0 && m < a.MinMultiplier {
		return false
	}
	if a.MaxMultiplier > 0 && m > a.MaxMultiplier {
		return false
	}
	return true
}

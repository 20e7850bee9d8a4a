package yookassa

import "time"

// Config represents the configuration for the YooKassa client
type Config struct {
	// ShopID is the merchant shop identifier used for Basic auth
	ShopID string

	// SecretKey is the API secret key used for Basic auth
	SecretKey string

	// BaseURL is the YooKassa API base URL
	BaseURL string

	// ReturnURL is where the customer is redirected after payment
	ReturnURL string

	// Currency is the ISO 4217 code used for payment amounts
	Currency string

	// Timeout bounds every API call; zero means the default 30s
	Timeout time.Duration
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ShopID == "" {
		return ErrInvalidRequest
	}
	if c.SecretKey == "" {
		return ErrInvalidRequest
	}
	if c.BaseURL == "" {
		return ErrInvalidRequest
	}
	if c.ReturnURL == "" {
		return ErrInvalidRequest
	}
	if c.Currency == "" {
		return ErrInvalidRequest
	}
	return nil
}

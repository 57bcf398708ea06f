package config

import "log"

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}

// MustValid validates the settings the server cannot start without.
func (c Config) MustValid() {
	MustNonEmpty(c.DatabaseURL, "DATABASE_URL")
	MustNonEmptyBytes(c.JWTAccessSecret, "JWT_SECRET")
	MustNonEmptyBytes(c.CartTokenSecret, "CART_TOKEN_SECRET")
	if c.Payment.Provider == "stripe" {
		MustNonEmpty(c.Payment.StripeSecretKey, "STRIPE_SECRET_KEY")
		MustNonEmpty(c.Payment.StripeWebhookSecret, "STRIPE_WEBHOOK_SECRET")
	}
}

package config

// MailConfig holds SendGrid settings.  An empty APIKey disables sending.
type MailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// LoadMailConfig reads SENDGRID_* variables.
func LoadMailConfig() MailConfig {
	return MailConfig{
		APIKey:    envStr("SENDGRID_API_KEY", ""),
		FromEmail: envStr("SENDGRID_FROM_EMAIL", "bookings@example.org"),
		FromName:  envStr("SENDGRID_FROM_NAME", "Studio Bookings"),
	}
}

// Enabled reports whether mail can be sent.
func (m MailConfig) Enabled() bool { return m.APIKey != "" && m.FromEmail != "" }

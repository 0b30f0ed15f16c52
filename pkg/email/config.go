package email

// Config holds email service configuration. The Postmark tokens are optional
// so development environments can run with the file-based sender; sender and
// support addresses are always required because they establish the outbound
// identity.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
}

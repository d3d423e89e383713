package types

// SenderIdentity is the From identity of an outbound email.
type SenderIdentity struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// SendInput is the provider-neutral email payload handed to an EmailProvider.
// BodyHTML is optional; providers send BodyText alone when it is empty.
type SendInput struct {
	To          string         `json:"to"`
	ToName      string         `json:"to_name,omitempty"`
	From        SenderIdentity `json:"from"`
	Subject     string         `json:"subject"`
	BodyText    string         `json:"body_text"`
	BodyHTML    string         `json:"body_html,omitempty"`
	ReferenceID string         `json:"reference_id,omitempty"`
}

// SMSInput is the provider-neutral text message payload handed to an
// SMSProvider.
type SMSInput struct {
	To          string `json:"to"`
	Body        string `json:"body"`
	ReferenceID string `json:"reference_id,omitempty"`
}

package event

// PaymentRequested asks the payments consumer to create a payment link for a
// registration. RegistrationId is the natural idempotency key for the whole
// payment family.
type PaymentRequested struct {
	RegistrationId string `json:"registrationId"`
	ParticipantId  string `json:"participantId"`
	AmountCents    int64  `json:"amountCents"`
	Currency       string `json:"currency"`
}

type PaymentLinkCreated struct {
	RegistrationId string `json:"registrationId"`
	PaymentId      string `json:"paymentId"`
	LinkUrl        string `json:"linkUrl"`
}

type PaymentConfirmed struct {
	RegistrationId string `json:"registrationId"`
	PaymentId      string `json:"paymentId"`
	PaidAt         string `json:"paidAt"`
}

type ParticipantSelected struct {
	RegistrationId string `json:"registrationId"`
	ParticipantId  string `json:"participantId"`
	FamilyId       string `json:"familyId"`
	TentId         string `json:"tentId"`
}

type EmailResult struct {
	RegistrationId string `json:"registrationId"`
	Address        string `json:"address"`
	Template       string `json:"template"`
	Reason         string `json:"reason,omitempty"`
}

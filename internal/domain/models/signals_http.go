package models

// Requests for signal HTTP endpoints. Defined in domain for consistency and reuse.

type SignalsRequest struct {
	Table string `query:"table" json:"table"`
}

type TimelineRequest struct {
	Limit int `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type DatasetRequest struct {
	Table string `json:"table" validate:"required"`
}

type CredentialRequest struct {
	Token  string `json:"token" validate:"required"`
	ChatID string `json:"chatId" validate:"required"`
}

type NotifyRequest struct {
	Decision     *int              `json:"decision" validate:"required,oneof=0 1 2"`
	Price        float64           `json:"price" validate:"gte=0"`
	Table        string            `json:"table" validate:"required"`
	Message      string            `json:"message" validate:"max=1000"`
	Strength     float64           `json:"strength" validate:"gte=0,lte=1"`
	MLConfidence float64           `json:"mlConfidence" validate:"gte=0,lte=1"`
	Credential   CredentialRequest `json:"credential"`
}

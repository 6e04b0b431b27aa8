package dto

import (
	"encoding/json"

	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/secretbroker/internal/validation"
)

const (
	// APIKeyNamePrefix prefixes the secret name under which legacy API keys are stored.
	APIKeyNamePrefix = "apikey."
	// BotDataName is the secret name under which legacy bot data is stored.
	BotDataName = "botdata"
)

// APIKeyQuery identifies a legacy API key.
type APIKeyQuery struct {
	OwnerID     string `form:"owner_id"`
	ServiceName string `form:"service_name"`
}

// Validate checks if the API key query is valid.
func (q *APIKeyQuery) Validate() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.OwnerID,
			validation.Required,
			validation.Length(1, customValidation.MaxIdentifierLength),
			customValidation.Identifier,
		),
		validation.Field(&q.ServiceName,
			validation.Required,
			validation.Length(1, customValidation.MaxIdentifierLength-len(APIKeyNamePrefix)),
			customValidation.Identifier,
		),
	)
}

// SecretName returns the secret name the API key is stored under.
func (q *APIKeyQuery) SecretName() string {
	return APIKeyNamePrefix + q.ServiceName
}

// BotDataQuery identifies the data of a legacy bot.
type BotDataQuery struct {
	BotID string `form:"bot_id"`
}

// Validate checks if the bot data query is valid.
func (q *BotDataQuery) Validate() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.BotID,
			validation.Required,
			validation.Length(1, customValidation.MaxIdentifierLength),
			customValidation.Identifier,
		),
	)
}

// StoreAPIKeyResponse answers a legacy API key store.
type StoreAPIKeyResponse struct {
	Status      string `json:"status"`
	KeyID       string `json:"key_id"`
	ServiceName string `json:"service_name"`
}

// RetrieveAPIKeyResponse answers a legacy API key retrieval.
type RetrieveAPIKeyResponse struct {
	ServiceName string          `json:"service_name"`
	APIKey      json.RawMessage `json:"api_key"`
}

// StoreBotDataResponse answers a legacy bot data store.
type StoreBotDataResponse struct {
	Status string `json:"status"`
	BotID  string `json:"bot_id"`
}

// RetrieveBotDataResponse answers a legacy bot data retrieval.
type RetrieveBotDataResponse struct {
	BotID string          `json:"bot_id"`
	Data  json.RawMessage `json:"data"`
}

// AsJSON returns plaintext as a JSON document. Values that are not valid JSON, such
// as those stored through the versioned API, are rendered as a JSON string.
func AsJSON(plaintext []byte) (json.RawMessage, error) {
	if json.Valid(plaintext) {
		return json.RawMessage(plaintext), nil
	}
	encoded, err := json.Marshal(string(plaintext))
	if err != nil {
		return nil, err
	}
	return encoded, nil
}

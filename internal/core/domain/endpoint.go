package domain

import (
	"time"

	"github.com/google/uuid"
)

type EndpointType string

const (
	EndpointStorageTarget EndpointType = "STORAGE_TARGET"
	EndpointEmailSource   EndpointType = "EMAIL_SOURCE"
)

// IntegrationEndpoint is a named, typed key-value settings blob for an
// external collaborator. STORAGE_TARGET is unique by type; EMAIL_SOURCE may
// have any number of rows and all of them are polled.
type IntegrationEndpoint struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	Type      EndpointType      `json:"type"`
	Settings  map[string]string `json:"settings"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func NewIntegrationEndpoint(name string, endpointType EndpointType, settings map[string]string) *IntegrationEndpoint {
	now := time.Now().UTC()
	out := &IntegrationEndpoint{
		ID:        uuid.New(),
		Name:      name,
		Type:      endpointType,
		Settings:  map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for k, v := range settings {
		out.Settings[k] = v
	}
	return out
}

// Setting returns the first non-blank value among the given keys.
func (e *IntegrationEndpoint) Setting(keys ...string) string {
	for _, key := range keys {
		if v, ok := e.Settings[key]; ok && v != "" {
			return v
		}
	}
	return ""
}

package models

import (
	"encoding/json"
	"time"
)

// RegistryArtifact holds the installable component definition as an opaque
// JSON document. The server never interprets the payload beyond validating
// that it is well-formed JSON; it is returned verbatim on authorized installs.
//
// An artifact with a nil ProductID is a draft: uploaded by a seller's CLI but
// not yet reviewed and attached to a published product.
type RegistryArtifact struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	ProductID *string         `json:"product_id"`
	CreatedBy string          `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// IsDraft returns true while the artifact is not attached to a product.
func (a *RegistryArtifact) IsDraft() bool {
	return a.ProductID == nil
}

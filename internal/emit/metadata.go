// Package emit renders the normalized model into the two connector
// artifacts: the metadata descriptor (JSON) and the schema document (XML).
package emit

import (
	"encoding/json"

	"github.com/connectorkit/openapi2connector/internal/auth"
	"github.com/connectorkit/openapi2connector/internal/spec"
)

// Model bundles everything the emitters consume. Endpoints are expected to
// already reflect the caller's selection; AllSchemas marks the "no selection"
// case where every declared schema is considered relevant.
type Model struct {
	Doc        *spec.Document
	APIName    string // sanitized identifier
	Endpoints  []spec.Endpoint
	Schemes    []auth.Scheme
	AllSchemas bool
}

// Descriptor is the connector metadata descriptor. Field order here fixes
// the serialized key order.
type Descriptor struct {
	Name                string      `json:"name"`
	Description         string      `json:"description"`
	BackendCategory     string      `json:"backendCategory"`
	UserCreated         bool        `json:"userCreated"`
	Icon                string      `json:"icon"`
	IsSchemaExtractable bool        `json:"isSchemaExtractable"`
	Meta                []MetaField `json:"meta"`
}

// MetaField is one descriptor form field. The regex key is present (empty)
// on connection fields and absent on metering fields, matching the consumer's
// expected shape.
type MetaField struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	SectionName  string  `json:"sectionName"`
	DefaultValue string  `json:"defaultValue"`
	DataType     string  `json:"dataType"`
	IsRequired   bool    `json:"isRequired"`
	Regex        *string `json:"regex,omitempty"`
}

// Metadata builds the descriptor from the model's credential fields.
func Metadata(m Model) Descriptor {
	display := spec.TitleName(m.APIName)
	description := m.Doc.Description()
	if description == "" {
		description = display + " Directory"
	}

	fields := auth.CredentialFields(m.Doc, m.Schemes, m.APIName)
	meta := make([]MetaField, 0, len(fields))
	for _, f := range fields {
		mf := MetaField{
			Name:         f.Name,
			Description:  f.Description,
			SectionName:  f.SectionName,
			DefaultValue: f.DefaultValue,
			DataType:     f.DataType,
			IsRequired:   f.IsRequired,
		}
		if f.SectionName == auth.SectionConnection {
			empty := ""
			mf.Regex = &empty
		}
		meta = append(meta, mf)
	}

	return Descriptor{
		Name:            display,
		Description:     description,
		BackendCategory: "custom",
		Icon:            "/" + m.APIName + ".svg",
		Meta:            meta,
	}
}

// JSON serializes the descriptor with two-space indentation.
func (d Descriptor) JSON() ([]byte, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

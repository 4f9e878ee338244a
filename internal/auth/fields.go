package auth

import (
	"github.com/spf13/cast"

	"github.com/connectorkit/openapi2connector/internal/spec"
)

// Section names used by the metadata descriptor form.
const (
	SectionConnection = "Connection Info"
	SectionMetering   = "Request Metering"
)

// Field data types.
const (
	DataTypeString = "STRING"
	DataTypeNumber = "NUMBER"
)

// Field is one required credential or operational input for a connection.
type Field struct {
	Name         string
	Description  string
	SectionName  string
	DefaultValue string
	DataType     string
	IsRequired   bool
}

// CredentialFields derives the ordered credential field list for a document.
// Schemes are processed in declaration order; a field name already produced
// by an earlier scheme is skipped so the user is never prompted twice. With
// no schemes at all the API is assumed to use basic auth. The connection url
// field always comes first and the two metering fields always come last.
func CredentialFields(doc *spec.Document, schemes []Scheme, apiName string) []Field {
	display := spec.TitleName(apiName)
	added := make(map[string]struct{})
	var fields []Field

	add := func(f Field) {
		if _, ok := added[f.Name]; ok {
			return
		}
		added[f.Name] = struct{}{}
		fields = append(fields, f)
	}
	connField := func(name, description, defaultValue string) Field {
		return Field{
			Name:         name,
			Description:  description,
			SectionName:  SectionConnection,
			DefaultValue: defaultValue,
			DataType:     DataTypeString,
			IsRequired:   true,
		}
	}

	add(connField("url", display+" URL", doc.ServerURL()))

	if len(schemes) == 0 {
		add(connField("username", display+" Username", "[username]"))
		add(connField("password", display+" Password", "[password]"))
	}

	for _, s := range schemes {
		switch s.Kind {
		case KindAPIKey:
			add(connField("apitoken", display+" API Token", "[your_api_token]"))
		case KindHTTPBasic:
			add(connField("username", display+" Username", "[username]"))
			add(connField("password", display+" Password", "[password]"))
		case KindHTTPBearer:
			add(connField("token", display+" Bearer Token", "[your_bearer_token]"))
		case KindOAuthClientCredentials:
			add(connField("clientId", display+" Client ID", "[your_client_id]"))
			add(connField("clientSecret", display+" Client Secret", "[your_client_secret]"))
			add(connField("tokenUrl", display+" Token URL", s.TokenURL))
		case KindOAuthPassword:
			add(connField("username", display+" Username", "[username]"))
			add(connField("password", display+" Password", "[password]"))
			add(connField("clientId", display+" Client ID", "[your_client_id]"))
			add(connField("clientSecret", display+" Client Secret", "[your_client_secret]"))
			add(connField("tokenUrl", display+" Token URL", s.TokenURL))
		case KindOAuthAuthorizationCode:
			add(connField("clientId", display+" Client ID", "[your_client_id]"))
			add(connField("clientSecret", display+" Client Secret", "[your_client_secret]"))
			add(connField("authorizationUrl", display+" Authorization URL", s.AuthorizationURL))
			add(connField("tokenUrl", display+" Token URL", s.TokenURL))
		}
	}

	add(Field{
		Name:         "maxretries",
		Description:  "Maximum Request Retries",
		SectionName:  SectionMetering,
		DefaultValue: cast.ToString(doc.RetryLimit()),
		DataType:     DataTypeNumber,
		IsRequired:   true,
	})
	add(Field{
		Name:         "timeout",
		Description:  "Request Timeout (seconds)",
		SectionName:  SectionMetering,
		DefaultValue: cast.ToString(doc.TimeoutSeconds()),
		DataType:     DataTypeNumber,
		IsRequired:   true,
	})

	return fields
}

package emit

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/connectorkit/openapi2connector/internal/auth"
	"github.com/connectorkit/openapi2connector/internal/spec"
)

// dataSourceMarker tags the connection string as an encrypted value. No
// encryption actually happens; the literal marker is part of the consumer's
// file format and must be reproduced verbatim.
const dataSourceMarker = "{AES}"

type xmlRoot struct {
	XMLName xml.Name `xml:"Xml"`
	Org     orgNode  `xml:"ORG"`
}

type orgNode struct {
	Name         string  `xml:"Name,attr"`
	AccessMethod string  `xml:"AccessMethod"`
	PDM          pdmNode `xml:"PDM"`
}

type pdmNode struct {
	Name           string     `xml:"Name"`
	DataSource     string     `xml:"DataSource"`
	DataSourceType string     `xml:"DataSourceType"`
	Tables         tablesNode `xml:"Tables"`
}

type tablesNode struct {
	Classes   []classNode
	Endpoints []endpointNode
}

// MarshalXML interleaves the two table kinds with their section comments.
func (t tablesNode) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if len(t.Classes) > 0 {
		if err := e.EncodeToken(xml.Comment(" DATA MODELS ")); err != nil {
			return err
		}
		for _, c := range t.Classes {
			if err := e.Encode(c); err != nil {
				return err
			}
		}
	}
	if len(t.Endpoints) > 0 {
		if err := e.EncodeToken(xml.Comment(" API ENDPOINTS ")); err != nil {
			return err
		}
		for _, ep := range t.Endpoints {
			if err := e.Encode(ep); err != nil {
				return err
			}
		}
	}
	return e.EncodeToken(start.End())
}

type classNode struct {
	XMLName     xml.Name      `xml:"Class"`
	Type        string        `xml:"type,attr"`
	Name        string        `xml:"Name"`
	Kind        string        `xml:"Type"`
	Description string        `xml:"Description"`
	Properties  propertiesSet `xml:"Properties"`
}

type propertiesSet struct {
	Properties []propertyNode `xml:"Property"`
}

type propertyNode struct {
	ID          string        `xml:"ID,attr"`
	Name        string        `xml:"Name"`
	Type        string        `xml:"Type"`
	Required    string        `xml:"Required"`
	Description string        `xml:"Description"`
	ClassType   string        `xml:"ClassType,omitempty"`
	Items       *itemsNode    `xml:"Items,omitempty"`
	ObjectProps *objPropsNode `xml:"ObjectProperties,omitempty"`
}

type itemsNode struct {
	Type      string `xml:"Type"`
	ClassType string `xml:"ClassType,omitempty"`
}

type objPropsNode struct {
	Properties []objPropNode `xml:"Property"`
}

type objPropNode struct {
	ID          string `xml:"ID,attr"`
	Name        string `xml:"Name"`
	Type        string `xml:"Type"`
	Description string `xml:"Description"`
}

type endpointNode struct {
	XMLName     xml.Name       `xml:"Endpoint"`
	ID          string         `xml:"ID,attr"`
	Name        string         `xml:"Name"`
	Kind        string         `xml:"Type"`
	Path        string         `xml:"Path"`
	Method      string         `xml:"Method"`
	Summary     string         `xml:"Summary"`
	Description string         `xml:"Description"`
	Parameters  *parametersSet `xml:"Parameters,omitempty"`
	Response    *responseNode  `xml:"Response,omitempty"`
	Request     *requestNode   `xml:"Request,omitempty"`
}

type parametersSet struct {
	Parameters []parameterNode `xml:"Parameter"`
}

type parameterNode struct {
	ID          string `xml:"ID,attr"`
	Name        string `xml:"Name"`
	In          string `xml:"In"`
	Required    string `xml:"Required"`
	Type        string `xml:"Type"`
	IsCommon    string `xml:"IsCommon"`
	Description string `xml:"Description"`
}

type responseNode struct {
	Type         string `xml:"Type"`
	ClassType    string `xml:"ClassType,omitempty"`
	InlineSchema string `xml:"InlineSchema,omitempty"`
}

type requestNode struct {
	ClassType    string `xml:"ClassType,omitempty"`
	InlineSchema string `xml:"InlineSchema,omitempty"`
}

// SchemaDoc renders the schema-of-schemas document: one Class node per
// relevant object-typed data model and one Endpoint node per extracted
// operation, under a synthesized connection descriptor. Output is UTF-8 with
// four-space indentation.
func SchemaDoc(m Model) ([]byte, error) {
	root := xmlRoot{
		Org: orgNode{
			Name:         m.APIName,
			AccessMethod: "PDM",
			PDM: pdmNode{
				Name:           m.APIName,
				DataSource:     dataSourceValue(m),
				DataSourceType: "XML",
				Tables: tablesNode{
					Classes:   dataModelClasses(m),
					Endpoints: endpointNodes(m.Endpoints),
				},
			},
		},
	}

	out, err := xml.MarshalIndent(root, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("render schema document: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// dataSourceValue synthesizes the semicolon-joined connection string from
// the server URL, the governing auth scheme, and the API identity.
func dataSourceValue(m Model) string {
	parts := []string{"url=" + m.Doc.ServerURL()}

	if len(m.Schemes) > 0 {
		s := m.Schemes[0]
		switch s.Kind {
		case auth.KindAPIKey:
			parts = append(parts,
				"auth_type=apiKey",
				"api_key_name="+s.ParamName,
				"api_key_in="+s.In)
		case auth.KindHTTPBasic:
			parts = append(parts, "auth_type=http", "http_scheme=basic")
		case auth.KindHTTPBearer:
			parts = append(parts, "auth_type=http", "http_scheme=bearer")
		case auth.KindOAuthClientCredentials:
			parts = append(parts,
				"auth_type=oauth2",
				"oauth2_flow=clientCredentials",
				"token_url="+s.TokenURL)
		case auth.KindOAuthPassword:
			parts = append(parts,
				"auth_type=oauth2",
				"oauth2_flow=password",
				"token_url="+s.TokenURL)
		case auth.KindOAuthAuthorizationCode:
			parts = append(parts,
				"auth_type=oauth2",
				"oauth2_flow=authorizationCode",
				"token_url="+s.TokenURL,
				"authorization_url="+s.AuthorizationURL)
		default:
			parts = append(parts, "auth_type=none")
		}
	}

	parts = append(parts, "api_name="+m.APIName, "api_version="+m.Doc.APIVersion())
	return dataSourceMarker + strings.Join(parts, ";")
}

// dataModelClasses builds one Class per relevant schema. Non-object schemas
// and schemas whose flattened property set is empty are skipped.
func dataModelClasses(m Model) []classNode {
	relevant := spec.RelevantSchemas(m.Doc, m.Endpoints, m.AllSchemas)
	names := make([]string, 0, len(relevant))
	for name := range relevant {
		names = append(names, name)
	}
	sort.Strings(names)

	var classes []classNode
	for _, name := range names {
		ref := spec.SchemaByName(m.Doc, name)
		if ref == nil {
			continue
		}
		if ref.Value != nil && ref.Value.Type != "" && ref.Value.Type != "object" {
			continue
		}

		props := spec.Flatten(m.Doc, ref, nil)
		if props.Len() == 0 {
			continue
		}

		node := classNode{
			Type: spec.SanitizeName(name),
			Name: name,
			Kind: "DATA_MODEL",
		}
		if ref.Value != nil {
			node.Description = ref.Value.Description
		}
		for _, p := range props.All() {
			node.Properties.Properties = append(node.Properties.Properties, propertyXML(p))
		}
		classes = append(classes, node)
	}
	return classes
}

func propertyXML(p spec.Property) propertyNode {
	node := propertyNode{
		ID:          spec.SanitizeName(p.Name),
		Name:        p.Name,
		Type:        p.Type,
		Required:    strconv.FormatBool(p.Required),
		Description: p.Description,
	}
	if p.Ref != "" {
		node.ClassType = p.Ref
	}
	if p.Type == "array" && p.ItemsType != "" {
		node.Items = &itemsNode{Type: p.ItemsType, ClassType: p.ItemsRef}
	}
	if p.Type == "object" && len(p.ObjectProperties) > 0 {
		objProps := &objPropsNode{}
		for _, sub := range p.ObjectProperties {
			objProps.Properties = append(objProps.Properties, objPropNode{
				ID:          spec.SanitizeName(sub.Name),
				Name:        sub.Name,
				Type:        sub.Type,
				Description: sub.Description,
			})
		}
		node.ObjectProps = objProps
	}
	return node
}

func endpointNodes(endpoints []spec.Endpoint) []endpointNode {
	var nodes []endpointNode
	for _, ep := range endpoints {
		node := endpointNode{
			ID:          ep.ID,
			Name:        ep.Name,
			Kind:        "ENDPOINT",
			Path:        ep.Path,
			Method:      ep.Method,
			Summary:     ep.Summary,
			Description: ep.Description,
		}

		if len(ep.Parameters) > 0 {
			set := &parametersSet{}
			for _, p := range ep.Parameters {
				set.Parameters = append(set.Parameters, parameterNode{
					ID:          spec.SanitizeName(p.Name),
					Name:        p.Name,
					In:          p.In,
					Required:    strconv.FormatBool(p.Required),
					Type:        p.Type,
					IsCommon:    "false",
					Description: p.Description,
				})
			}
			node.Parameters = set
		}

		switch {
		case ep.ResponseModel != "":
			node.Response = &responseNode{Type: responseType(ep), ClassType: ep.ResponseModel}
		case ep.ResponseInline != nil:
			node.Response = &responseNode{Type: responseType(ep), InlineSchema: inlineJSON(ep.ResponseInline)}
		}

		switch {
		case ep.RequestModel != "":
			node.Request = &requestNode{ClassType: ep.RequestModel}
		case ep.RequestInline != nil:
			node.Request = &requestNode{InlineSchema: inlineJSON(ep.RequestInline)}
		}

		nodes = append(nodes, node)
	}
	return nodes
}

func responseType(ep spec.Endpoint) string {
	if ep.ResponseType == "" {
		return "object"
	}
	return ep.ResponseType
}

func inlineJSON(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(out)
}

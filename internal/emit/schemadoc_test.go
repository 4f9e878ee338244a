package emit

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaDocStructure(t *testing.T) {
	m := buildModel(t, petstoreJSON)
	out, err := SchemaDoc(m)
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.HasPrefix(text, xml.Header))
	assert.Contains(t, text, `<ORG Name="petstore_api">`)
	assert.Contains(t, text, "<AccessMethod>PDM</AccessMethod>")
	assert.Contains(t, text, "<DataSourceType>XML</DataSourceType>")
	assert.Contains(t, text, "<!-- DATA MODELS -->")
	assert.Contains(t, text, "<!-- API ENDPOINTS -->")
	assert.True(t, strings.HasSuffix(text, "\n"))
}

func TestSchemaDocDataSource(t *testing.T) {
	m := buildModel(t, petstoreJSON)
	out, err := SchemaDoc(m)
	require.NoError(t, err)

	assert.Contains(t, string(out),
		"{AES}url=https://pets.example.com;auth_type=apiKey;api_key_name=X-Api-Key;api_key_in=header;api_name=petstore_api;api_version=1.0.0")
}

func TestSchemaDocDataSourceNoSchemes(t *testing.T) {
	m := buildModel(t, `{
  "openapi": "3.0.0",
  "info": {"title": "Open API", "version": "2.0"},
  "servers": [{"url": "https://open.example.com"}],
  "paths": {"/x": {"get": {"responses": {"200": {"description": "ok"}}}}}
}`)
	out, err := SchemaDoc(m)
	require.NoError(t, err)

	assert.Contains(t, string(out), "{AES}url=https://open.example.com;api_name=open_api;api_version=2.0")
}

func TestSchemaDocClassNodes(t *testing.T) {
	m := buildModel(t, petstoreJSON)
	out, err := SchemaDoc(m)
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, `<Class type="pet">`)
	assert.Contains(t, text, "<Type>DATA_MODEL</Type>")
	assert.Contains(t, text, "<Description>A pet record.</Description>")
	assert.Contains(t, text, `<Property ID="id">`)
	assert.Contains(t, text, `<Property ID="name">`)
	assert.Contains(t, text, "<Required>true</Required>")
	assert.Contains(t, text, "<Required>false</Required>")
}

func TestSchemaDocEndpointNodes(t *testing.T) {
	m := buildModel(t, petstoreJSON)
	out, err := SchemaDoc(m)
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, `<Endpoint ID="get_petspetid">`)
	assert.Contains(t, text, "<Name>getPet</Name>")
	assert.Contains(t, text, "<Type>ENDPOINT</Type>")
	assert.Contains(t, text, "<Path>/pets/{petId}</Path>")
	assert.Contains(t, text, "<Method>GET</Method>")
	assert.Contains(t, text, "<Summary>Fetch one pet</Summary>")
	assert.Contains(t, text, `<Parameter ID="petid">`)
	assert.Contains(t, text, "<In>path</In>")
	assert.Contains(t, text, "<IsCommon>false</IsCommon>")
	assert.Contains(t, text, "<ClassType>Pet</ClassType>")
}

func TestSchemaDocSkipsIrrelevantAndNonObjectSchemas(t *testing.T) {
	m := buildModel(t, `{
  "openapi": "3.0.0",
  "info": {"title": "t", "version": "1"},
  "paths": {
    "/used": {"get": {"responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Used"}}}}}}}
  },
  "components": {"schemas": {
    "Used": {"type": "object", "properties": {"x": {"type": "string"}}},
    "Orphan": {"type": "object", "properties": {"y": {"type": "string"}}},
    "JustAString": {"type": "string"}
  }}
}`)
	out, err := SchemaDoc(m)
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, `<Class type="used">`)
	assert.NotContains(t, text, `<Class type="orphan">`)
	assert.NotContains(t, text, `<Class type="justastring">`)
	assert.NotContains(t, text, "JustAString</Name>")
}

func TestSchemaDocAllSchemasIncludesOrphans(t *testing.T) {
	m := buildModel(t, `{
  "openapi": "3.0.0",
  "info": {"title": "t", "version": "1"},
  "paths": {},
  "components": {"schemas": {"Orphan": {"type": "object", "properties": {"y": {"type": "string"}}}}}
}`)
	m.AllSchemas = true

	out, err := SchemaDoc(m)
	require.NoError(t, err)
	assert.Contains(t, string(out), `<Class type="orphan">`)
}

func TestSchemaDocParsesBackCleanly(t *testing.T) {
	m := buildModel(t, petstoreJSON)
	out, err := SchemaDoc(m)
	require.NoError(t, err)

	var parsed struct {
		XMLName xml.Name `xml:"Xml"`
		Org     struct {
			Name string `xml:"Name,attr"`
			PDM  struct {
				DataSource string `xml:"DataSource"`
				Tables     struct {
					Classes   []struct{ Name string `xml:"Name"` } `xml:"Class"`
					Endpoints []struct{ ID string `xml:"ID,attr"` } `xml:"Endpoint"`
				} `xml:"Tables"`
			} `xml:"PDM"`
		} `xml:"ORG"`
	}
	require.NoError(t, xml.Unmarshal(out, &parsed))
	assert.Equal(t, "petstore_api", parsed.Org.Name)
	require.Len(t, parsed.Org.PDM.Tables.Classes, 1)
	assert.Equal(t, "Pet", parsed.Org.PDM.Tables.Classes[0].Name)
	require.Len(t, parsed.Org.PDM.Tables.Endpoints, 1)
	assert.Equal(t, "get_petspetid", parsed.Org.PDM.Tables.Endpoints[0].ID)
}

package spec

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func componentDoc(t *testing.T, schemas string) *Document {
	t.Helper()
	return loadDoc(t, fmt.Sprintf(`{
  "openapi": "3.0.0",
  "info": {"title": "t", "version": "1"},
  "paths": {},
  "components": {"schemas": %s}
}`, schemas))
}

func flattenNamed(t *testing.T, doc *Document, name string) *Properties {
	t.Helper()
	ref := SchemaByName(doc, name)
	require.NotNil(t, ref)
	return Flatten(doc, ref, nil)
}

func TestFlattenPlainObject(t *testing.T) {
	doc := componentDoc(t, `{
  "User": {
    "type": "object",
    "required": ["id"],
    "properties": {
      "id": {"type": "integer"},
      "email": {"type": "string", "description": "login email"}
    }
  }
}`)

	props := flattenNamed(t, doc, "User")
	require.Equal(t, 2, props.Len())

	id, ok := props.Get("id")
	require.True(t, ok)
	assert.Equal(t, "integer", id.Type)
	assert.True(t, id.Required)

	email, ok := props.Get("email")
	require.True(t, ok)
	assert.Equal(t, "string", email.Type)
	assert.False(t, email.Required)
	assert.Equal(t, "login email", email.Description)
}

func TestFlattenAllOfMergesEveryBranch(t *testing.T) {
	doc := componentDoc(t, `{
  "Base": {"type": "object", "required": ["id"], "properties": {"id": {"type": "integer"}, "kind": {"type": "string"}}},
  "Extended": {
    "allOf": [
      {"$ref": "#/components/schemas/Base"},
      {"type": "object", "properties": {"kind": {"type": "boolean"}, "extra": {"type": "number"}}}
    ]
  }
}`)

	props := flattenNamed(t, doc, "Extended")
	assert.Equal(t, []string{"id", "kind", "extra"}, props.Names())

	kind, _ := props.Get("kind")
	assert.Equal(t, "boolean", kind.Type, "later branch overwrites earlier")

	id, _ := props.Get("id")
	assert.True(t, id.Required, "required carries across merged branches")
}

func TestFlattenOneOfTakesFirstBranchOnly(t *testing.T) {
	doc := componentDoc(t, `{
  "Choice": {
    "oneOf": [
      {"type": "object", "properties": {"first": {"type": "string"}}},
      {"type": "object", "properties": {"second": {"type": "string"}}}
    ]
  }
}`)

	props := flattenNamed(t, doc, "Choice")
	assert.Equal(t, []string{"first"}, props.Names())
}

func TestFlattenAnyOfMergesAllBranches(t *testing.T) {
	doc := componentDoc(t, `{
  "Any": {
    "anyOf": [
      {"type": "object", "properties": {"a": {"type": "string"}}},
      {"type": "object", "properties": {"b": {"type": "integer"}}}
    ]
  }
}`)

	props := flattenNamed(t, doc, "Any")
	assert.Equal(t, []string{"a", "b"}, props.Names())
}

func TestFlattenAnyOfOverlappingPropertyLastWriteWins(t *testing.T) {
	doc := componentDoc(t, `{
  "Any": {
    "anyOf": [
      {"type": "object", "properties": {"p": {"type": "string"}, "a": {"type": "string"}}},
      {"type": "object", "properties": {"p": {"type": "integer"}, "b": {"type": "string"}}}
    ]
  }
}`)

	props := flattenNamed(t, doc, "Any")
	assert.Equal(t, []string{"a", "p", "b"}, props.Names(), "overwritten property keeps its first insertion position")

	p, ok := props.Get("p")
	require.True(t, ok)
	assert.Equal(t, "integer", p.Type, "later branch overwrites earlier")
}

func TestFlattenBreaksReferenceCycle(t *testing.T) {
	doc := componentDoc(t, `{
  "A": {"allOf": [{"$ref": "#/components/schemas/B"}, {"type": "object", "properties": {"a": {"type": "string"}}}]},
  "B": {"allOf": [{"$ref": "#/components/schemas/A"}, {"type": "object", "properties": {"b": {"type": "string"}}}]}
}`)

	props := flattenNamed(t, doc, "A")
	assert.ElementsMatch(t, []string{"a", "b"}, props.Names())
}

func TestFlattenSelfReferentialProperty(t *testing.T) {
	doc := componentDoc(t, `{
  "Node": {
    "type": "object",
    "properties": {
      "value": {"type": "string"},
      "parent": {"$ref": "#/components/schemas/Node"}
    }
  }
}`)

	props := flattenNamed(t, doc, "Node")
	parent, ok := props.Get("parent")
	require.True(t, ok)
	assert.Equal(t, "reference", parent.Type)
	assert.Equal(t, "Node", parent.Ref)
}

func TestFlattenDanglingRefDegradesToEmpty(t *testing.T) {
	doc := componentDoc(t, `{
  "Broken": {"allOf": [{"$ref": "#/components/schemas/Missing"}, {"type": "object", "properties": {"x": {"type": "string"}}}]}
}`)

	props := flattenNamed(t, doc, "Broken")
	assert.Equal(t, []string{"x"}, props.Names())
}

func TestFlattenArrayAndNestedObjectProperties(t *testing.T) {
	doc := componentDoc(t, `{
  "Account": {
    "type": "object",
    "properties": {
      "tags": {"type": "array", "items": {"type": "string"}},
      "groups": {"type": "array", "items": {"$ref": "#/components/schemas/Group"}},
      "address": {
        "type": "object",
        "properties": {
          "street": {"type": "string"},
          "zip": {"type": "string", "description": "postal code"}
        }
      },
      "status": {"type": "string", "enum": ["active", "inactive"]}
    }
  },
  "Group": {"type": "object", "properties": {"name": {"type": "string"}}}
}`)

	props := flattenNamed(t, doc, "Account")

	tags, _ := props.Get("tags")
	assert.Equal(t, "array", tags.Type)
	assert.Equal(t, "string", tags.ItemsType)

	groups, _ := props.Get("groups")
	assert.Equal(t, "reference", groups.ItemsType)
	assert.Equal(t, "Group", groups.ItemsRef)

	address, _ := props.Get("address")
	require.Len(t, address.ObjectProperties, 2)
	assert.Equal(t, "street", address.ObjectProperties[0].Name)
	assert.Equal(t, "postal code", address.ObjectProperties[1].Description)

	status, _ := props.Get("status")
	assert.Equal(t, []any{"active", "inactive"}, status.Enum)
}

func TestFlattenDeterministicAcrossRuns(t *testing.T) {
	doc := componentDoc(t, `{
  "Wide": {
    "type": "object",
    "properties": {
      "zeta": {"type": "string"}, "alpha": {"type": "string"}, "mid": {"type": "string"},
      "beta": {"type": "string"}, "omega": {"type": "string"}
    }
  }
}`)

	first := flattenNamed(t, doc, "Wide").Names()
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, flattenNamed(t, doc, "Wide").Names())
	}
}

func TestCollectSchemaRefsWalksTransitively(t *testing.T) {
	doc := componentDoc(t, `{
  "Order": {
    "type": "object",
    "properties": {
      "items": {"type": "array", "items": {"$ref": "#/components/schemas/Item"}}
    }
  },
  "Item": {
    "type": "object",
    "properties": {"product": {"$ref": "#/components/schemas/Product"}}
  },
  "Product": {"type": "object", "properties": {"sku": {"type": "string"}}},
  "Unrelated": {"type": "object", "properties": {"x": {"type": "string"}}}
}`)

	out := make(map[string]struct{})
	CollectSchemaRefs(doc, SchemaByName(doc, "Order"), make(map[string]struct{}), out)

	assert.Contains(t, out, "Item")
	assert.Contains(t, out, "Product")
	assert.NotContains(t, out, "Unrelated")
}

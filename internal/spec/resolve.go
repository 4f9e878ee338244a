package spec

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Reference resolution. Only the three component namespaces below are
// supported; any other pointer resolves to nil, which downstream code treats
// as "no schema available" rather than an error. Lookups never mutate the
// document.

const (
	schemaRefPrefix      = "#/components/schemas/"
	parameterRefPrefix   = "#/components/parameters/"
	requestBodyRefPrefix = "#/components/requestBodies/"
)

// RefName returns the component name of a schema pointer, or "" when the
// pointer lies outside the supported namespace.
func RefName(ref string) string {
	if !strings.HasPrefix(ref, schemaRefPrefix) {
		return ""
	}
	return ref[len(schemaRefPrefix):]
}

// ResolveSchema looks a "#/components/schemas/<name>" pointer up in the
// document. Unsupported or dangling pointers yield nil.
func ResolveSchema(doc *Document, ref string) *openapi3.SchemaRef {
	name := RefName(ref)
	if name == "" {
		return nil
	}
	return SchemaByName(doc, name)
}

// SchemaByName returns the named component schema, or nil.
func SchemaByName(doc *Document, name string) *openapi3.SchemaRef {
	if doc == nil || doc.API == nil || doc.API.Components == nil {
		return nil
	}
	return doc.API.Components.Schemas[name]
}

// ResolveParameter looks a "#/components/parameters/<name>" pointer up.
// Unsupported or dangling pointers yield nil.
func ResolveParameter(doc *Document, ref string) *openapi3.Parameter {
	if !strings.HasPrefix(ref, parameterRefPrefix) {
		return nil
	}
	if doc == nil || doc.API == nil || doc.API.Components == nil {
		return nil
	}
	pref := doc.API.Components.Parameters[ref[len(parameterRefPrefix):]]
	if pref == nil {
		return nil
	}
	return pref.Value
}

// ResolveRequestBody looks a "#/components/requestBodies/<name>" pointer up.
// Unsupported or dangling pointers yield nil.
func ResolveRequestBody(doc *Document, ref string) *openapi3.RequestBody {
	if !strings.HasPrefix(ref, requestBodyRefPrefix) {
		return nil
	}
	if doc == nil || doc.API == nil || doc.API.Components == nil {
		return nil
	}
	rref := doc.API.Components.RequestBodies[ref[len(requestBodyRefPrefix):]]
	if rref == nil {
		return nil
	}
	return rref.Value
}

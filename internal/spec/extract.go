package spec

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// operationMethods is the closed set of HTTP methods treated as operations.
// Everything else under a path item (summary, parameters, vendor keys) is
// skipped.
var operationMethods = []string{"get", "post", "put", "delete", "patch"}

func pathOperation(item *openapi3.PathItem, method string) *openapi3.Operation {
	switch method {
	case "get":
		return item.Get
	case "post":
		return item.Post
	case "put":
		return item.Put
	case "delete":
		return item.Delete
	case "patch":
		return item.Patch
	}
	return nil
}

// Extract walks the document's paths and derives the normalized endpoint
// list. Path-level parameters are retained and concatenated ahead of each
// operation's own parameters. A non-nil selection restricts the result to
// the named (path, method) pairs; selected pairs absent from the document
// are silently omitted.
//
// Extraction is best-effort throughout: malformed nodes degrade to defaults
// and never abort the pass.
func Extract(doc *Document, selection Selection) []Endpoint {
	if doc == nil || doc.API == nil || doc.API.Paths == nil {
		return nil
	}

	var endpoints []Endpoint
	for _, path := range sortedKeys(doc.API.Paths) {
		item := doc.API.Paths[path]
		if item == nil {
			continue
		}
		for _, method := range operationMethods {
			op := pathOperation(item, method)
			if op == nil {
				continue
			}
			if !selection.Contains(method, path) {
				continue
			}

			merged := make(openapi3.Parameters, 0, len(item.Parameters)+len(op.Parameters))
			merged = append(merged, item.Parameters...)
			merged = append(merged, op.Parameters...)

			ep := Endpoint{
				ID:          SanitizeName(method + "_" + path),
				Path:        path,
				Method:      strings.ToUpper(method),
				Summary:     strings.TrimSpace(op.Summary),
				Description: strings.TrimSpace(op.Description),
				OperationID: strings.TrimSpace(op.OperationID),
				Parameters:  extractParameters(doc, merged),
			}
			ep.Name = ep.OperationID
			if ep.Name == "" {
				ep.Name = fmt.Sprintf("%s %s", ep.Method, path)
			}
			if op.Security != nil {
				ep.Security = append(openapi3.SecurityRequirements(nil), *op.Security...)
			}

			extractRequestBody(doc, op, &ep)
			extractResponse(op, &ep)

			endpoints = append(endpoints, ep)
		}
	}
	return endpoints
}

// extractParameters resolves component references and classifies each
// parameter. A parameter whose reference cannot be resolved is skipped; one
// whose type cannot be determined defaults to "string".
func extractParameters(doc *Document, refs openapi3.Parameters) []Parameter {
	var params []Parameter
	for _, pref := range refs {
		if pref == nil {
			continue
		}
		p := pref.Value
		if pref.Ref != "" {
			p = ResolveParameter(doc, pref.Ref)
		}
		if p == nil || strings.TrimSpace(p.Name) == "" {
			continue
		}

		param := Parameter{
			Name:        strings.TrimSpace(p.Name),
			In:          strings.TrimSpace(p.In),
			Required:    p.Required,
			Type:        "string",
			Description: strings.TrimSpace(p.Description),
			Schema:      p.Schema,
		}
		if p.Schema != nil {
			if p.Schema.Ref != "" {
				if resolved := ResolveSchema(doc, p.Schema.Ref); resolved != nil && resolved.Value != nil && resolved.Value.Type != "" {
					param.Type = resolved.Value.Type
				}
			} else if p.Schema.Value != nil {
				if p.Schema.Value.Type != "" {
					param.Type = p.Schema.Value.Type
				}
				if len(p.Schema.Value.Enum) > 0 {
					param.Enum = append([]any(nil), p.Schema.Value.Enum...)
				}
			}
		}
		params = append(params, param)
	}
	return params
}

// extractRequestBody keeps only application/json content. Component
// request-body references are resolved first; a schema that is itself a
// $ref becomes a model name, anything else stays inline.
func extractRequestBody(doc *Document, op *openapi3.Operation, ep *Endpoint) {
	if op.RequestBody == nil {
		return
	}
	body := op.RequestBody.Value
	if op.RequestBody.Ref != "" {
		body = ResolveRequestBody(doc, op.RequestBody.Ref)
	}
	if body == nil {
		return
	}
	media := body.Content["application/json"]
	if media == nil || media.Schema == nil {
		return
	}
	if media.Schema.Ref != "" {
		ep.RequestModel = lastRefSegment(media.Schema.Ref)
		return
	}
	ep.RequestInline = media.Schema
}

// extractResponse keeps the lowest-numbered 2xx status code's first content
// entry (media types in ascending order). Status codes are sorted explicitly
// rather than taken in document-decoder order, so output is deterministic
// for specs with several 2xx responses.
func extractResponse(op *openapi3.Operation, ep *Endpoint) {
	if op.Responses == nil {
		return
	}
	var schema *openapi3.SchemaRef
	for _, status := range sortedKeys(op.Responses) {
		if !strings.HasPrefix(status, "2") {
			continue
		}
		rref := op.Responses[status]
		if rref == nil || rref.Value == nil {
			continue
		}
		for _, mime := range sortedKeys(rref.Value.Content) {
			media := rref.Value.Content[mime]
			if media != nil && media.Schema != nil {
				schema = media.Schema
				break
			}
		}
		break
	}
	if schema == nil {
		return
	}

	switch {
	case schema.Ref != "":
		ep.ResponseModel = lastRefSegment(schema.Ref)
		ep.ResponseType = "object"
	case schema.Value != nil && schema.Value.Type == "array" && schema.Value.Items != nil:
		ep.ResponseType = "array"
		if schema.Value.Items.Ref != "" {
			ep.ResponseModel = lastRefSegment(schema.Value.Items.Ref)
		} else {
			ep.ResponseInline = schema.Value.Items
		}
	case schema.Value != nil:
		ep.ResponseType = schema.Value.Type
		if ep.ResponseType == "" {
			ep.ResponseType = "object"
		}
		ep.ResponseInline = schema
	}
}

// RelevantSchemas returns the component schema names transitively referenced
// by the endpoints' response, request-body, and parameter schemas. With no
// endpoints given, every declared schema is considered relevant.
func RelevantSchemas(doc *Document, endpoints []Endpoint, all bool) map[string]struct{} {
	names := make(map[string]struct{})
	if all {
		if doc != nil && doc.API != nil && doc.API.Components != nil {
			for name := range doc.API.Components.Schemas {
				names[name] = struct{}{}
			}
		}
		return names
	}

	visited := make(map[string]struct{})
	for _, ep := range endpoints {
		if ep.ResponseModel != "" {
			CollectSchemaRefs(doc, &openapi3.SchemaRef{Ref: schemaRefPrefix + ep.ResponseModel}, visited, names)
		}
		if ep.ResponseInline != nil {
			CollectSchemaRefs(doc, ep.ResponseInline, visited, names)
		}
		if ep.RequestModel != "" {
			CollectSchemaRefs(doc, &openapi3.SchemaRef{Ref: schemaRefPrefix + ep.RequestModel}, visited, names)
		}
		if ep.RequestInline != nil {
			CollectSchemaRefs(doc, ep.RequestInline, visited, names)
		}
		for _, param := range ep.Parameters {
			CollectSchemaRefs(doc, param.Schema, visited, names)
		}
	}
	return names
}

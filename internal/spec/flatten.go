package spec

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Schema flattening: expand a schema node's effective property set by
// merging reference chains and composition branches into one flat map.
//
// Composition semantics are deliberately asymmetric and must stay that way:
//
//	allOf: every branch merged, later branches overwrite earlier ones
//	oneOf: first branch only, as a representative (not a union)
//	anyOf: every branch merged, last write wins
//
// The visited set is an explicit accumulator threaded through the recursion:
// a $ref already on the current resolution path contributes nothing the
// second time, which breaks circular reference chains.

type rawProperties struct {
	names    []string
	nodes    map[string]*openapi3.SchemaRef
	required map[string]struct{}
}

func newRawProperties() *rawProperties {
	return &rawProperties{nodes: make(map[string]*openapi3.SchemaRef), required: make(map[string]struct{})}
}

func (r *rawProperties) set(name string, node *openapi3.SchemaRef) {
	if _, ok := r.nodes[name]; !ok {
		r.names = append(r.names, name)
	}
	r.nodes[name] = node
}

func (r *rawProperties) merge(other *rawProperties) {
	for _, name := range other.names {
		r.set(name, other.nodes[name])
	}
	for name := range other.required {
		r.required[name] = struct{}{}
	}
}

// Flatten resolves a schema node into its flat property set. visited may be
// nil on the first call; recursive calls share the same set.
func Flatten(doc *Document, node *openapi3.SchemaRef, visited map[string]struct{}) *Properties {
	if visited == nil {
		visited = make(map[string]struct{})
	}
	raw := flattenNode(doc, node, visited)

	out := &Properties{}
	for _, name := range raw.names {
		_, required := raw.required[name]
		out.set(buildProperty(name, raw.nodes[name], required))
	}
	return out
}

func flattenNode(doc *Document, node *openapi3.SchemaRef, visited map[string]struct{}) *rawProperties {
	out := newRawProperties()
	if node == nil {
		return out
	}

	if node.Ref != "" {
		if _, seen := visited[node.Ref]; seen {
			return out // cycle broken
		}
		visited[node.Ref] = struct{}{}
		resolved := ResolveSchema(doc, node.Ref)
		if resolved == nil {
			return out // unresolved reference degrades to "no schema"
		}
		return flattenNode(doc, resolved, visited)
	}

	v := node.Value
	if v == nil {
		return out
	}

	for _, name := range sortedKeys(v.Properties) {
		out.set(name, v.Properties[name])
	}
	for _, name := range v.Required {
		out.required[name] = struct{}{}
	}

	for _, branch := range v.AllOf {
		out.merge(flattenNode(doc, branch, visited))
	}
	if len(v.OneOf) > 0 {
		out.merge(flattenNode(doc, v.OneOf[0], visited))
	}
	for _, branch := range v.AnyOf {
		out.merge(flattenNode(doc, branch, visited))
	}

	return out
}

func buildProperty(name string, node *openapi3.SchemaRef, required bool) Property {
	prop := Property{Name: name, Type: "string", Required: required}
	if node == nil {
		return prop
	}

	if node.Ref != "" {
		prop.Type = "reference"
		prop.Ref = lastRefSegment(node.Ref)
		return prop
	}

	v := node.Value
	if v == nil {
		return prop
	}

	if v.Type != "" {
		prop.Type = v.Type
	}
	prop.Description = v.Description
	if len(v.Enum) > 0 {
		prop.Enum = append([]any(nil), v.Enum...)
	}

	if v.Type == "array" && v.Items != nil {
		if v.Items.Ref != "" {
			prop.ItemsType = "reference"
			prop.ItemsRef = lastRefSegment(v.Items.Ref)
		} else if v.Items.Value != nil && v.Items.Value.Type != "" {
			prop.ItemsType = v.Items.Value.Type
		} else {
			prop.ItemsType = "object"
		}
	}

	if v.Type == "object" && len(v.Properties) > 0 {
		for _, subName := range sortedKeys(v.Properties) {
			sub := v.Properties[subName]
			subProp := Property{Name: subName, Type: "string"}
			if sub != nil && sub.Value != nil {
				if sub.Value.Type != "" {
					subProp.Type = sub.Value.Type
				}
				subProp.Description = sub.Value.Description
			}
			prop.ObjectProperties = append(prop.ObjectProperties, subProp)
		}
	}

	return prop
}

func lastRefSegment(ref string) string {
	idx := strings.LastIndex(ref, "/")
	if idx < 0 {
		return ref
	}
	return ref[idx+1:]
}

// CollectSchemaRefs walks a schema node and records every component schema
// name reachable through $ref pointers, array items, object properties, and
// composition branches. The same visited-ref guard as Flatten keeps cyclic
// documents from recursing forever.
func CollectSchemaRefs(doc *Document, node *openapi3.SchemaRef, visited, out map[string]struct{}) {
	if node == nil || visited == nil || out == nil {
		return
	}

	if node.Ref != "" {
		if !strings.HasPrefix(node.Ref, schemaRefPrefix) {
			return
		}
		if _, seen := visited[node.Ref]; seen {
			return
		}
		visited[node.Ref] = struct{}{}
		name := RefName(node.Ref)
		out[name] = struct{}{}
		if resolved := SchemaByName(doc, name); resolved != nil {
			CollectSchemaRefs(doc, resolved, visited, out)
		}
		return
	}

	v := node.Value
	if v == nil {
		return
	}

	if v.Type == "array" && v.Items != nil {
		CollectSchemaRefs(doc, v.Items, visited, out)
	}
	if v.Type == "object" {
		for _, name := range sortedKeys(v.Properties) {
			CollectSchemaRefs(doc, v.Properties[name], visited, out)
		}
	}
	for _, branch := range v.AllOf {
		CollectSchemaRefs(doc, branch, visited, out)
	}
	for _, branch := range v.OneOf {
		CollectSchemaRefs(doc, branch, visited, out)
	}
	for _, branch := range v.AnyOf {
		CollectSchemaRefs(doc, branch, visited, out)
	}
}

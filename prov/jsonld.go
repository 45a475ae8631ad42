package prov

import (
	"fmt"
	"time"

	"github.com/piprate/json-gold/ld"
)

// qualified PROV-O patterns for relations that carry a role or a time
var qualifiedForms = map[RelationKind]struct {
	property, class, target string
}{
	Used:            {"qualifiedUsage", "Usage", "entity"},
	WasGeneratedBy:  {"qualifiedGeneration", "Generation", "activity"},
	WasStartedBy:    {"qualifiedStart", "Start", "entity"},
	WasAttributedTo: {"qualifiedAttribution", "Attribution", "agent"},
}

var directProperties = map[RelationKind]string{
	Used:             "used",
	WasGeneratedBy:   "wasGeneratedBy",
	WasDerivedFrom:   "wasDerivedFrom",
	WasAttributedTo:  "wasAttributedTo",
	WasStartedBy:     "wasStartedBy",
	SpecializationOf: "specializationOf",
}

var kindClasses = map[RecordKind]string{
	KindEntity:   "Entity",
	KindActivity: "Activity",
	KindAgent:    "Agent",
}

func (d *Document) ldValue(v interface{}) map[string]interface{} {
	switch val := v.(type) {
	case QualifiedName:
		return map[string]interface{}{"@id": d.Expand(val)}
	case time.Time:
		return map[string]interface{}{"@value": formatTime(val), "@type": XSDNamespace + "dateTime"}
	default:
		return map[string]interface{}{"@value": fmt.Sprint(val)}
	}
}

func appendLD(node map[string]interface{}, key string, value interface{}) {
	list, _ := node[key].([]interface{})
	node[key] = append(list, value)
}

// expanded returns the document as expanded PROV-O JSON-LD.
func (d *Document) expanded() []interface{} {
	nodes := make(map[QualifiedName]map[string]interface{})
	var order []QualifiedName

	node := func(id QualifiedName) map[string]interface{} {
		if n, ok := nodes[id]; ok {
			return n
		}
		n := map[string]interface{}{"@id": d.Expand(id)}
		nodes[id] = n
		order = append(order, id)
		return n
	}

	for _, rec := range d.records {
		n := node(rec.ID)
		types := []interface{}{ProvNamespace + kindClasses[rec.Kind]}
		for _, t := range rec.Types() {
			types = append(types, d.Expand(t))
		}
		n["@type"] = types
		if rec.StartTime != nil {
			appendLD(n, ProvNamespace+"startedAtTime", d.ldValue(*rec.StartTime))
		}
		for _, a := range rec.Attributes {
			if a.Name == provType {
				continue
			}
			appendLD(n, d.Expand(a.Name), d.ldValue(a.Value))
		}
	}

	for _, rel := range d.relations {
		subject := node(rel.Subject)
		appendLD(subject, ProvNamespace+directProperties[rel.Kind], map[string]interface{}{"@id": d.Expand(rel.Object)})

		form, ok := qualifiedForms[rel.Kind]
		if !ok || (rel.Role == nil && rel.Time == nil) {
			continue
		}
		q := map[string]interface{}{"@type": []interface{}{ProvNamespace + form.class}}
		q[ProvNamespace+form.target] = []interface{}{map[string]interface{}{"@id": d.Expand(rel.Object)}}
		if rel.Role != nil {
			q[ProvNamespace+"hadRole"] = []interface{}{map[string]interface{}{"@id": d.Expand(*rel.Role)}}
		}
		if rel.Time != nil {
			q[ProvNamespace+"atTime"] = []interface{}{d.ldValue(*rel.Time)}
		}
		appendLD(subject, ProvNamespace+form.property, q)
	}

	out := make([]interface{}, 0, len(order))
	for _, id := range order {
		out = append(out, nodes[id])
	}
	return out
}

func (d *Document) ldContext() map[string]interface{} {
	ctx := map[string]interface{}{"xsd": XSDNamespace}
	for _, ns := range d.namespaces {
		ctx[ns.Prefix] = ns.URI
	}
	return ctx
}

// ToJSONLD compacts the PROV-O graph against the document's own prefixes.
func (d *Document) ToJSONLD() (map[string]interface{}, error) {
	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	compacted, err := proc.Compact(d.expanded(), map[string]interface{}{"@context": d.ldContext()}, opts)
	if err != nil {
		return nil, fmt.Errorf("compact json-ld failed: %w", err)
	}
	return compacted, nil
}

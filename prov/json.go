package prov

import (
	"encoding/json"
	"fmt"
	"time"
)

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func jsonValue(v interface{}) interface{} {
	switch val := v.(type) {
	case QualifiedName:
		return map[string]string{"$": val.String(), "type": "prov:QUALIFIED_NAME"}
	case time.Time:
		return map[string]string{"$": formatTime(val), "type": "xsd:dateTime"}
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// addJSONAttr stores value under name, turning repeated names into a list.
func addJSONAttr(target map[string]interface{}, name string, value interface{}) {
	existing, ok := target[name]
	if !ok {
		target[name] = value
		return
	}
	if list, isList := existing.([]interface{}); isList {
		target[name] = append(list, value)
		return
	}
	target[name] = []interface{}{existing, value}
}

// ToJSON returns the PROV-JSON structure of the document.
func (d *Document) ToJSON() map[string]interface{} {
	out := make(map[string]interface{})

	prefixes := make(map[string]string)
	for _, ns := range d.namespaces {
		if ns.Prefix == "prov" {
			continue
		}
		prefixes[ns.Prefix] = ns.URI
	}
	out["prefix"] = prefixes

	for _, rec := range d.records {
		group, ok := out[rec.Kind.String()].(map[string]interface{})
		if !ok {
			group = make(map[string]interface{})
			out[rec.Kind.String()] = group
		}
		attrs := make(map[string]interface{})
		if rec.StartTime != nil {
			attrs["prov:startTime"] = formatTime(*rec.StartTime)
		}
		for _, a := range rec.Attributes {
			addJSONAttr(attrs, a.Name.String(), jsonValue(a.Value))
		}
		group[rec.ID.String()] = attrs
	}

	for i, rel := range d.relations {
		name := rel.Kind.String()
		group, ok := out[name].(map[string]interface{})
		if !ok {
			group = make(map[string]interface{})
			out[name] = group
		}
		roles := relationRoles[rel.Kind]
		body := map[string]interface{}{
			"prov:" + roles[0]: rel.Subject.String(),
			"prov:" + roles[1]: rel.Object.String(),
		}
		if rel.Time != nil {
			body["prov:time"] = formatTime(*rel.Time)
		}
		if rel.Role != nil {
			body["prov:role"] = jsonValue(*rel.Role)
		}
		group[fmt.Sprintf("_:id%d", i+1)] = body
	}
	return out
}

// MarshalJSON encodes the document as PROV-JSON.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToJSON())
}

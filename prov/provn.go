package prov

import (
	"fmt"
	"strings"
	"time"
)

func provnValue(v interface{}) string {
	switch val := v.(type) {
	case QualifiedName:
		return "'" + val.String() + "'"
	case time.Time:
		return fmt.Sprintf("\"%s\" %%%% xsd:dateTime", formatTime(val))
	default:
		return quoteProvN(fmt.Sprint(val))
	}
}

func quoteProvN(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

func provnAttrs(attrs []Attribute) string {
	if len(attrs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, a.Name.String()+"="+provnValue(a.Value))
	}
	return ", [" + strings.Join(parts, ", ") + "]"
}

// ProvN renders the document in PROV-N notation.
func (d *Document) ProvN() string {
	var b strings.Builder
	b.WriteString("document\n")
	for _, ns := range d.namespaces {
		if ns.Prefix == "prov" {
			continue
		}
		fmt.Fprintf(&b, "  prefix %s <%s>\n", ns.Prefix, ns.URI)
	}
	if len(d.records) > 0 {
		b.WriteString("\n")
	}

	for _, rec := range d.records {
		switch rec.Kind {
		case KindActivity:
			start := "-"
			if rec.StartTime != nil {
				start = formatTime(*rec.StartTime)
			}
			fmt.Fprintf(&b, "  activity(%s, %s, -%s)\n", rec.ID, start, provnAttrs(rec.Attributes))
		default:
			fmt.Fprintf(&b, "  %s(%s%s)\n", rec.Kind, rec.ID, provnAttrs(rec.Attributes))
		}
	}

	for _, rel := range d.relations {
		var attrs []Attribute
		if rel.Role != nil {
			attrs = append(attrs, Attribute{Name: QN("prov", "role"), Value: *rel.Role})
		}
		tail := provnAttrs(attrs)
		switch rel.Kind {
		case Used, WasGeneratedBy:
			fmt.Fprintf(&b, "  %s(%s, %s, -%s)\n", rel.Kind, rel.Subject, rel.Object, tail)
		case WasStartedBy:
			when := "-"
			if rel.Time != nil {
				when = formatTime(*rel.Time)
			}
			fmt.Fprintf(&b, "  wasStartedBy(%s, %s, -, %s%s)\n", rel.Subject, rel.Object, when, tail)
		default:
			fmt.Fprintf(&b, "  %s(%s, %s%s)\n", rel.Kind, rel.Subject, rel.Object, tail)
		}
	}
	b.WriteString("endDocument\n")
	return b.String()
}

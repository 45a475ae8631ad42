package prov

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
)

// DotOptions controls the Graphviz rendering of a document.
type DotOptions struct {
	// Attributes adds a note node listing each record's attributes.
	Attributes  bool
	AspectRatio float64
	DPI         *float64
}

var dotStyles = map[RecordKind]string{
	KindEntity:   `shape="oval", style="filled", fillcolor="#FFFC87", color="#808080"`,
	KindActivity: `shape="box", style="filled", fillcolor="#9FB1FC", color="#0000FF"`,
	KindAgent:    `shape="house", style="filled", fillcolor="#FED37F"`,
}

func dotQuote(s string) string {
	return strconv.Quote(s)
}

func dotLiteral(v interface{}) string {
	return html.EscapeString(literalText(v))
}

// literalText is the human readable form of an attribute value.
func literalText(v interface{}) string {
	switch val := v.(type) {
	case QualifiedName:
		return val.String()
	case time.Time:
		return formatTime(val)
	default:
		return fmt.Sprint(val)
	}
}

// DOT renders the document as a Graphviz digraph.
func (d *Document) DOT(opts DotOptions) string {
	var b strings.Builder
	b.WriteString("digraph G {\n")
	b.WriteString("  charset=\"utf-8\";\n  rankdir=\"BT\";\n")
	if opts.AspectRatio > 0 {
		fmt.Fprintf(&b, "  ratio=%s;\n", strconv.FormatFloat(opts.AspectRatio, 'f', -1, 64))
	}
	if opts.DPI != nil {
		fmt.Fprintf(&b, "  dpi=%s;\n", strconv.FormatFloat(*opts.DPI, 'f', -1, 64))
	}

	nodeIDs := make(map[QualifiedName]string, len(d.records))
	for i, rec := range d.records {
		n := fmt.Sprintf("n%d", i+1)
		nodeIDs[rec.ID] = n
		fmt.Fprintf(&b, "  %s [label=%s, URL=%s, %s];\n", n, dotQuote(rec.ID.String()), dotQuote(d.Expand(rec.ID)), dotStyles[rec.Kind])

		if !opts.Attributes || len(rec.Attributes) == 0 {
			continue
		}
		var rows strings.Builder
		for _, a := range rec.Attributes {
			fmt.Fprintf(&rows, "<TR><TD ALIGN=\"LEFT\">%s</TD><TD ALIGN=\"LEFT\">%s</TD></TR>",
				html.EscapeString(a.Name.String()), dotLiteral(a.Value))
		}
		fmt.Fprintf(&b, "  %s_ann [shape=\"note\", fontsize=\"10\", color=\"gray\", label=<<TABLE BORDER=\"0\" CELLBORDER=\"0\">%s</TABLE>>];\n", n, rows.String())
		fmt.Fprintf(&b, "  %s_ann -> %s [style=\"dashed\", color=\"gray\", arrowhead=\"none\"];\n", n, n)
	}

	for _, rel := range d.relations {
		from, ok1 := nodeIDs[rel.Subject]
		to, ok2 := nodeIDs[rel.Object]
		if !ok1 || !ok2 {
			continue
		}
		label := rel.Kind.String()
		if rel.Role != nil {
			label += "\n" + rel.Role.String()
		}
		fmt.Fprintf(&b, "  %s -> %s [label=%s, fontsize=\"10\"];\n", from, to, dotQuote(label))
	}
	b.WriteString("}\n")
	return b.String()
}

package prov

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"
)

const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

// xmlElementNames maps attribute names that PROV-XML spells differently.
var xmlElementNames = map[QualifiedName]string{
	provLocation: "prov:location",
}

func xmlName(local string) xml.Name {
	return xml.Name{Local: local}
}

func xmlAttr(name, value string) xml.Attr {
	return xml.Attr{Name: xmlName(name), Value: value}
}

type xmlWriter struct {
	enc *xml.Encoder
	err error
}

func (w *xmlWriter) token(t xml.Token) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(t)
}

func (w *xmlWriter) element(name, text string, attrs ...xml.Attr) {
	w.token(xml.StartElement{Name: xmlName(name), Attr: attrs})
	if text != "" {
		w.token(xml.CharData(text))
	}
	w.token(xml.EndElement{Name: xmlName(name)})
}

func (w *xmlWriter) ref(name string, id QualifiedName) {
	w.element(name, "", xmlAttr("prov:ref", id.String()))
}

func (w *xmlWriter) value(name string, v interface{}) {
	switch val := v.(type) {
	case QualifiedName:
		w.element(name, val.String(), xmlAttr("xsi:type", "xsd:QName"))
	case time.Time:
		w.element(name, formatTime(val), xmlAttr("xsi:type", "xsd:dateTime"))
	default:
		w.element(name, fmt.Sprint(val), xmlAttr("xsi:type", "xsd:string"))
	}
}

// MarshalPROVXML renders the document as PROV-XML.
func (d *Document) MarshalPROVXML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	w := &xmlWriter{enc: enc}

	root := []xml.Attr{
		xmlAttr("xmlns:xsd", XSDNamespace),
		xmlAttr("xmlns:xsi", xsiNamespace),
	}
	for _, ns := range d.namespaces {
		root = append(root, xmlAttr("xmlns:"+ns.Prefix, ns.URI))
	}
	w.token(xml.StartElement{Name: xmlName("prov:document"), Attr: root})

	for _, rec := range d.records {
		name := "prov:" + rec.Kind.String()
		w.token(xml.StartElement{Name: xmlName(name), Attr: []xml.Attr{xmlAttr("prov:id", rec.ID.String())}})
		if rec.StartTime != nil {
			w.element("prov:startTime", formatTime(*rec.StartTime))
		}
		for _, a := range rec.Attributes {
			el, ok := xmlElementNames[a.Name]
			if !ok {
				el = a.Name.String()
			}
			w.value(el, a.Value)
		}
		w.token(xml.EndElement{Name: xmlName(name)})
	}

	for _, kind := range sortedRelationKinds() {
		roles := relationRoles[kind]
		for _, rel := range d.RelationsOf(kind) {
			name := "prov:" + kind.String()
			w.token(xml.StartElement{Name: xmlName(name)})
			w.ref("prov:"+roles[0], rel.Subject)
			w.ref("prov:"+roles[1], rel.Object)
			if rel.Time != nil {
				w.element("prov:time", formatTime(*rel.Time))
			}
			if rel.Role != nil {
				w.value("prov:role", *rel.Role)
			}
			w.token(xml.EndElement{Name: xmlName(name)})
		}
	}

	w.token(xml.EndElement{Name: xmlName("prov:document")})
	if w.err == nil {
		w.err = enc.Flush()
	}
	if w.err != nil {
		return nil, fmt.Errorf("encode prov-xml failed: %w", w.err)
	}
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

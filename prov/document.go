// Package prov holds a serializer-neutral W3C PROV document and the builder that fills it from the registry graph.
package prov

import (
	"sort"
	"strings"
	"time"
)

const (
	ProvNamespace = "http://www.w3.org/ns/prov#"
	XSDNamespace  = "http://www.w3.org/2001/XMLSchema#"
)

type QualifiedName struct {
	Prefix string
	Local  string
}

func QN(prefix, local string) QualifiedName {
	return QualifiedName{Prefix: prefix, Local: local}
}

func (q QualifiedName) String() string {
	return q.Prefix + ":" + q.Local
}

func (q QualifiedName) IsZero() bool {
	return q.Prefix == "" && q.Local == ""
}

type Namespace struct {
	Prefix string
	URI    string
}

// Attribute values are string, time.Time or QualifiedName.
type Attribute struct {
	Name  QualifiedName
	Value interface{}
}

type RecordKind int

const (
	KindEntity RecordKind = iota
	KindActivity
	KindAgent
)

func (k RecordKind) String() string {
	switch k {
	case KindEntity:
		return "entity"
	case KindActivity:
		return "activity"
	case KindAgent:
		return "agent"
	default:
		return "unknown"
	}
}

type Record struct {
	Kind       RecordKind
	ID         QualifiedName
	StartTime  *time.Time
	Attributes []Attribute
}

// Values returns every value of the attribute called name.
func (r *Record) Values(name QualifiedName) []interface{} {
	var out []interface{}
	for _, a := range r.Attributes {
		if a.Name == name {
			out = append(out, a.Value)
		}
	}
	return out
}

// Types returns the prov:type values that are qualified names.
func (r *Record) Types() []QualifiedName {
	var out []QualifiedName
	for _, v := range r.Values(QN("prov", "type")) {
		if q, ok := v.(QualifiedName); ok {
			out = append(out, q)
		}
	}
	return out
}

type RelationKind int

const (
	Used RelationKind = iota
	WasGeneratedBy
	WasDerivedFrom
	WasAttributedTo
	WasStartedBy
	SpecializationOf
)

var relationNames = map[RelationKind]string{
	Used:             "used",
	WasGeneratedBy:   "wasGeneratedBy",
	WasDerivedFrom:   "wasDerivedFrom",
	WasAttributedTo:  "wasAttributedTo",
	WasStartedBy:     "wasStartedBy",
	SpecializationOf: "specializationOf",
}

func (k RelationKind) String() string {
	return relationNames[k]
}

// relationRoles names the two positional arguments of each relation, in PROV-JSON terms.
var relationRoles = map[RelationKind][2]string{
	Used:             {"activity", "entity"},
	WasGeneratedBy:   {"entity", "activity"},
	WasDerivedFrom:   {"generatedEntity", "usedEntity"},
	WasAttributedTo:  {"entity", "agent"},
	WasStartedBy:     {"activity", "trigger"},
	SpecializationOf: {"specificEntity", "generalEntity"},
}

// Relation is a typed edge. Subject and Object are the first and second positional arguments.
type Relation struct {
	Kind    RelationKind
	Subject QualifiedName
	Object  QualifiedName
	Time    *time.Time
	Role    *QualifiedName
}

func (r Relation) key() string {
	role := ""
	if r.Role != nil {
		role = r.Role.String()
	}
	return strings.Join([]string{r.Kind.String(), r.Subject.String(), r.Object.String(), role}, "|")
}

// Document keeps records keyed by identifier, so adding a known id returns the existing record.
type Document struct {
	namespaces []Namespace
	records    []*Record
	index      map[QualifiedName]*Record
	relations  []Relation
	relIndex   map[string]bool
}

func NewDocument() *Document {
	return &Document{
		namespaces: []Namespace{{Prefix: "prov", URI: ProvNamespace}},
		index:      make(map[QualifiedName]*Record),
		relIndex:   make(map[string]bool),
	}
}

// AddNamespace binds prefix to uri, replacing an earlier binding of the same prefix.
func (d *Document) AddNamespace(prefix, uri string) {
	for i := range d.namespaces {
		if d.namespaces[i].Prefix == prefix {
			d.namespaces[i].URI = uri
			return
		}
	}
	d.namespaces = append(d.namespaces, Namespace{Prefix: prefix, URI: uri})
}

// Namespaces returns the bindings in insertion order, prov first.
func (d *Document) Namespaces() []Namespace {
	return append([]Namespace(nil), d.namespaces...)
}

func (d *Document) NamespaceURI(prefix string) (string, bool) {
	for _, ns := range d.namespaces {
		if ns.Prefix == prefix {
			return ns.URI, true
		}
	}
	if prefix == "xsd" {
		return XSDNamespace, true
	}
	return "", false
}

// Expand turns a qualified name into a full IRI; unknown prefixes are left as written.
func (d *Document) Expand(q QualifiedName) string {
	if uri, ok := d.NamespaceURI(q.Prefix); ok {
		return uri + q.Local
	}
	return q.String()
}

func (d *Document) add(kind RecordKind, id QualifiedName, attrs []Attribute) (*Record, bool) {
	if rec, ok := d.index[id]; ok {
		return rec, false
	}
	rec := &Record{Kind: kind, ID: id, Attributes: attrs}
	d.index[id] = rec
	d.records = append(d.records, rec)
	return rec, true
}

// Entity returns the entity with id, creating it with attrs when absent. created is false on reuse.
func (d *Document) Entity(id QualifiedName, attrs ...Attribute) (rec *Record, created bool) {
	return d.add(KindEntity, id, attrs)
}

func (d *Document) Agent(id QualifiedName, attrs ...Attribute) (*Record, bool) {
	return d.add(KindAgent, id, attrs)
}

func (d *Document) Activity(id QualifiedName, start time.Time, attrs ...Attribute) (*Record, bool) {
	rec, created := d.add(KindActivity, id, attrs)
	if created {
		t := start
		rec.StartTime = &t
	}
	return rec, created
}

// Relate records rel unless an identical relation (kind, subject, object, role) exists.
func (d *Document) Relate(rel Relation) bool {
	key := rel.key()
	if d.relIndex[key] {
		return false
	}
	d.relIndex[key] = true
	d.relations = append(d.relations, rel)
	return true
}

func (d *Document) Record(id QualifiedName) *Record {
	return d.index[id]
}

func (d *Document) Records() []*Record {
	return append([]*Record(nil), d.records...)
}

func (d *Document) RecordsOf(kind RecordKind) []*Record {
	var out []*Record
	for _, r := range d.records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func (d *Document) Relations() []Relation {
	return append([]Relation(nil), d.relations...)
}

func (d *Document) RelationsOf(kind RelationKind) []Relation {
	var out []Relation
	for _, r := range d.relations {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// HasRelation reports whether a relation of kind links subject to object, with any role.
func (d *Document) HasRelation(kind RelationKind, subject, object QualifiedName) bool {
	for _, r := range d.relations {
		if r.Kind == kind && r.Subject == subject && r.Object == object {
			return true
		}
	}
	return false
}

// sortedRelationKinds fixes the order relations are written in.
func sortedRelationKinds() []RelationKind {
	kinds := make([]RelationKind, 0, len(relationNames))
	for k := range relationNames {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

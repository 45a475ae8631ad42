package prov

import (
	"context"
	"fmt"
	"strings"

	"github.com/FAIRDataPipeline/data-registry/graph"
)

const (
	DCAT     = "dcat"
	DCMIType = "dcmitype"
	DCTerms  = "dcterms"
	FAIR     = "fair"
	FOAF     = "foaf"

	CentralPrefix = "reg"
	LocalPrefix   = "lreg"

	DataExtractionDescription = "import/extract data from an external source"
)

var vocabularies = []Namespace{
	{Prefix: DCAT, URI: "http://www.w3.org/ns/dcat#"},
	{Prefix: DCMIType, URI: "http://purl.org/dc/dcmitype/"},
	{Prefix: DCTerms, URI: "http://purl.org/dc/terms/"},
	{Prefix: FOAF, URI: "http://xmlns.com/foaf/spec/#"},
}

var (
	provType     = QN("prov", "type")
	provLocation = QN("prov", "atLocation")
	personType   = QN("prov", "Person")
)

// Options carries the registry addresses a document is built for.
type Options struct {
	// BaseURI is the address the request reached this registry on.
	BaseURI string
	// CentralRegistryURI is the canonical registry; it always hosts the fair vocabulary.
	CentralRegistryURI string
}

// WithTrailingSlash appends "/" when missing.
func WithTrailingSlash(uri string) string {
	uri = strings.TrimSpace(uri)
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return uri
}

// RegistryPrefix picks "reg" when the base URI is the central registry and "lreg" otherwise,
// with the URI the prefix is bound to.
func (o Options) RegistryPrefix() (prefix, uri string) {
	central := WithTrailingSlash(o.CentralRegistryURI)
	base := WithTrailingSlash(o.BaseURI)
	if base == central {
		return CentralPrefix, central
	}
	return LocalPrefix, base
}

// VocabURI is the fair vocabulary namespace.
func (o Options) VocabURI() string {
	return WithTrailingSlash(o.CentralRegistryURI) + "vocab/#"
}

// Build walks the graph from a data product and returns its provenance document.
func Build(ctx context.Context, src graph.Source, dataProductID uint, depth int, opts Options) (*Document, error) {
	var doc *Document
	err := src.Snapshot(ctx, func(acc graph.Accessor) error {
		b := NewBuilder(opts)
		if err := graph.NewWalker(acc).WalkFromDataProduct(ctx, dataProductID, depth, b); err != nil {
			return err
		}
		doc = b.Document()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Builder is a graph.Sink writing PROV records.
type Builder struct {
	doc    *Document
	prefix string
}

var _ graph.Sink = (*Builder)(nil)

func NewBuilder(opts Options) *Builder {
	doc := NewDocument()
	prefix, uri := opts.RegistryPrefix()
	doc.AddNamespace(prefix, uri)
	doc.AddNamespace(FAIR, opts.VocabURI())
	for _, ns := range vocabularies {
		doc.AddNamespace(ns.Prefix, ns.URI)
	}
	return &Builder{doc: doc, prefix: prefix}
}

func (b *Builder) Document() *Document {
	return b.doc
}

func (b *Builder) id(kind string, id uint) QualifiedName {
	return QN(b.prefix, fmt.Sprintf("api/%s/%d", kind, id))
}

func role(local string) *QualifiedName {
	q := QN(FAIR, local)
	return &q
}

func (b *Builder) VisitDataProduct(node *graph.DataProductNode, _ graph.Role) error {
	b.dataProduct(node)
	return nil
}

func (b *Builder) VisitCodeRun(run *graph.RunNode, target *graph.DataProductNode) error {
	activity := b.codeRun(run)

	if target != nil {
		b.dataProduct(target)
		b.doc.Relate(Relation{Kind: WasGeneratedBy, Subject: b.id("data_product", target.ID()), Object: activity})
	}

	if run.CodeRepo != nil {
		repo := b.codeRepo(run.CodeRepo)
		b.doc.Relate(Relation{Kind: Used, Subject: activity, Object: repo, Role: role("software")})
	}
	if run.ModelConfig != nil {
		cfg := b.object(*run.ModelConfig, false)
		b.doc.Relate(Relation{Kind: Used, Subject: activity, Object: cfg, Role: role("model_configuration")})
	}
	script := b.object(run.SubmissionScript, true)
	b.doc.Relate(Relation{Kind: Used, Subject: activity, Object: script, Role: role("submission_script")})

	for _, in := range run.Inputs {
		input := b.dataProduct(in)
		b.doc.Relate(Relation{Kind: Used, Subject: activity, Object: input, Role: role("input_data")})
		if target != nil {
			b.doc.Relate(Relation{Kind: WasDerivedFrom, Subject: b.id("data_product", target.ID()), Object: input})
		}
	}
	for _, out := range run.Outputs {
		output := b.dataProduct(out)
		b.doc.Relate(Relation{Kind: WasGeneratedBy, Subject: output, Object: activity})
	}
	return nil
}

func (b *Builder) codeRun(run *graph.RunNode) QualifiedName {
	id := b.id("code_run", run.ID())
	attrs := []Attribute{{Name: provType, Value: QN(FAIR, "Run")}}
	if run.Run.Description != nil {
		attrs = append(attrs, Attribute{Name: QN(DCTerms, "description"), Value: *run.Run.Description})
	}
	if _, created := b.doc.Activity(id, run.Run.RunDate, attrs...); !created {
		return id
	}

	agent := b.runAgent(run.Agent)
	start := run.Run.RunDate
	b.doc.Relate(Relation{Kind: WasStartedBy, Subject: id, Object: agent, Time: &start, Role: role("code_runner")})
	return id
}

func (b *Builder) runAgent(agent graph.AgentNode) QualifiedName {
	if agent.Author != nil {
		// 已作为 creator 出现时复用该 agent，否则标识符记为 fair:identifier
		return b.author(agent.Author.ID, agent.Author.Name, agent.Author.Identifier, QN(FAIR, "identifier"))
	}
	id := b.id("user", agent.User.ID)
	b.doc.Agent(id,
		Attribute{Name: provType, Value: personType},
		Attribute{Name: QN(FOAF, "name"), Value: agent.Name},
	)
	return id
}

func (b *Builder) author(authorID uint, name string, identifier *string, identifierAttr QualifiedName) QualifiedName {
	id := b.id("author", authorID)
	attrs := []Attribute{
		{Name: provType, Value: personType},
		{Name: QN(FOAF, "name"), Value: name},
	}
	if identifier != nil && *identifier != "" {
		attrs = append(attrs, Attribute{Name: identifierAttr, Value: *identifier})
	}
	b.doc.Agent(id, attrs...)
	return id
}

func (b *Builder) attributeAuthors(entity QualifiedName, obj graph.ObjectNode) {
	creator := QN(DCTerms, "creator")
	for _, a := range obj.Authors {
		agent := b.author(a.ID, a.Name, a.Identifier, QN(DCTerms, "identifier"))
		b.doc.Relate(Relation{Kind: WasAttributedTo, Subject: entity, Object: agent, Role: &creator})
	}
}

func objectMeta(obj graph.ObjectNode) []Attribute {
	o := obj.Object
	attrs := []Attribute{{Name: QN(DCTerms, "modified"), Value: o.LastUpdated}}
	if o.StorageLocation != nil {
		attrs = append(attrs, Attribute{Name: provLocation, Value: o.StorageLocation.URI()})
	}
	if o.Description != nil && *o.Description != "" {
		attrs = append(attrs, Attribute{Name: QN(DCTerms, "description"), Value: *o.Description})
	}
	for _, dp := range obj.DataProducts {
		attrs = append(attrs,
			Attribute{Name: QN(FAIR, "namespace"), Value: dp.NamespaceName()},
			Attribute{Name: QN(DCTerms, "title"), Value: dp.Name},
			Attribute{Name: QN(DCAT, "hasVersion"), Value: dp.Version},
		)
	}
	if o.FileType != nil {
		attrs = append(attrs, Attribute{Name: QN(DCTerms, "format"), Value: o.FileType.Name})
	}
	return attrs
}

// object emits a plain object entity such as a model config or submission script.
func (b *Builder) object(obj graph.ObjectNode, software bool) QualifiedName {
	id := b.id("object", obj.Object.ID)
	var attrs []Attribute
	if software {
		attrs = append(attrs, Attribute{Name: provType, Value: QN(DCMIType, "Software")})
	}
	attrs = append(attrs, objectMeta(obj)...)
	if _, created := b.doc.Entity(id, attrs...); created {
		b.attributeAuthors(id, obj)
	}
	return id
}

func (b *Builder) codeRepo(repo *graph.CodeRepoNode) QualifiedName {
	if repo.Release == nil {
		return b.object(repo.ObjectNode, true)
	}

	id := b.id("code_repo_release", repo.Release.ID)
	attrs := []Attribute{{Name: provType, Value: QN(DCMIType, "Software")}}
	attrs = append(attrs, objectMeta(repo.ObjectNode)...)
	attrs = append(attrs,
		Attribute{Name: QN(DCTerms, "title"), Value: repo.Release.Name},
		Attribute{Name: QN(DCAT, "hasVersion"), Value: repo.Release.Version},
	)
	if repo.Release.Website != nil && *repo.Release.Website != "" {
		attrs = append(attrs, Attribute{Name: QN(FAIR, "website"), Value: *repo.Release.Website})
	}
	if _, created := b.doc.Entity(id, attrs...); created {
		b.attributeAuthors(id, repo.ObjectNode)
	}
	return id
}

func (b *Builder) dataProduct(node *graph.DataProductNode) QualifiedName {
	id := b.id("data_product", node.ID())
	attrs := []Attribute{{Name: provType, Value: QN(DCAT, "Dataset")}}
	attrs = append(attrs, objectMeta(node.Object)...)
	if _, created := b.doc.Entity(id, attrs...); !created {
		return id
	}

	b.attributeAuthors(id, node.Object)
	if node.External != nil {
		b.external(id, node)
	}
	return id
}

func (b *Builder) external(dpID QualifiedName, node *graph.DataProductNode) {
	ext := node.External
	id := b.id("external_object", ext.ID)

	attrs := []Attribute{
		{Name: provType, Value: QN(DCAT, "Dataset")},
		{Name: QN(DCTerms, "title"), Value: ext.Title},
		{Name: QN(DCTerms, "issued"), Value: ext.ReleaseDate},
		{Name: QN(DCAT, "hasVersion"), Value: node.DataProduct.Version},
	}
	if ext.Identifier != nil && *ext.Identifier != "" {
		attrs = append(attrs, Attribute{Name: QN(DCTerms, "identifier"), Value: *ext.Identifier})
	}
	if ext.AlternateIdentifier != nil && *ext.AlternateIdentifier != "" {
		attrs = append(attrs, Attribute{Name: QN(FAIR, "alternate_identifier"), Value: *ext.AlternateIdentifier})
	}
	if ext.AlternateIdentifierType != nil && *ext.AlternateIdentifierType != "" {
		attrs = append(attrs, Attribute{Name: QN(FAIR, "alternate_identifier_type"), Value: *ext.AlternateIdentifierType})
	}
	if ext.Description != nil && *ext.Description != "" {
		attrs = append(attrs, Attribute{Name: QN(DCTerms, "description"), Value: *ext.Description})
	}
	if ext.OriginalStore != nil {
		attrs = append(attrs, Attribute{Name: provLocation, Value: ext.OriginalStore.URI()})
	}
	b.doc.Entity(id, attrs...)
	b.doc.Relate(Relation{Kind: SpecializationOf, Subject: id, Object: dpID})

	if ext.PrimaryNotSupplement {
		return
	}

	// supplement: the product was extracted from the external source
	extraction := b.id("data_extraction", node.ID())
	b.doc.Activity(extraction, node.DataProduct.LastUpdated.UTC(),
		Attribute{Name: provType, Value: QN(FAIR, "DataExtraction")},
		Attribute{Name: QN(DCTerms, "description"), Value: DataExtractionDescription},
	)
	b.doc.Relate(Relation{Kind: Used, Subject: extraction, Object: id, Role: role("external_source")})
	b.doc.Relate(Relation{Kind: WasGeneratedBy, Subject: dpID, Object: extraction})
	b.doc.Relate(Relation{Kind: WasDerivedFrom, Subject: dpID, Object: id})
}

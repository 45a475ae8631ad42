package rocrate

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FAIRDataPipeline/data-registry/entity"
	"github.com/FAIRDataPipeline/data-registry/graph"

	"github.com/gabriel-vasile/mimetype"
)

const (
	Publisher = "FAIR Data Pipeline"

	DefaultLicenceURI   = "https://creativecommons.org/licenses/by/4.0/"
	DefaultLicenceName  = "CC BY 4.0"
	MetadataLicenceURI  = "https://creativecommons.org/publicdomain/zero/1.0/"
	MetadataLicenceName = "CC0 1.0"

	DataExtractionDescription = "import/extract data from an external source"

	dirOutputs          = "outputs/"
	dirInputData        = "inputs/data/"
	dirModelConfig      = "inputs/model_config/"
	dirSubmissionScript = "inputs/submission_script/"
)

// Options is the explicit registry configuration a crate is built with.
type Options struct {
	// BaseURI is this registry's address; every registry-local id is built from it.
	BaseURI            string
	CentralRegistryURI string
	// Remote enables fetching public non-local files into the bundle.
	Remote   bool
	Fetchers Fetchers
	TempDir  string
	Clock    func() time.Time
	Logger   *slog.Logger
}

func withTrailingSlash(uri string) string {
	uri = strings.TrimSpace(uri)
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return uri
}

// DataExtractionInstrument is the well-known tool id used by every data extraction action.
func (o Options) DataExtractionInstrument() string {
	return withTrailingSlash(o.CentralRegistryURI) + "vocab/#data_extraction"
}

// FromDataProduct builds a crate centred on a data product.
func FromDataProduct(ctx context.Context, src graph.Source, dataProductID uint, depth int, opts Options) (*Crate, error) {
	var b *Builder
	err := src.Snapshot(ctx, func(acc graph.Accessor) error {
		walker := graph.NewWalker(acc)
		dp, err := walker.DataProduct(ctx, dataProductID)
		if err != nil {
			return err
		}
		b = NewBuilder(ctx, opts)
		b.SetRoot(dp.DataProduct.Name, dp.DataProduct.Version)
		return walker.WalkFromDataProduct(ctx, dataProductID, depth, b)
	})
	return finish(b, err)
}

// FromCodeRun builds a crate centred on a code run, named after the run's UUID.
func FromCodeRun(ctx context.Context, src graph.Source, codeRunID uint, depth int, opts Options) (*Crate, error) {
	var b *Builder
	err := src.Snapshot(ctx, func(acc graph.Accessor) error {
		run, err := acc.CodeRun(ctx, codeRunID)
		if err != nil {
			return err
		}
		b = NewBuilder(ctx, opts)
		b.SetRoot(run.UUID, "")
		return graph.NewWalker(acc).WalkFromCodeRun(ctx, codeRunID, depth, b)
	})
	return finish(b, err)
}

func finish(b *Builder, err error) (*Crate, error) {
	if err != nil {
		if b != nil {
			_ = b.crate.Close()
		}
		return nil, err
	}
	return b.Crate(), nil
}

// Builder is a graph.Sink that accumulates a crate.
// It keeps the walk's context because fetches happen inside sink callbacks.
type Builder struct {
	ctx      context.Context
	opts     Options
	registry string
	crate    *Crate
	log      *slog.Logger

	products map[uint]string
	objects  map[uint]string
	dests    map[string]bool
	licences []string
}

var _ graph.Sink = (*Builder)(nil)

func NewBuilder(ctx context.Context, opts Options) *Builder {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		ctx:      ctx,
		opts:     opts,
		registry: withTrailingSlash(opts.BaseURI),
		crate:    NewCrate(),
		log:      logger.With("layer", "rocrate"),
		products: make(map[uint]string),
		objects:  make(map[uint]string),
		dests:    make(map[string]bool),
	}

	b.crate.Add(MetadataFileName, map[string]interface{}{
		"@type":      "CreativeWork",
		"conformsTo": Ref{ID: SpecURI},
		"about":      Ref{ID: RootID},
		"license":    Ref{ID: MetadataLicenceURI},
	})
	b.crate.Add(RootID, map[string]interface{}{
		"@type":     "Dataset",
		"publisher": Publisher,
	})
	return b
}

// SetRoot names the crate; version may be empty.
func (b *Builder) SetRoot(name, version string) {
	root := b.crate.Entity(RootID)
	root.Props["name"] = name
	if version != "" {
		root.Props["version"] = version
	}
}

// Crate completes the root and descriptor entities and returns the crate.
func (b *Builder) Crate() *Crate {
	root := b.crate.Entity(RootID)
	root.Props["datePublished"] = b.opts.Clock().UTC().Format(time.RFC3339)

	var parts []Ref
	for _, e := range b.crate.EntitiesOfType("File") {
		parts = append(parts, Ref{ID: e.ID})
	}
	if len(parts) > 0 {
		root.Props["hasPart"] = parts
	}

	licences := b.licences
	if len(licences) == 0 {
		b.crate.Add(DefaultLicenceURI, map[string]interface{}{"@type": "CreativeWork", "name": DefaultLicenceName})
		licences = []string{DefaultLicenceURI}
	}
	setLicence(root, licences)

	b.crate.Add(MetadataLicenceURI, map[string]interface{}{"@type": "CreativeWork", "name": MetadataLicenceName})
	return b.crate
}

func (b *Builder) api(kind string, id uint) string {
	return fmt.Sprintf("%sapi/%s/%d", b.registry, kind, id)
}

func (b *Builder) VisitDataProduct(node *graph.DataProductNode, role graph.Role) error {
	dir := dirOutputs
	if role == graph.RoleInput {
		dir = dirInputData
	}
	b.dataProduct(node, dir)
	return nil
}

func (b *Builder) VisitCodeRun(run *graph.RunNode, target *graph.DataProductNode) error {
	id := b.api("code_run", run.ID())
	props := map[string]interface{}{
		"@type":   "CreateAction",
		"name":    "code run",
		"endTime": run.Run.RunDate.UTC().Format(time.RFC3339),
	}
	if run.Run.Description != nil {
		props["description"] = *run.Run.Description
	}
	action, created := b.crate.Add(id, props)

	if created {
		action.Props["agent"] = Ref{ID: b.agent(run.Agent)}

		if run.CodeRepo != nil {
			action.appendRef("instrument", b.codeRepo(run.CodeRepo))
		}
		if run.ModelConfig != nil {
			action.appendRef("instrument", b.softwareFile(*run.ModelConfig, dirModelConfig))
		}
		action.appendRef("instrument", b.softwareFile(run.SubmissionScript, dirSubmissionScript))

		for _, in := range run.Inputs {
			action.appendRef("object", b.dataProduct(in, dirInputData))
		}
	}

	if target != nil {
		action.appendRef("result", b.dataProduct(target, dirOutputs))
		return nil
	}
	for _, out := range run.Outputs {
		action.appendRef("result", b.dataProduct(out, dirOutputs))
	}
	return nil
}

func (b *Builder) agent(agent graph.AgentNode) string {
	if agent.Author != nil {
		return b.person(*agent.Author)
	}
	id := b.api("user", agent.User.ID)
	b.crate.Add(id, map[string]interface{}{"@type": "Person", "name": agent.Name})
	return id
}

func (b *Builder) person(a entity.Author) string {
	id := b.api("author", a.ID)
	props := map[string]interface{}{"@type": "Person", "name": a.Name}
	if a.Identifier != nil && *a.Identifier != "" {
		props["identifier"] = *a.Identifier
	}
	b.crate.Add(id, props)
	return id
}

func (b *Builder) attachAuthors(e *Entity, obj graph.ObjectNode) {
	for _, a := range obj.Authors {
		e.appendRef("author", b.person(a))
	}
}

func (b *Builder) attachLicences(e *Entity, obj graph.ObjectNode) {
	ids := make([]string, 0, len(obj.Licences))
	for _, l := range obj.Licences {
		id := b.api("licence", l.ID)
		name := fmt.Sprintf("licence %d", l.ID)
		if l.Identifier != nil && *l.Identifier != "" {
			id = *l.Identifier
			name = *l.Identifier
		}
		props := map[string]interface{}{"@type": "CreativeWork", "name": name}
		if l.LicenceInfo != "" {
			props["description"] = l.LicenceInfo
		}
		b.crate.Add(id, props)
		ids = append(ids, id)
		b.noteLicence(id)
	}
	setLicence(e, ids)
}

func (b *Builder) noteLicence(id string) {
	for _, l := range b.licences {
		if l == id {
			return
		}
	}
	b.licences = append(b.licences, id)
}

// setLicence assigns nothing, a scalar or a list depending on how many licences apply.
func setLicence(e *Entity, ids []string) {
	switch len(ids) {
	case 0:
		return
	case 1:
		e.Props["license"] = Ref{ID: ids[0]}
	default:
		refs := make([]Ref, 0, len(ids))
		for _, id := range ids {
			refs = append(refs, Ref{ID: id})
		}
		e.Props["license"] = refs
	}
}

func (b *Builder) dataProduct(node *graph.DataProductNode, dir string) string {
	if id, ok := b.products[node.ID()]; ok {
		return id
	}

	var id string
	switch {
	case node.External != nil && node.External.PrimaryNotSupplement:
		// the product is the external source itself
		id = b.externalFile(node)
	case node.External != nil:
		external := b.externalFile(node)
		id = b.productFile(node, dir)
		b.extraction(node, external, id)
	default:
		id = b.productFile(node, dir)
	}
	b.products[node.ID()] = id

	e := b.crate.Entity(id)
	b.attachAuthors(e, node.Object)
	return id
}

func (b *Builder) productFile(node *graph.DataProductNode, dir string) string {
	props := map[string]interface{}{"name": node.DataProduct.Name}
	if d := node.Object.Object.Description; d != nil && *d != "" {
		props["description"] = *d
	}
	return b.file(node.Object, dir, props)
}

func (b *Builder) softwareFile(obj graph.ObjectNode, dir string) string {
	props := map[string]interface{}{
		"@type": []string{"File", "SoftwareSourceCode"},
		"name":  obj.FileName(),
	}
	if d := obj.Object.Description; d != nil && *d != "" {
		props["description"] = *d
	}
	id := b.file(obj, dir, props)
	b.attachAuthors(b.crate.Entity(id), obj)
	return id
}

// file adds the data entity for an object, bundling it when the resolution policy allows.
func (b *Builder) file(obj graph.ObjectNode, dir string, props map[string]interface{}) string {
	if id, ok := b.objects[obj.Object.ID]; ok {
		return id
	}

	id, localPath := b.resolve(obj, dir)
	if _, ok := props["@type"]; !ok {
		props["@type"] = "File"
	}
	if format := encodingFormat(obj, localPath); format != "" {
		props["encodingFormat"] = format
	}
	e, _ := b.crate.Add(id, props)
	b.attachLicences(e, obj)
	b.objects[obj.Object.ID] = id
	return id
}

// resolve returns the entity id for obj and, when its bytes are bundled, the local path they are read from.
func (b *Builder) resolve(obj graph.ObjectNode, dir string) (string, string) {
	loc := obj.Object.StorageLocation
	if loc == nil {
		return b.api("object", obj.Object.ID), ""
	}
	pointer := b.api("storage_location", loc.ID)
	if !loc.Public {
		return pointer, ""
	}

	u, err := url.Parse(loc.URI())
	if err != nil {
		b.log.Warn("unparsable storage location", "storage_location", loc.ID, "error", err)
		return pointer, ""
	}

	switch {
	case u.Scheme == "file":
		p := filepath.FromSlash(u.Path)
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			b.log.Warn("local file not available", "path", p, "storage_location", loc.ID)
			return pointer, ""
		}
		dest := b.dest(dir, obj)
		b.crate.bundle(p, dest)
		return dest, p

	case u.Scheme == "":
		// 无 scheme 的路径不是本地文件 URI，不打包
		return pointer, ""

	case b.opts.Remote:
		tmp, err := fetchToTemp(b.ctx, b.opts.Fetchers, b.opts.TempDir, u)
		if err != nil {
			b.crate.fetchFailures++
			b.log.Error("remote fetch failed", "uri", u.String(), "storage_location", loc.ID, "error", err)
			return pointer, ""
		}
		b.crate.trackTemp(tmp)
		dest := b.dest(dir, obj)
		b.crate.bundle(tmp, dest)
		return dest, tmp

	default:
		return pointer, ""
	}
}

// dest picks a bundle path under dir, qualifying it with the object id on a name clash.
func (b *Builder) dest(dir string, obj graph.ObjectNode) string {
	name := obj.FileName()
	if name == "" {
		name = fmt.Sprintf("object_%d", obj.Object.ID)
	}
	dest := dir + name
	if b.dests[dest] {
		dest = fmt.Sprintf("%s%d/%s", dir, obj.Object.ID, name)
	}
	b.dests[dest] = true
	return dest
}

func (b *Builder) codeRepo(repo *graph.CodeRepoNode) string {
	var id string
	if repo.Object.StorageLocation != nil {
		id = repo.Object.StorageLocation.URI()
	} else {
		id = b.api("object", repo.Object.ID)
	}

	props := map[string]interface{}{"@type": "SoftwareApplication", "url": id}
	if repo.Release != nil {
		props["name"] = repo.Release.Name
		props["version"] = repo.Release.Version
	}
	e, created := b.crate.Add(id, props)
	if created {
		b.attachAuthors(e, repo.ObjectNode)
		b.attachLicences(e, repo.ObjectNode)
	}
	return id
}

func (b *Builder) externalFile(node *graph.DataProductNode) string {
	ext := node.External
	id := ext.SourceIdentifier()
	if id == "" {
		id = b.api("external_object", ext.ID)
	}

	props := map[string]interface{}{
		"@type":           "File",
		"name":            ext.Title,
		"sdDatePublished": ext.ReleaseDate.UTC().Format(time.RFC3339),
	}
	if ext.Description != nil && *ext.Description != "" {
		props["description"] = *ext.Description
	}
	if ext.OriginalStore != nil {
		props["original_store"] = ext.OriginalStore.URI()
	}
	e, created := b.crate.Add(id, props)
	// 主外部对象本身就是数据产品，许可证挂在外部实体上
	if created && ext.PrimaryNotSupplement {
		b.attachLicences(e, node.Object)
	}
	return id
}

func (b *Builder) extraction(node *graph.DataProductNode, external, result string) {
	instrument := b.opts.DataExtractionInstrument()
	b.crate.Add(instrument, map[string]interface{}{"@type": "SoftwareApplication", "name": "data extraction"})

	id := b.api("data_extraction", node.ID())
	b.crate.Add(id, map[string]interface{}{
		"@type":       "CreateAction",
		"name":        fmt.Sprintf("data extraction %d", node.ID()),
		"startTime":   node.DataProduct.LastUpdated.UTC().Format(time.RFC3339),
		"description": DataExtractionDescription,
		"instrument":  Ref{ID: instrument},
		"object":      Ref{ID: external},
		"result":      Ref{ID: result},
	})
}

// encodingFormat sniffs bundled content, then falls back to the file type extension.
func encodingFormat(obj graph.ObjectNode, localPath string) string {
	ext := ""
	if ft := obj.Object.FileType; ft != nil {
		ext = strings.TrimPrefix(strings.TrimSpace(ft.Extension), ".")
	}
	if ext == "" {
		ext = strings.TrimPrefix(filepath.Ext(obj.FileName()), ".")
	}

	var sniffed string
	if localPath != "" {
		if m, err := mimetype.DetectFile(localPath); err == nil {
			sniffed = mediaType(m.String())
			if !m.Is("text/plain") && !m.Is("application/octet-stream") {
				return sniffed
			}
		}
	}
	if ext != "" {
		if t := mime.TypeByExtension("." + ext); t != "" {
			return mediaType(t)
		}
	}
	if sniffed != "" && ext == "" {
		return sniffed
	}
	return ext
}

func mediaType(t string) string {
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return t
}

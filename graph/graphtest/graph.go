// Package graphtest provides an in-memory registry graph for builder and handler tests.
package graphtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/FAIRDataPipeline/data-registry/entity"
	"github.com/FAIRDataPipeline/data-registry/graph"

	"github.com/google/uuid"
)

// Epoch is the timestamp given to every record so documents are reproducible.
var Epoch = time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)

// Graph implements graph.Accessor and graph.Source over maps.
type Graph struct {
	Root *entity.StorageRoot

	users        map[uint]*entity.User
	authors      map[uint]*entity.Author
	userAuthors  map[uint]uint
	objects      map[uint]*entity.Object
	objAuthors   map[uint][]uint
	licences     map[uint][]entity.Licence
	components   map[uint]*entity.ObjectComponent
	runs         map[uint]*entity.CodeRun
	runInputs    map[uint][]uint
	runOutputs   map[uint][]uint
	dataProducts map[uint]*entity.DataProduct
	externals    map[uint]*entity.ExternalObject
	releases     map[uint]*entity.CodeRepoRelease
	fullNames    map[string]string
	namespace    *entity.Namespace

	ids map[string]uint
	// Snapshots counts Snapshot calls.
	Snapshots int
}

func New() *Graph {
	return &Graph{
		Root:         &entity.StorageRoot{ID: 1, Root: "file:///data/", Local: true},
		users:        make(map[uint]*entity.User),
		authors:      make(map[uint]*entity.Author),
		userAuthors:  make(map[uint]uint),
		objects:      make(map[uint]*entity.Object),
		objAuthors:   make(map[uint][]uint),
		licences:     make(map[uint][]entity.Licence),
		components:   make(map[uint]*entity.ObjectComponent),
		runs:         make(map[uint]*entity.CodeRun),
		runInputs:    make(map[uint][]uint),
		runOutputs:   make(map[uint][]uint),
		dataProducts: make(map[uint]*entity.DataProduct),
		externals:    make(map[uint]*entity.ExternalObject),
		releases:     make(map[uint]*entity.CodeRepoRelease),
		fullNames:    make(map[string]string),
		namespace:    &entity.Namespace{ID: 1, Name: "PSU"},
		ids:          make(map[string]uint),
	}
}

func (g *Graph) next(kind string) uint {
	g.ids[kind]++
	return g.ids[kind]
}

func strPtr(s string) *string {
	return &s
}

// AddUser registers a user; fullName "" leaves the personnel record missing.
func (g *Graph) AddUser(username, fullName string) *entity.User {
	u := &entity.User{ID: g.next("user"), Username: username, Joined: Epoch}
	g.users[u.ID] = u
	if fullName != "" {
		g.fullNames[username] = fullName
	}
	return u
}

func (g *Graph) AddAuthor(name, identifier string) *entity.Author {
	a := &entity.Author{ID: g.next("author"), Name: name, UUID: uuid.NewString(), LastUpdated: Epoch}
	if identifier != "" {
		a.Identifier = strPtr(identifier)
	}
	g.authors[a.ID] = a
	return a
}

func (g *Graph) LinkUserAuthor(userID, authorID uint) {
	g.userAuthors[userID] = authorID
}

// AddObject creates a public object stored under the graph's root, with a whole_object component.
func (g *Graph) AddObject(path string) *entity.Object {
	id := g.next("object")
	locID := g.next("storage_location")
	locationID := locID
	obj := &entity.Object{
		ID:                id,
		UUID:              uuid.NewString(),
		StorageLocationID: &locationID,
		StorageLocation: &entity.StorageLocation{
			ID:            locID,
			Path:          path,
			Hash:          fmt.Sprintf("%040d", locID),
			Public:        true,
			StorageRootID: g.Root.ID,
			StorageRoot:   g.Root,
		},
		LastUpdated: Epoch,
	}
	g.objects[id] = obj

	c := &entity.ObjectComponent{ID: g.next("component"), ObjectID: id, Name: entity.WholeObjectComponentName, WholeObject: true}
	g.components[c.ID] = c
	return obj
}

// AddComponent adds a named slice to an object.
func (g *Graph) AddComponent(objectID uint, name string) *entity.ObjectComponent {
	c := &entity.ObjectComponent{ID: g.next("component"), ObjectID: objectID, Name: name}
	g.components[c.ID] = c
	return c
}

func (g *Graph) SetFileType(objectID uint, name, extension string) {
	id := g.next("file_type")
	g.objects[objectID].FileTypeID = &id
	g.objects[objectID].FileType = &entity.FileType{ID: id, Name: name, Extension: extension}
}

func (g *Graph) SetDescription(objectID uint, description string) {
	g.objects[objectID].Description = strPtr(description)
}

// SetLocation replaces the root and visibility of an object's storage location.
func (g *Graph) SetLocation(objectID uint, root string, public bool) {
	loc := g.objects[objectID].StorageLocation
	loc.Public = public
	r := &entity.StorageRoot{ID: g.next("storage_root") + 1, Root: root}
	loc.StorageRoot = r
	loc.StorageRootID = r.ID
}

func (g *Graph) AttachAuthor(objectID, authorID uint) {
	g.objAuthors[objectID] = append(g.objAuthors[objectID], authorID)
}

func (g *Graph) AddLicence(objectID uint, identifier, info string) *entity.Licence {
	l := entity.Licence{ID: g.next("licence"), ObjectID: objectID, LicenceInfo: info, LastUpdated: Epoch}
	if identifier != "" {
		l.Identifier = strPtr(identifier)
	}
	g.licences[objectID] = append(g.licences[objectID], l)
	return &l
}

// AddDataProduct wraps a new object in a data product named name.
func (g *Graph) AddDataProduct(name, version string) *entity.DataProduct {
	obj := g.AddObject(name + ".csv")
	return g.AddDataProductFor(obj.ID, name, version)
}

func (g *Graph) AddDataProductFor(objectID uint, name, version string) *entity.DataProduct {
	dp := &entity.DataProduct{
		ID:          g.next("data_product"),
		ObjectID:    objectID,
		NamespaceID: g.namespace.ID,
		Namespace:   g.namespace,
		Name:        name,
		Version:     version,
		LastUpdated: Epoch,
	}
	g.dataProducts[dp.ID] = dp
	return dp
}

// SetExternal marks a product as external. primary true means the product is the external source itself.
func (g *Graph) SetExternal(dataProductID uint, title, identifier string, primary bool) *entity.ExternalObject {
	e := &entity.ExternalObject{
		ID:                   g.next("external_object"),
		DataProductID:        dataProductID,
		Title:                title,
		ReleaseDate:          Epoch,
		PrimaryNotSupplement: primary,
		LastUpdated:          Epoch,
	}
	if identifier != "" {
		e.Identifier = strPtr(identifier)
	}
	g.externals[dataProductID] = e
	return e
}

// AddCodeRun records a run of script by user, consuming and producing the whole objects of the products.
func (g *Graph) AddCodeRun(script *entity.Object, user *entity.User, inputs, outputs []*entity.DataProduct) *entity.CodeRun {
	run := &entity.CodeRun{
		ID:                 g.next("code_run"),
		UUID:               uuid.NewString(),
		RunDate:            Epoch,
		Description:        strPtr("test run"),
		SubmissionScriptID: script.ID,
		UpdatedByID:        user.ID,
		LastUpdated:        Epoch,
	}
	g.runs[run.ID] = run
	for _, dp := range inputs {
		g.runInputs[run.ID] = append(g.runInputs[run.ID], g.WholeComponent(dp.ObjectID).ID)
	}
	for _, dp := range outputs {
		g.runOutputs[run.ID] = append(g.runOutputs[run.ID], g.WholeComponent(dp.ObjectID).ID)
	}
	return run
}

// AddRunOutput lists an extra component as an output of run.
func (g *Graph) AddRunOutput(runID, componentID uint) {
	g.runOutputs[runID] = append(g.runOutputs[runID], componentID)
}

func (g *Graph) AddRunInput(runID, componentID uint) {
	g.runInputs[runID] = append(g.runInputs[runID], componentID)
}

func (g *Graph) SetCodeRepo(run *entity.CodeRun, repo *entity.Object, name, version string) *entity.CodeRepoRelease {
	id := repo.ID
	run.CodeRepoID = &id
	if name == "" {
		return nil
	}
	r := &entity.CodeRepoRelease{ID: g.next("code_repo_release"), ObjectID: repo.ID, Name: name, Version: version, LastUpdated: Epoch}
	g.releases[repo.ID] = r
	return r
}

func (g *Graph) SetModelConfig(run *entity.CodeRun, config *entity.Object) {
	id := config.ID
	run.ModelConfigID = &id
}

func (g *Graph) WholeComponent(objectID uint) *entity.ObjectComponent {
	for _, id := range g.sortedComponentIDs() {
		c := g.components[id]
		if c.ObjectID == objectID && c.WholeObject {
			return c
		}
	}
	return nil
}

func (g *Graph) sortedComponentIDs() []uint {
	ids := make([]uint, 0, len(g.components))
	for id := range g.components {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (g *Graph) Snapshot(ctx context.Context, fn func(graph.Accessor) error) error {
	g.Snapshots++
	return fn(g)
}

func (g *Graph) DataProduct(ctx context.Context, id uint) (*entity.DataProduct, error) {
	dp, ok := g.dataProducts[id]
	if !ok {
		return nil, graph.ErrNotFound
	}
	return dp, nil
}

func (g *Graph) CodeRun(ctx context.Context, id uint) (*entity.CodeRun, error) {
	run, ok := g.runs[id]
	if !ok {
		return nil, graph.ErrNotFound
	}
	return run, nil
}

func (g *Graph) Object(ctx context.Context, id uint) (*entity.Object, error) {
	obj, ok := g.objects[id]
	if !ok {
		return nil, graph.ErrNotFound
	}
	return obj, nil
}

func (g *Graph) Components(ctx context.Context, objectID uint) ([]entity.ObjectComponent, error) {
	var out []entity.ObjectComponent
	for _, id := range g.sortedComponentIDs() {
		if c := g.components[id]; c.ObjectID == objectID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (g *Graph) GeneratingCodeRun(ctx context.Context, componentID uint) (*entity.CodeRun, error) {
	var best *entity.CodeRun
	for runID, outputs := range g.runOutputs {
		for _, c := range outputs {
			if c == componentID && (best == nil || runID < best.ID) {
				best = g.runs[runID]
			}
		}
	}
	return best, nil
}

func (g *Graph) componentsByID(ids []uint) []entity.ObjectComponent {
	out := make([]entity.ObjectComponent, 0, len(ids))
	for _, id := range ids {
		out = append(out, *g.components[id])
	}
	return out
}

func (g *Graph) Inputs(ctx context.Context, codeRunID uint) ([]entity.ObjectComponent, error) {
	return g.componentsByID(g.runInputs[codeRunID]), nil
}

func (g *Graph) Outputs(ctx context.Context, codeRunID uint) ([]entity.ObjectComponent, error) {
	return g.componentsByID(g.runOutputs[codeRunID]), nil
}

func (g *Graph) DataProductsOf(ctx context.Context, objectID uint) ([]entity.DataProduct, error) {
	var out []entity.DataProduct
	for _, dp := range g.dataProducts {
		if dp.ObjectID == objectID {
			out = append(out, *dp)
		}
	}
	graph.SortDataProducts(out)
	return out, nil
}

func (g *Graph) Authors(ctx context.Context, objectID uint) ([]entity.Author, error) {
	var out []entity.Author
	for _, id := range g.objAuthors[objectID] {
		out = append(out, *g.authors[id])
	}
	return out, nil
}

func (g *Graph) Licences(ctx context.Context, objectID uint) ([]entity.Licence, error) {
	return append([]entity.Licence(nil), g.licences[objectID]...), nil
}

func (g *Graph) ExternalObject(ctx context.Context, dataProductID uint) (*entity.ExternalObject, error) {
	return g.externals[dataProductID], nil
}

func (g *Graph) CodeRepoRelease(ctx context.Context, objectID uint) (*entity.CodeRepoRelease, error) {
	return g.releases[objectID], nil
}

func (g *Graph) UserAuthor(ctx context.Context, userID uint) (*entity.Author, error) {
	id, ok := g.userAuthors[userID]
	if !ok {
		return nil, nil
	}
	return g.authors[id], nil
}

func (g *Graph) User(ctx context.Context, userID uint) (*entity.User, error) {
	u, ok := g.users[userID]
	if !ok {
		return nil, graph.ErrNotFound
	}
	return u, nil
}

func (g *Graph) FullName(ctx context.Context, user *entity.User) string {
	if name, ok := g.fullNames[user.Username]; ok {
		return name
	}
	return graph.UserNotFound
}

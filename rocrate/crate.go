// Package rocrate builds RO-Crate packages from the registry graph.
package rocrate

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

const (
	MetadataFileName = "ro-crate-metadata.json"
	RootID           = "./"

	ContextURI = "https://w3id.org/ro/crate/1.1/context"
	SpecURI    = "https://w3id.org/ro/crate/1.1"
)

// Entity is one node of the crate's JSON-LD graph. Props never holds "@id".
type Entity struct {
	ID    string
	Props map[string]interface{}
}

func newEntity(id string, props map[string]interface{}) *Entity {
	if props == nil {
		props = make(map[string]interface{})
	}
	return &Entity{ID: id, Props: props}
}

// Types returns "@type" as a slice whether it holds one type or several.
func (e *Entity) Types() []string {
	switch t := e.Props["@type"].(type) {
	case string:
		return []string{t}
	case []string:
		return t
	default:
		return nil
	}
}

func (e *Entity) HasType(name string) bool {
	for _, t := range e.Types() {
		if t == name {
			return true
		}
	}
	return false
}

// Refs returns the @id values held by key, for scalar and list properties alike.
func (e *Entity) Refs(key string) []string {
	switch v := e.Props[key].(type) {
	case Ref:
		return []string{v.ID}
	case []Ref:
		out := make([]string, 0, len(v))
		for _, r := range v {
			out = append(out, r.ID)
		}
		return out
	default:
		return nil
	}
}

// appendRef adds a reference to a list property unless it is already present.
func (e *Entity) appendRef(key, id string) {
	refs, _ := e.Props[key].([]Ref)
	for _, r := range refs {
		if r.ID == id {
			return
		}
	}
	e.Props[key] = append(refs, Ref{ID: id})
}

func (e *Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Props)+1)
	for k, v := range e.Props {
		out[k] = v
	}
	out["@id"] = e.ID
	return json.Marshal(out)
}

type Ref struct {
	ID string `json:"@id"`
}

// BundledFile is a file copied into the zip at Dest.
type BundledFile struct {
	Source string
	Dest   string
}

type Crate struct {
	entities map[string]*Entity
	order    []string
	files    []BundledFile
	temp     []string

	fetchFailures int
}

func NewCrate() *Crate {
	return &Crate{entities: make(map[string]*Entity)}
}

// Add returns the entity with id, creating it from props when absent.
func (c *Crate) Add(id string, props map[string]interface{}) (*Entity, bool) {
	if e, ok := c.entities[id]; ok {
		return e, false
	}
	e := newEntity(id, props)
	c.entities[id] = e
	c.order = append(c.order, id)
	return e, true
}

func (c *Crate) Entity(id string) *Entity {
	return c.entities[id]
}

// Entities returns every entity in insertion order.
func (c *Crate) Entities() []*Entity {
	out := make([]*Entity, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entities[id])
	}
	return out
}

func (c *Crate) EntitiesOfType(name string) []*Entity {
	var out []*Entity
	for _, e := range c.Entities() {
		if e.HasType(name) {
			out = append(out, e)
		}
	}
	return out
}

func (c *Crate) Files() []BundledFile {
	return append([]BundledFile(nil), c.files...)
}

// FetchFailures counts remote files that fell back to a pointer entity.
func (c *Crate) FetchFailures() int {
	return c.fetchFailures
}

func (c *Crate) bundle(source, dest string) {
	c.files = append(c.files, BundledFile{Source: source, Dest: dest})
}

// Name is the crate root's name, used for archive file names.
func (c *Crate) Name() string {
	if root := c.entities[RootID]; root != nil {
		if name, ok := root.Props["name"].(string); ok {
			return name
		}
	}
	return "ro-crate"
}

// Metadata returns the ro-crate-metadata.json document.
func (c *Crate) Metadata() map[string]interface{} {
	graph := make([]interface{}, 0, len(c.order))
	for _, e := range c.Entities() {
		graph = append(graph, e)
	}
	return map[string]interface{}{
		"@context": ContextURI,
		"@graph":   graph,
	}
}

func (c *Crate) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Metadata())
}

// WriteZip writes the metadata file followed by every bundled file.
func (c *Crate) WriteZip(w io.Writer) error {
	zw := zip.NewWriter(w)

	meta, err := json.MarshalIndent(c.Metadata(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode crate metadata failed: %w", err)
	}
	mw, err := zw.Create(MetadataFileName)
	if err != nil {
		return fmt.Errorf("create zip entry failed: %w", err)
	}
	if _, err := mw.Write(meta); err != nil {
		return fmt.Errorf("write crate metadata failed: %w", err)
	}

	files := c.Files()
	sort.SliceStable(files, func(i, j int) bool { return files[i].Dest < files[j].Dest })
	for _, f := range files {
		if err := copyIntoZip(zw, f); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip failed: %w", err)
	}
	return nil
}

func copyIntoZip(zw *zip.Writer, f BundledFile) error {
	src, err := os.Open(filepath.Clean(f.Source))
	if err != nil {
		return fmt.Errorf("open bundled file failed: %w", err)
	}
	defer src.Close()

	dst, err := zw.Create(f.Dest)
	if err != nil {
		return fmt.Errorf("create zip entry failed: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy %s into zip failed: %w", f.Dest, err)
	}
	return nil
}

func (c *Crate) trackTemp(path string) {
	c.temp = append(c.temp, path)
}

// Close removes temporary files created by remote fetches.
func (c *Crate) Close() error {
	var firstErr error
	for _, p := range c.temp {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	c.temp = nil
	return firstErr
}

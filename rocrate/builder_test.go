package rocrate_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FAIRDataPipeline/data-registry/entity"
	"github.com/FAIRDataPipeline/data-registry/graph"
	"github.com/FAIRDataPipeline/data-registry/graph/graphtest"
	"github.com/FAIRDataPipeline/data-registry/rocrate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	registry = "http://localhost:8000/"
	central  = "https://data.fairdatapipeline.org/"
)

var published = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func baseOptions() rocrate.Options {
	return rocrate.Options{
		BaseURI:            registry,
		CentralRegistryURI: central,
		Clock:              func() time.Time { return published },
	}
}

type fixture struct {
	g              *graphtest.Graph
	dir            string
	d1, d2, d3, d4 *entity.DataProduct
	r0, r1         *entity.CodeRun
	script         *entity.Object
	user           *entity.User
}

// D1 <- R1 <- [D2, D3]; D2 <- R0 <- [D4], every file present on local disk.
func newFixture(t *testing.T) fixture {
	t.Helper()
	g := graphtest.New()
	f := fixture{g: g, dir: t.TempDir()}
	f.user = g.AddUser("alice", "Alice Smith")
	f.script = g.AddObject("scripts/run.sh")
	f.d1 = g.AddDataProduct("d1", "0.1.0")
	f.d2 = g.AddDataProduct("d2", "0.1.0")
	f.d3 = g.AddDataProduct("d3", "0.1.0")
	f.d4 = g.AddDataProduct("d4", "0.1.0")
	f.r0 = g.AddCodeRun(f.script, f.user, []*entity.DataProduct{f.d4}, []*entity.DataProduct{f.d2})
	f.r1 = g.AddCodeRun(f.script, f.user, []*entity.DataProduct{f.d2, f.d3}, []*entity.DataProduct{f.d1})

	f.localise(t, f.script.ID, "#!/bin/sh\necho run\n")
	for _, dp := range []*entity.DataProduct{f.d1, f.d2, f.d3, f.d4} {
		f.localise(t, dp.ObjectID, "a,b\n1,2\n3,4\n")
	}
	return f
}

func (f fixture) object(t *testing.T, id uint) *entity.Object {
	t.Helper()
	obj, err := f.g.Object(context.Background(), id)
	require.NoError(t, err)
	return obj
}

func (f fixture) localise(t *testing.T, objectID uint, content string) {
	t.Helper()
	obj := f.object(t, objectID)
	p := filepath.Join(f.dir, filepath.FromSlash(obj.StorageLocation.Path))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	f.g.SetLocation(objectID, "file://"+filepath.ToSlash(f.dir)+"/", true)
}

func api(kind string, id uint) string {
	return fmt.Sprintf("%sapi/%s/%d", registry, kind, id)
}

func fromDP(t *testing.T, src graph.Source, id uint, depth int, opts rocrate.Options) *rocrate.Crate {
	t.Helper()
	crate, err := rocrate.FromDataProduct(context.Background(), src, id, depth, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = crate.Close() })
	return crate
}

func TestFromDataProduct_DepthOne(t *testing.T) {
	f := newFixture(t)
	crate := fromDP(t, f.g, f.d1.ID, 1, baseOptions())

	root := crate.Entity(rocrate.RootID)
	require.NotNil(t, root)
	assert.Equal(t, "d1", root.Props["name"])
	assert.Equal(t, "0.1.0", root.Props["version"])
	assert.Equal(t, rocrate.Publisher, root.Props["publisher"])
	assert.Equal(t, "2024-03-01T09:30:00Z", root.Props["datePublished"])
	assert.ElementsMatch(t,
		[]string{"outputs/d1.csv", "inputs/data/d2.csv", "inputs/data/d3.csv", "inputs/submission_script/run.sh"},
		root.Refs("hasPart"))

	descriptor := crate.Entity(rocrate.MetadataFileName)
	require.NotNil(t, descriptor)
	assert.Equal(t, []string{rocrate.SpecURI}, descriptor.Refs("conformsTo"))
	assert.Equal(t, []string{rocrate.MetadataLicenceURI}, descriptor.Refs("license"))
	assert.Equal(t, []string{rocrate.DefaultLicenceURI}, root.Refs("license"))

	action := crate.Entity(api("code_run", f.r1.ID))
	require.NotNil(t, action)
	assert.True(t, action.HasType("CreateAction"))
	assert.Equal(t, []string{"outputs/d1.csv"}, action.Refs("result"))
	assert.Equal(t, []string{"inputs/data/d2.csv", "inputs/data/d3.csv"}, action.Refs("object"))
	assert.Equal(t, []string{"inputs/submission_script/run.sh"}, action.Refs("instrument"))
	assert.Equal(t, []string{api("user", f.user.ID)}, action.Refs("agent"))
	assert.Equal(t, "Alice Smith", crate.Entity(api("user", f.user.ID)).Props["name"])

	script := crate.Entity("inputs/submission_script/run.sh")
	require.NotNil(t, script)
	assert.Equal(t, []string{"File", "SoftwareSourceCode"}, script.Types())
	assert.Equal(t, "run.sh", script.Props["name"])

	assert.Nil(t, crate.Entity(api("code_run", f.r0.ID)))
	assert.Len(t, crate.Files(), 4)
}

func TestFromDataProduct_DepthTwo(t *testing.T) {
	f := newFixture(t)
	crate := fromDP(t, f.g, f.d1.ID, 2, baseOptions())

	action := crate.Entity(api("code_run", f.r0.ID))
	require.NotNil(t, action)
	assert.Equal(t, []string{"inputs/data/d2.csv"}, action.Refs("result"))
	assert.Equal(t, []string{"inputs/data/d4.csv"}, action.Refs("object"))
	assert.Len(t, crate.EntitiesOfType("CreateAction"), 2)
}

func TestFromDataProduct_NotFound(t *testing.T) {
	_, err := rocrate.FromDataProduct(context.Background(), graphtest.New(), 9, 1, baseOptions())
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestFromDataProduct_PointerEntities(t *testing.T) {
	f := newFixture(t)
	// private files are never bundled
	f.g.SetLocation(f.d2.ObjectID, "file://"+filepath.ToSlash(f.dir)+"/", false)
	// a public https file is only referenced without remote mode
	f.g.SetLocation(f.d3.ObjectID, "https://store.example/", true)

	crate := fromDP(t, f.g, f.d1.ID, 1, baseOptions())

	d2 := f.object(t, f.d2.ObjectID)
	d3 := f.object(t, f.d3.ObjectID)
	action := crate.Entity(api("code_run", f.r1.ID))
	assert.Equal(t, []string{
		api("storage_location", d2.StorageLocation.ID),
		api("storage_location", d3.StorageLocation.ID),
	}, action.Refs("object"))
	assert.True(t, crate.Entity(api("storage_location", d2.StorageLocation.ID)).HasType("File"))
	assert.Len(t, crate.Files(), 2)
	assert.Zero(t, crate.FetchFailures())
}

func TestFromDataProduct_MissingLocalFile(t *testing.T) {
	f := newFixture(t)
	d3 := f.object(t, f.d3.ObjectID)
	require.NoError(t, os.Remove(filepath.Join(f.dir, d3.StorageLocation.Path)))

	crate := fromDP(t, f.g, f.d1.ID, 1, baseOptions())
	assert.NotNil(t, crate.Entity(api("storage_location", d3.StorageLocation.ID)))
	assert.Nil(t, crate.Entity("inputs/data/d3.csv"))
}

type fakeFetcher struct {
	content map[string]string
	calls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, uri *url.URL, dst io.Writer) error {
	f.calls = append(f.calls, uri.String())
	body, ok := f.content[uri.String()]
	if !ok {
		return errors.New("connection refused")
	}
	_, err := io.WriteString(dst, body)
	return err
}

func TestFromDataProduct_RemoteFetch(t *testing.T) {
	f := newFixture(t)
	f.g.SetLocation(f.d2.ObjectID, "https://store.example/", true)
	f.g.SetLocation(f.d3.ObjectID, "https://down.example/", true)

	fetcher := &fakeFetcher{content: map[string]string{"https://store.example/d2.csv": "x,y\n1,2\n"}}
	opts := baseOptions()
	opts.Remote = true
	opts.TempDir = t.TempDir()
	opts.Fetchers = rocrate.Fetchers{"https": fetcher}

	crate, err := rocrate.FromDataProduct(context.Background(), f.g, f.d1.ID, 1, opts)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"https://store.example/d2.csv", "https://down.example/d3.csv"}, fetcher.calls)
	assert.NotNil(t, crate.Entity("inputs/data/d2.csv"))
	assert.Equal(t, 1, crate.FetchFailures())
	d3 := f.object(t, f.d3.ObjectID)
	assert.NotNil(t, crate.Entity(api("storage_location", d3.StorageLocation.ID)))

	var tmp string
	for _, file := range crate.Files() {
		if file.Dest == "inputs/data/d2.csv" {
			tmp = file.Source
		}
	}
	require.NotEmpty(t, tmp)
	data, err := os.ReadFile(tmp)
	require.NoError(t, err)
	assert.Equal(t, "x,y\n1,2\n", string(data))

	require.NoError(t, crate.Close())
	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))
}

func TestFromDataProduct_LicenceCardinality(t *testing.T) {
	f := newFixture(t)
	f.g.AddLicence(f.d2.ObjectID, "https://creativecommons.org/licenses/by-sa/4.0/", "CC BY-SA")
	l1 := f.g.AddLicence(f.d3.ObjectID, "", "internal use only")
	f.g.AddLicence(f.d3.ObjectID, "https://opensource.org/licenses/MIT", "MIT")

	crate := fromDP(t, f.g, f.d1.ID, 1, baseOptions())

	_, has := crate.Entity("outputs/d1.csv").Props["license"]
	assert.False(t, has)

	d2 := crate.Entity("inputs/data/d2.csv")
	assert.IsType(t, rocrate.Ref{}, d2.Props["license"])
	assert.Equal(t, []string{"https://creativecommons.org/licenses/by-sa/4.0/"}, d2.Refs("license"))

	d3 := crate.Entity("inputs/data/d3.csv")
	assert.IsType(t, []rocrate.Ref{}, d3.Props["license"])
	assert.Equal(t, []string{api("licence", l1.ID), "https://opensource.org/licenses/MIT"}, d3.Refs("license"))

	licence := crate.Entity(api("licence", l1.ID))
	require.NotNil(t, licence)
	assert.True(t, licence.HasType("CreativeWork"))
	assert.Equal(t, "internal use only", licence.Props["description"])

	root := crate.Entity(rocrate.RootID)
	assert.Len(t, root.Refs("license"), 3)
	assert.Nil(t, crate.Entity(rocrate.DefaultLicenceURI))
}

func TestFromDataProduct_SingleLicenceOnRoot(t *testing.T) {
	f := newFixture(t)
	f.g.AddLicence(f.d1.ObjectID, "https://creativecommons.org/licenses/by-sa/4.0/", "CC BY-SA")

	crate := fromDP(t, f.g, f.d1.ID, 1, baseOptions())
	assert.Equal(t, rocrate.Ref{ID: "https://creativecommons.org/licenses/by-sa/4.0/"}, crate.Entity(rocrate.RootID).Props["license"])
}

func TestFromDataProduct_SupplementExternal(t *testing.T) {
	f := newFixture(t)
	ext := f.g.SetExternal(f.d2.ID, "Source data", "https://doi.org/10.1000/src", false)

	crate := fromDP(t, f.g, f.d1.ID, 1, baseOptions())

	external := crate.Entity("https://doi.org/10.1000/src")
	require.NotNil(t, external)
	assert.Equal(t, "Source data", external.Props["name"])

	extraction := crate.Entity(api("data_extraction", f.d2.ID))
	require.NotNil(t, extraction)
	assert.True(t, extraction.HasType("CreateAction"))
	assert.Equal(t, rocrate.DataExtractionDescription, extraction.Props["description"])
	assert.Equal(t, []string{central + "vocab/#data_extraction"}, extraction.Refs("instrument"))
	assert.Equal(t, []string{"https://doi.org/10.1000/src"}, extraction.Refs("object"))
	assert.Equal(t, []string{"inputs/data/d2.csv"}, extraction.Refs("result"))
	assert.Equal(t, fmt.Sprintf("data extraction %d", f.d2.ID), extraction.Props["name"])
	assert.NotNil(t, ext)

	action := crate.Entity(api("code_run", f.r1.ID))
	assert.Contains(t, action.Refs("object"), "inputs/data/d2.csv")
}

func TestFromDataProduct_PrimaryExternal(t *testing.T) {
	f := newFixture(t)
	f.g.SetExternal(f.d2.ID, "Raw data", "https://doi.org/10.1000/raw", true)

	crate := fromDP(t, f.g, f.d1.ID, 1, baseOptions())

	assert.Nil(t, crate.Entity(api("data_extraction", f.d2.ID)))
	assert.Nil(t, crate.Entity("inputs/data/d2.csv"))
	action := crate.Entity(api("code_run", f.r1.ID))
	assert.Contains(t, action.Refs("object"), "https://doi.org/10.1000/raw")
	assert.Len(t, crate.EntitiesOfType("CreateAction"), 1)
}

func TestFromDataProduct_CodeRepoAndAuthors(t *testing.T) {
	f := newFixture(t)
	repo := f.g.AddObject("SimpleModel")
	f.g.SetLocation(repo.ID, "https://github.com/FAIRDataPipeline/", true)
	f.g.SetCodeRepo(f.r1, repo, "SimpleModel", "1.2.0")
	cfg := f.g.AddObject("config.yaml")
	f.localise(t, cfg.ID, "run: true\n")
	f.g.SetModelConfig(f.r1, cfg)

	author := f.g.AddAuthor("Ada Lovelace", "https://orcid.org/0000-0000-0000-0001")
	f.g.AttachAuthor(f.d1.ObjectID, author.ID)
	f.g.LinkUserAuthor(f.user.ID, author.ID)

	crate := fromDP(t, f.g, f.d1.ID, 1, baseOptions())

	release := crate.Entity("https://github.com/FAIRDataPipeline/SimpleModel")
	require.NotNil(t, release)
	assert.True(t, release.HasType("SoftwareApplication"))
	assert.Equal(t, "1.2.0", release.Props["version"])

	action := crate.Entity(api("code_run", f.r1.ID))
	assert.Equal(t, []string{
		"https://github.com/FAIRDataPipeline/SimpleModel",
		"inputs/model_config/config.yaml",
		"inputs/submission_script/run.sh",
	}, action.Refs("instrument"))
	assert.Equal(t, []string{api("author", author.ID)}, action.Refs("agent"))

	person := crate.Entity(api("author", author.ID))
	require.NotNil(t, person)
	assert.Equal(t, "https://orcid.org/0000-0000-0000-0001", person.Props["identifier"])
	assert.Equal(t, []string{api("author", author.ID)}, crate.Entity("outputs/d1.csv").Refs("author"))
}

func TestFromDataProduct_EncodingFormat(t *testing.T) {
	f := newFixture(t)
	f.g.SetLocation(f.d3.ObjectID, "https://store.example/", true)
	f.g.SetFileType(f.d3.ObjectID, "registry blob", "fdpblob")

	crate := fromDP(t, f.g, f.d1.ID, 1, baseOptions())

	assert.Equal(t, "text/csv", crate.Entity("outputs/d1.csv").Props["encodingFormat"])
	d3 := f.object(t, f.d3.ObjectID)
	assert.Equal(t, "fdpblob", crate.Entity(api("storage_location", d3.StorageLocation.ID)).Props["encodingFormat"])
}

func TestFromCodeRun(t *testing.T) {
	f := newFixture(t)
	run, err := f.g.CodeRun(context.Background(), f.r1.ID)
	require.NoError(t, err)

	crate, err := rocrate.FromCodeRun(context.Background(), f.g, f.r1.ID, 1, baseOptions())
	require.NoError(t, err)
	defer crate.Close()

	root := crate.Entity(rocrate.RootID)
	assert.Equal(t, run.UUID, root.Props["name"])
	_, hasVersion := root.Props["version"]
	assert.False(t, hasVersion)
	assert.Equal(t, run.UUID, crate.Name())

	action := crate.Entity(api("code_run", f.r1.ID))
	assert.Equal(t, []string{"outputs/d1.csv"}, action.Refs("result"))
	assert.Equal(t, []string{"inputs/data/d2.csv", "inputs/data/d3.csv"}, action.Refs("object"))
	assert.Nil(t, crate.Entity(api("code_run", f.r0.ID)))

	deeper, err := rocrate.FromCodeRun(context.Background(), f.g, f.r1.ID, 2, baseOptions())
	require.NoError(t, err)
	defer deeper.Close()
	assert.NotNil(t, deeper.Entity(api("code_run", f.r0.ID)))
}

func TestFromCodeRun_NotFound(t *testing.T) {
	_, err := rocrate.FromCodeRun(context.Background(), graphtest.New(), 3, 1, baseOptions())
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestCrate_SharedBasename(t *testing.T) {
	f := newFixture(t)
	other := f.g.AddObject("nested/d2.csv")
	f.localise(t, other.ID, "c\n1\n")
	dp := f.g.AddDataProductFor(other.ID, "d2-copy", "0.1.0")
	f.g.AddRunInput(f.r1.ID, f.g.WholeComponent(dp.ObjectID).ID)

	crate := fromDP(t, f.g, f.d1.ID, 1, baseOptions())
	assert.NotNil(t, crate.Entity("inputs/data/d2.csv"))
	assert.NotNil(t, crate.Entity(fmt.Sprintf("inputs/data/%d/d2.csv", other.ID)))
}

func TestCrate_WriteZipAndMetadata(t *testing.T) {
	f := newFixture(t)
	crate := fromDP(t, f.g, f.d1.ID, 1, baseOptions())

	var buf bytes.Buffer
	require.NoError(t, crate.WriteZip(&buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	names := map[string]*zip.File{}
	for _, file := range zr.File {
		names[file.Name] = file
	}
	assert.Contains(t, names, rocrate.MetadataFileName)
	assert.Contains(t, names, "outputs/d1.csv")
	assert.Contains(t, names, "inputs/submission_script/run.sh")

	rc, err := names["outputs/d1.csv"].Open()
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n3,4\n", string(body))

	raw, err := json.Marshal(crate)
	require.NoError(t, err)
	var meta struct {
		Context string                   `json:"@context"`
		Graph   []map[string]interface{} `json:"@graph"`
	}
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, rocrate.ContextURI, meta.Context)
	require.GreaterOrEqual(t, len(meta.Graph), 2)
	assert.Equal(t, rocrate.MetadataFileName, meta.Graph[0]["@id"])
	assert.Equal(t, rocrate.RootID, meta.Graph[1]["@id"])
	assert.True(t, strings.HasPrefix(meta.Graph[1]["datePublished"].(string), "2024-03-01"))
}

func TestFromDataProduct_PrimaryExternalLicence(t *testing.T) {
	f := newFixture(t)
	f.g.SetExternal(f.d2.ID, "Raw data", "https://doi.org/10.1000/raw", true)
	f.g.AddLicence(f.d2.ObjectID, "https://opensource.org/licenses/MIT", "MIT")

	crate := fromDP(t, f.g, f.d1.ID, 1, baseOptions())

	external := crate.Entity("https://doi.org/10.1000/raw")
	require.NotNil(t, external)
	assert.Equal(t, rocrate.Ref{ID: "https://opensource.org/licenses/MIT"}, external.Props["license"])

	mit := crate.Entity("https://opensource.org/licenses/MIT")
	require.NotNil(t, mit)
	assert.True(t, mit.HasType("CreativeWork"))

	assert.Equal(t, rocrate.Ref{ID: "https://opensource.org/licenses/MIT"}, crate.Entity(rocrate.RootID).Props["license"])
	assert.Nil(t, crate.Entity(rocrate.DefaultLicenceURI))
}

func TestFromDataProduct_CodeRepoLicence(t *testing.T) {
	f := newFixture(t)
	repo := f.g.AddObject("SimpleModel")
	f.g.SetLocation(repo.ID, "https://github.com/FAIRDataPipeline/", true)
	f.g.SetCodeRepo(f.r1, repo, "SimpleModel", "1.2.0")
	f.g.AddLicence(repo.ID, "https://www.apache.org/licenses/LICENSE-2.0", "Apache-2.0")
	f.g.AddLicence(repo.ID, "https://opensource.org/licenses/MIT", "MIT")

	crate := fromDP(t, f.g, f.d1.ID, 1, baseOptions())

	release := crate.Entity("https://github.com/FAIRDataPipeline/SimpleModel")
	require.NotNil(t, release)
	assert.IsType(t, []rocrate.Ref{}, release.Props["license"])
	assert.Equal(t, []string{
		"https://www.apache.org/licenses/LICENSE-2.0",
		"https://opensource.org/licenses/MIT",
	}, release.Refs("license"))
	require.NotNil(t, crate.Entity("https://www.apache.org/licenses/LICENSE-2.0"))

	assert.ElementsMatch(t, []string{
		"https://www.apache.org/licenses/LICENSE-2.0",
		"https://opensource.org/licenses/MIT",
	}, crate.Entity(rocrate.RootID).Refs("license"))
	assert.Nil(t, crate.Entity(rocrate.DefaultLicenceURI))
}

func TestFromDataProduct_SchemelessPathNotBundled(t *testing.T) {
	f := newFixture(t)
	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret\n"), 0o644))

	d3 := f.object(t, f.d3.ObjectID)
	d3.StorageLocation.StorageRoot = nil
	d3.StorageLocation.Path = outside

	for _, remote := range []bool{false, true} {
		opts := baseOptions()
		opts.Remote = remote
		opts.TempDir = t.TempDir()
		crate := fromDP(t, f.g, f.d1.ID, 1, opts)

		assert.NotNil(t, crate.Entity(api("storage_location", d3.StorageLocation.ID)))
		for _, file := range crate.Files() {
			assert.NotEqual(t, outside, file.Source)
		}
		assert.Zero(t, crate.FetchFailures())
	}
}

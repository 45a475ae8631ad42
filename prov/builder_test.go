package prov_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/FAIRDataPipeline/data-registry/entity"
	"github.com/FAIRDataPipeline/data-registry/graph/graphtest"
	"github.com/FAIRDataPipeline/data-registry/prov"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const (
	central = "https://data.fairdatapipeline.org/"
	local   = "http://localhost:8000/"
)

var localOpts = prov.Options{BaseURI: local, CentralRegistryURI: central}

type fixture struct {
	g              *graphtest.Graph
	d1, d2, d3, d4 *entity.DataProduct
	r0, r1         *entity.CodeRun
	script         *entity.Object
	user           *entity.User
}

// D1 <- R1(script S) <- [D2, D3]; D2 <- R0 <- [D4]
func newFixture() fixture {
	g := graphtest.New()
	f := fixture{g: g}
	f.user = g.AddUser("alice", "Alice Smith")
	f.script = g.AddObject("scripts/run.sh")
	f.d1 = g.AddDataProduct("d1", "0.1.0")
	f.d2 = g.AddDataProduct("d2", "0.1.0")
	f.d3 = g.AddDataProduct("d3", "0.1.0")
	f.d4 = g.AddDataProduct("d4", "0.1.0")
	f.r0 = g.AddCodeRun(f.script, f.user, []*entity.DataProduct{f.d4}, []*entity.DataProduct{f.d2})
	f.r1 = g.AddCodeRun(f.script, f.user, []*entity.DataProduct{f.d2, f.d3}, []*entity.DataProduct{f.d1})
	return f
}

func lreg(kind string, id uint) prov.QualifiedName {
	return prov.QN("lreg", fmt.Sprintf("api/%s/%d", kind, id))
}

func build(t *testing.T, g *graphtest.Graph, dpID uint, depth int) *prov.Document {
	t.Helper()
	doc, err := prov.Build(context.Background(), g, dpID, depth, localOpts)
	require.NoError(t, err)
	return doc
}

func ids(records []*prov.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID.String())
	}
	return out
}

func TestBuild_DepthOne(t *testing.T) {
	f := newFixture()
	doc := build(t, f.g, f.d1.ID, 1)

	d1 := lreg("data_product", f.d1.ID)
	d2 := lreg("data_product", f.d2.ID)
	d3 := lreg("data_product", f.d3.ID)
	s := lreg("object", f.script.ID)
	r1 := lreg("code_run", f.r1.ID)

	assert.ElementsMatch(t, []string{d1.String(), d2.String(), d3.String(), s.String()}, ids(doc.RecordsOf(prov.KindEntity)))
	assert.Equal(t, []string{r1.String()}, ids(doc.RecordsOf(prov.KindActivity)))

	assert.True(t, doc.HasRelation(prov.WasGeneratedBy, d1, r1))
	assert.True(t, doc.HasRelation(prov.Used, r1, d2))
	assert.True(t, doc.HasRelation(prov.Used, r1, d3))
	assert.True(t, doc.HasRelation(prov.Used, r1, s))
	assert.True(t, doc.HasRelation(prov.WasDerivedFrom, d1, d2))
	assert.True(t, doc.HasRelation(prov.WasDerivedFrom, d1, d3))
	assert.Nil(t, doc.Record(lreg("code_run", f.r0.ID)))
	assert.Nil(t, doc.Record(lreg("data_product", f.d4.ID)))
}

func TestBuild_DepthTwo(t *testing.T) {
	f := newFixture()
	doc := build(t, f.g, f.d1.ID, 2)

	d2 := lreg("data_product", f.d2.ID)
	d4 := lreg("data_product", f.d4.ID)
	r0 := lreg("code_run", f.r0.ID)

	assert.Len(t, doc.RecordsOf(prov.KindActivity), 2)
	assert.NotNil(t, doc.Record(r0))
	assert.NotNil(t, doc.Record(d4))
	assert.True(t, doc.HasRelation(prov.WasGeneratedBy, d2, r0))
	assert.True(t, doc.HasRelation(prov.Used, r0, d4))
	assert.True(t, doc.HasRelation(prov.WasDerivedFrom, d2, d4))
}

func TestBuild_Roles(t *testing.T) {
	f := newFixture()
	doc := build(t, f.g, f.d1.ID, 1)

	roles := map[string]string{}
	for _, rel := range doc.RelationsOf(prov.Used) {
		require.NotNil(t, rel.Role)
		roles[rel.Object.String()] = rel.Role.String()
	}
	assert.Equal(t, "fair:submission_script", roles[lreg("object", f.script.ID).String()])
	assert.Equal(t, "fair:input_data", roles[lreg("data_product", f.d2.ID).String()])

	started := doc.RelationsOf(prov.WasStartedBy)
	require.Len(t, started, 1)
	assert.Equal(t, "fair:code_runner", started[0].Role.String())
	assert.Equal(t, graphtest.Epoch, *started[0].Time)
}

func TestBuild_NoGeneratingRun(t *testing.T) {
	g := graphtest.New()
	dp := g.AddDataProduct("lonely", "1.0.0")

	doc := build(t, g, dp.ID, 3)
	assert.Len(t, doc.RecordsOf(prov.KindEntity), 1)
	assert.Empty(t, doc.RecordsOf(prov.KindActivity))
	assert.Empty(t, doc.Relations())
}

func TestBuild_NotFound(t *testing.T) {
	g := graphtest.New()
	_, err := prov.Build(context.Background(), g, 42, 1, localOpts)
	assert.Error(t, err)
}

func TestBuild_RegistryPrefix(t *testing.T) {
	f := newFixture()

	doc, err := prov.Build(context.Background(), f.g, f.d1.ID, 1, prov.Options{BaseURI: "https://data.fairdatapipeline.org", CentralRegistryURI: central})
	require.NoError(t, err)
	uri, ok := doc.NamespaceURI("reg")
	require.True(t, ok)
	assert.Equal(t, central, uri)
	_, ok = doc.NamespaceURI("lreg")
	assert.False(t, ok)
	assert.NotNil(t, doc.Record(prov.QN("reg", fmt.Sprintf("api/data_product/%d", f.d1.ID))))

	doc = build(t, f.g, f.d1.ID, 1)
	uri, _ = doc.NamespaceURI("lreg")
	assert.Equal(t, local, uri)
	vocab, _ := doc.NamespaceURI("fair")
	assert.Equal(t, central+"vocab/#", vocab)
	for _, prefix := range []string{"prov", "dcat", "dcmitype", "dcterms", "foaf"} {
		_, ok := doc.NamespaceURI(prefix)
		assert.True(t, ok, prefix)
	}
}

func TestBuild_SharedInputAcrossRuns(t *testing.T) {
	g := graphtest.New()
	user := g.AddUser("bob", "")
	script := g.AddObject("s.sh")
	shared := g.AddDataProduct("shared", "1.0.0")
	a := g.AddDataProduct("a", "1.0.0")
	b := g.AddDataProduct("b", "1.0.0")
	top := g.AddDataProduct("top", "1.0.0")
	g.AddCodeRun(script, user, []*entity.DataProduct{shared}, []*entity.DataProduct{a})
	g.AddCodeRun(script, user, []*entity.DataProduct{shared}, []*entity.DataProduct{b})
	g.AddCodeRun(script, user, []*entity.DataProduct{a, b}, []*entity.DataProduct{top})

	doc := build(t, g, top.ID, 3)

	seen := map[string]int{}
	for _, id := range ids(doc.Records()) {
		seen[id]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
	assert.Len(t, doc.RecordsOf(prov.KindActivity), 3)

	// bob has no author link and no personnel record
	agents := doc.RecordsOf(prov.KindAgent)
	require.Len(t, agents, 1)
	assert.Equal(t, []interface{}{"User Not Found"}, agents[0].Values(prov.QN("foaf", "name")))
}

func TestBuild_Cycle(t *testing.T) {
	g := graphtest.New()
	user := g.AddUser("carol", "Carol")
	script := g.AddObject("s.sh")
	x := g.AddDataProduct("x", "1.0.0")
	y := g.AddDataProduct("y", "1.0.0")
	g.AddCodeRun(script, user, []*entity.DataProduct{y}, []*entity.DataProduct{x})
	g.AddCodeRun(script, user, []*entity.DataProduct{x}, []*entity.DataProduct{y})

	doc := build(t, g, x.ID, 10)
	assert.Len(t, doc.RecordsOf(prov.KindActivity), 2)
	assert.Len(t, doc.RecordsOf(prov.KindEntity), 3)
}

func TestBuild_AuthorAgent(t *testing.T) {
	f := newFixture()
	author := f.g.AddAuthor("Ada Lovelace", "https://orcid.org/0000-0000-0000-0001")
	f.g.LinkUserAuthor(f.user.ID, author.ID)
	f.g.AttachAuthor(f.d1.ObjectID, author.ID)

	doc := build(t, f.g, f.d1.ID, 1)
	agentID := lreg("author", author.ID)
	agent := doc.Record(agentID)
	require.NotNil(t, agent)
	assert.Equal(t, []interface{}{"Ada Lovelace"}, agent.Values(prov.QN("foaf", "name")))
	assert.Equal(t, []interface{}{"https://orcid.org/0000-0000-0000-0001"}, agent.Values(prov.QN("dcterms", "identifier")))
	assert.Nil(t, doc.Record(lreg("user", f.user.ID)))

	assert.True(t, doc.HasRelation(prov.WasStartedBy, lreg("code_run", f.r1.ID), agentID))
	assert.True(t, doc.HasRelation(prov.WasAttributedTo, lreg("data_product", f.d1.ID), agentID))
}

func TestBuild_RunAuthorIdentifier(t *testing.T) {
	f := newFixture()
	author := f.g.AddAuthor("Grace Hopper", "https://orcid.org/0000-0000-0000-0002")
	f.g.LinkUserAuthor(f.user.ID, author.ID)

	doc := build(t, f.g, f.d1.ID, 1)
	agent := doc.Record(lreg("author", author.ID))
	require.NotNil(t, agent)
	assert.Equal(t, []interface{}{"https://orcid.org/0000-0000-0000-0002"}, agent.Values(prov.QN("fair", "identifier")))
	assert.Empty(t, agent.Values(prov.QN("dcterms", "identifier")))
	assert.True(t, doc.HasRelation(prov.WasStartedBy, lreg("code_run", f.r1.ID), lreg("author", author.ID)))
}

func TestBuild_UserAgentFullName(t *testing.T) {
	f := newFixture()
	doc := build(t, f.g, f.d1.ID, 1)

	agent := doc.Record(lreg("user", f.user.ID))
	require.NotNil(t, agent)
	assert.Equal(t, []interface{}{"Alice Smith"}, agent.Values(prov.QN("foaf", "name")))
}

func TestBuild_PrimaryExternal(t *testing.T) {
	g := graphtest.New()
	dp := g.AddDataProduct("raw", "1.0.0")
	ext := g.SetExternal(dp.ID, "Raw data", "https://doi.org/10.1000/raw", true)

	doc := build(t, g, dp.ID, 1)
	extID := lreg("external_object", ext.ID)
	dpID := lreg("data_product", dp.ID)

	assert.True(t, doc.HasRelation(prov.SpecializationOf, extID, dpID))
	assert.Empty(t, doc.RelationsOf(prov.WasDerivedFrom))
	assert.Empty(t, doc.RecordsOf(prov.KindActivity))
	assert.Equal(t, []interface{}{"https://doi.org/10.1000/raw"}, doc.Record(extID).Values(prov.QN("dcterms", "identifier")))
}

func TestBuild_SupplementExternal(t *testing.T) {
	g := graphtest.New()
	dp := g.AddDataProduct("cleaned", "1.0.0")
	ext := g.SetExternal(dp.ID, "Source", "", false)

	doc := build(t, g, dp.ID, 1)
	extID := lreg("external_object", ext.ID)
	dpID := lreg("data_product", dp.ID)
	extraction := lreg("data_extraction", dp.ID)

	assert.True(t, doc.HasRelation(prov.SpecializationOf, extID, dpID))
	require.NotNil(t, doc.Record(extraction))
	assert.Equal(t, []prov.QualifiedName{prov.QN("fair", "DataExtraction")}, doc.Record(extraction).Types())
	assert.True(t, doc.HasRelation(prov.Used, extraction, extID))
	assert.True(t, doc.HasRelation(prov.WasGeneratedBy, dpID, extraction))
	assert.True(t, doc.HasRelation(prov.WasDerivedFrom, dpID, extID))
}

func TestBuild_CodeRepoAndModelConfig(t *testing.T) {
	f := newFixture()
	repo := f.g.AddObject("repo")
	release := f.g.SetCodeRepo(f.r1, repo, "SimpleModel", "1.2.0")
	cfg := f.g.AddObject("config.yaml")
	f.g.SetModelConfig(f.r1, cfg)

	doc := build(t, f.g, f.d1.ID, 1)
	r1 := lreg("code_run", f.r1.ID)
	repoID := lreg("code_repo_release", release.ID)

	require.NotNil(t, doc.Record(repoID))
	assert.Equal(t, []prov.QualifiedName{prov.QN("dcmitype", "Software")}, doc.Record(repoID).Types())
	assert.Equal(t, []interface{}{"1.2.0"}, doc.Record(repoID).Values(prov.QN("dcat", "hasVersion")))
	assert.True(t, doc.HasRelation(prov.Used, r1, repoID))
	assert.True(t, doc.HasRelation(prov.Used, r1, lreg("object", cfg.ID)))
	assert.Empty(t, doc.Record(lreg("object", cfg.ID)).Types())
}

func TestBuild_CodeRepoWithoutRelease(t *testing.T) {
	f := newFixture()
	repo := f.g.AddObject("repo")
	f.g.SetCodeRepo(f.r1, repo, "", "")

	doc := build(t, f.g, f.d1.ID, 1)
	assert.True(t, doc.HasRelation(prov.Used, lreg("code_run", f.r1.ID), lreg("object", repo.ID)))
}

func TestBuild_OtherOutputs(t *testing.T) {
	f := newFixture()
	extra := f.g.AddDataProduct("extra", "0.1.0")
	f.g.AddRunOutput(f.r1.ID, f.g.WholeComponent(extra.ObjectID).ID)

	doc := build(t, f.g, f.d1.ID, 1)
	assert.True(t, doc.HasRelation(prov.WasGeneratedBy, lreg("data_product", extra.ID), lreg("code_run", f.r1.ID)))
	assert.False(t, doc.HasRelation(prov.WasDerivedFrom, lreg("data_product", extra.ID), lreg("data_product", f.d2.ID)))
}

func TestBuild_ObjectMetadata(t *testing.T) {
	f := newFixture()
	f.g.SetFileType(f.d1.ObjectID, "comma-separated values", "csv")
	f.g.SetDescription(f.d1.ObjectID, "weekly cases")

	doc := build(t, f.g, f.d1.ID, 1)
	rec := doc.Record(lreg("data_product", f.d1.ID))
	require.NotNil(t, rec)
	assert.Equal(t, []interface{}{"file:///data/d1.csv"}, rec.Values(prov.QN("prov", "atLocation")))
	assert.Equal(t, []interface{}{"weekly cases"}, rec.Values(prov.QN("dcterms", "description")))
	assert.Equal(t, []interface{}{"comma-separated values"}, rec.Values(prov.QN("dcterms", "format")))
	assert.Equal(t, []interface{}{"PSU"}, rec.Values(prov.QN("fair", "namespace")))
	assert.Equal(t, []interface{}{"d1"}, rec.Values(prov.QN("dcterms", "title")))
}

func TestBuild_DepthMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		g := graphtest.New()
		user := g.AddUser("u", "")
		script := g.AddObject("s.sh")
		n := rapid.IntRange(2, 8).Draw(rt, "products")
		dps := make([]*entity.DataProduct, n)
		for i := range dps {
			dps[i] = g.AddDataProduct(fmt.Sprintf("p%d", i), "1.0.0")
		}
		for i := 0; i < n; i++ {
			if !rapid.Bool().Draw(rt, fmt.Sprintf("run%d", i)) {
				continue
			}
			var inputs []*entity.DataProduct
			for j := 0; j < n; j++ {
				if j != i && rapid.Bool().Draw(rt, fmt.Sprintf("in%d_%d", i, j)) {
					inputs = append(inputs, dps[j])
				}
			}
			g.AddCodeRun(script, user, inputs, []*entity.DataProduct{dps[i]})
		}

		var prev map[string]bool
		for depth := 1; depth <= n+1; depth++ {
			doc, err := prov.Build(context.Background(), g, dps[0].ID, depth, localOpts)
			if err != nil {
				rt.Fatalf("build: %v", err)
			}
			cur := map[string]bool{}
			seen := map[string]bool{}
			for _, rec := range doc.Records() {
				if seen[rec.ID.String()] {
					rt.Fatalf("duplicate record %s", rec.ID)
				}
				seen[rec.ID.String()] = true
				if rec.Kind == prov.KindActivity {
					cur[rec.ID.String()] = true
				}
			}
			for id := range prev {
				if !cur[id] {
					rt.Fatalf("activity %s lost at depth %d", id, depth)
				}
			}
			prev = cur
		}
	})
}

func TestDocument_RelateDedupes(t *testing.T) {
	doc := prov.NewDocument()
	a := prov.QN("ex", "a")
	b := prov.QN("ex", "b")
	role := prov.QN("fair", "input_data")

	assert.True(t, doc.Relate(prov.Relation{Kind: prov.Used, Subject: a, Object: b, Role: &role}))
	assert.False(t, doc.Relate(prov.Relation{Kind: prov.Used, Subject: a, Object: b, Role: &role}))
	assert.True(t, doc.Relate(prov.Relation{Kind: prov.Used, Subject: a, Object: b}))
	assert.Len(t, doc.Relations(), 2)

	_, created := doc.Entity(a)
	assert.True(t, created)
	_, created = doc.Entity(a, prov.Attribute{Name: prov.QN("dcterms", "title"), Value: "x"})
	assert.False(t, created)
	assert.Empty(t, doc.Record(a).Attributes)
}

func TestOptions_RegistryPrefix(t *testing.T) {
	prefix, uri := prov.Options{BaseURI: central, CentralRegistryURI: strings.TrimSuffix(central, "/")}.RegistryPrefix()
	assert.Equal(t, "reg", prefix)
	assert.Equal(t, central, uri)

	prefix, uri = prov.Options{BaseURI: "http://mirror.example", CentralRegistryURI: central}.RegistryPrefix()
	assert.Equal(t, "lreg", prefix)
	assert.Equal(t, "http://mirror.example/", uri)
}

func TestDocument_JSON(t *testing.T) {
	f := newFixture()
	doc := build(t, f.g, f.d1.ID, 1)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))

	prefixes := out["prefix"].(map[string]interface{})
	assert.Equal(t, local, prefixes["lreg"])
	assert.NotContains(t, prefixes, "prov")

	activities := out["activity"].(map[string]interface{})
	run := activities[lreg("code_run", f.r1.ID).String()].(map[string]interface{})
	assert.Equal(t, "2021-06-01T12:00:00Z", run["prov:startTime"])
	assert.Equal(t, map[string]interface{}{"$": "fair:Run", "type": "prov:QUALIFIED_NAME"}, run["prov:type"])

	entities := out["entity"].(map[string]interface{})
	d1 := entities[lreg("data_product", f.d1.ID).String()].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"$": "2021-06-01T12:00:00Z", "type": "xsd:dateTime"}, d1["dcterms:modified"])

	used := out["used"].(map[string]interface{})
	assert.Len(t, used, 3)
	for id, rel := range used {
		assert.True(t, strings.HasPrefix(id, "_:id"))
		assert.Equal(t, lreg("code_run", f.r1.ID).String(), rel.(map[string]interface{})["prov:activity"])
	}
}

func TestDocument_JSONRepeatedAttribute(t *testing.T) {
	g := graphtest.New()
	obj := g.AddObject("shared.csv")
	g.AddDataProductFor(obj.ID, "first", "1.0.0")
	second := g.AddDataProductFor(obj.ID, "second", "2.0.0")

	doc := build(t, g, second.ID, 1)
	entities := doc.ToJSON()["entity"].(map[string]interface{})
	rec := entities[lreg("data_product", second.ID).String()].(map[string]interface{})
	assert.Equal(t, []interface{}{"first", "second"}, rec["dcterms:title"])
}

func TestDocument_ProvN(t *testing.T) {
	f := newFixture()
	out := build(t, f.g, f.d1.ID, 1).ProvN()

	assert.True(t, strings.HasPrefix(out, "document\n"))
	assert.True(t, strings.HasSuffix(out, "endDocument\n"))
	assert.Contains(t, out, "prefix lreg <"+local+">")
	assert.Contains(t, out, fmt.Sprintf("activity(lreg:api/code_run/%d, 2021-06-01T12:00:00Z, -", f.r1.ID))
	assert.Contains(t, out, fmt.Sprintf("wasDerivedFrom(lreg:api/data_product/%d, lreg:api/data_product/%d)", f.d1.ID, f.d2.ID))
	assert.Contains(t, out, "prov:role='fair:input_data'")
}

func TestDocument_XML(t *testing.T) {
	f := newFixture()
	out, err := build(t, f.g, f.d1.ID, 1).MarshalPROVXML()
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `<prov:document`)
	assert.Contains(t, s, `xmlns:lreg="`+local+`"`)
	assert.Contains(t, s, fmt.Sprintf(`<prov:entity prov:id="lreg:api/data_product/%d">`, f.d1.ID))
	assert.Contains(t, s, `<prov:location xsi:type="xsd:string">file:///data/d1.csv</prov:location>`)
	assert.Contains(t, s, `<prov:role xsi:type="xsd:QName">fair:submission_script</prov:role>`)
	assert.NotContains(t, s, "prov:atLocation")
}

func TestDocument_JSONLD(t *testing.T) {
	f := newFixture()
	out, err := build(t, f.g, f.d1.ID, 1).ToJSONLD()
	require.NoError(t, err)

	ctx, ok := out["@context"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, local, ctx["lreg"])

	graph, ok := out["@graph"].([]interface{})
	require.True(t, ok)
	var found bool
	for _, n := range graph {
		node := n.(map[string]interface{})
		if node["@id"] == lreg("code_run", f.r1.ID).String() {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDocument_DOT(t *testing.T) {
	f := newFixture()
	doc := build(t, f.g, f.d1.ID, 1)
	dpi := 150.0

	out := doc.DOT(prov.DotOptions{Attributes: true, AspectRatio: 0.71, DPI: &dpi})
	assert.True(t, strings.HasPrefix(out, "digraph G {"))
	assert.Contains(t, out, "ratio=0.71;")
	assert.Contains(t, out, "dpi=150;")
	assert.Contains(t, out, `shape="note"`)

	bare := doc.DOT(prov.DotOptions{AspectRatio: 0.71})
	assert.NotContains(t, bare, `shape="note"`)
	assert.NotContains(t, bare, "dpi=")
}

package v1_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestProvReportAPI(t *testing.T) {
	t.Run("Default JSON", func(t *testing.T) {
		w := performRequest(testRouter, "GET", fmt.Sprintf("/api/prov-report/%d", testGraph.d1.ID), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
		doc := decodeJSON(t, w.Body.Bytes())
		prefixes, ok := doc["prefix"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "http://localhost:8000/", prefixes["lreg"])
	})

	t.Run("Format Query Wins", func(t *testing.T) {
		w := performRequest(testRouter, "GET", fmt.Sprintf("/api/prov-report/%d?format=provn", testGraph.d1.ID), nil,
			"Accept", "application/json")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/provenance-notation")
		assert.True(t, strings.HasPrefix(w.Body.String(), "document"))
	})

	t.Run("Accept Header", func(t *testing.T) {
		w := performRequest(testRouter, "GET", fmt.Sprintf("/api/prov-report/%d", testGraph.d1.ID), nil,
			"Accept", "application/ld+json")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "application/ld+json")
	})

	t.Run("Browser Accept Header", func(t *testing.T) {
		w := performRequest(testRouter, "GET", fmt.Sprintf("/api/prov-report/%d", testGraph.d1.ID), nil,
			"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	})

	t.Run("Bad Query Values Fall Back", func(t *testing.T) {
		w := performRequest(testRouter, "GET",
			fmt.Sprintf("/api/prov-report/%d?depth=abc&aspect_ratio=x&dpi=y&attributes=False", testGraph.d1.ID), nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Unsupported Format", func(t *testing.T) {
		w := performRequest(testRouter, "GET", fmt.Sprintf("/api/prov-report/%d?format=svg", testGraph.d1.ID), nil)

		assert.Equal(t, http.StatusNotAcceptable, w.Code)
	})

	t.Run("Not Found", func(t *testing.T) {
		w := performRequest(testRouter, "GET", "/api/prov-report/9999", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "record not found", decodeJSON(t, w.Body.Bytes())["error"])
	})

	t.Run("Invalid ID", func(t *testing.T) {
		w := performRequest(testRouter, "GET", "/api/prov-report/abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = performRequest(testRouter, "GET", "/api/prov-report/0", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestROCrateAPI(t *testing.T) {
	t.Run("Data Product Metadata", func(t *testing.T) {
		w := performRequest(testRouter, "GET", fmt.Sprintf("/api/ro-crate/data_product/%d", testGraph.d1.ID), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		meta := decodeJSON(t, w.Body.Bytes())
		graph, ok := meta["@graph"].([]interface{})
		require.True(t, ok)
		assert.NotEmpty(t, graph)
	})

	t.Run("Data Product Zip", func(t *testing.T) {
		w := performRequest(testRouter, "GET", fmt.Sprintf("/api/ro-crate/data_product/%d?format=zip", testGraph.d1.ID), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="d1.zip"`)

		body := w.Body.Bytes()
		zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
		require.NoError(t, err)
		require.NotEmpty(t, zr.File)
		assert.Equal(t, "ro-crate-metadata.json", zr.File[0].Name)
	})

	t.Run("Code Run", func(t *testing.T) {
		w := performRequest(testRouter, "GET", fmt.Sprintf("/api/ro-crate/code_run/%d", testGraph.run.ID), nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = performRequest(testRouter, "GET", "/api/ro-crate/code_run/777", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Unsupported Format", func(t *testing.T) {
		w := performRequest(testRouter, "GET", fmt.Sprintf("/api/ro-crate/data_product/%d?format=provn", testGraph.d1.ID), nil)
		assert.Equal(t, http.StatusNotAcceptable, w.Code)
	})
}

func TestDataExtractionAPI(t *testing.T) {
	t.Run("Supplement", func(t *testing.T) {
		id := testGraph.extracted.ID
		w := performRequest(testRouter, "GET", fmt.Sprintf("/api/data_extraction/%d", id), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeJSON(t, w.Body.Bytes())
		assert.Equal(t, fmt.Sprintf("http://localhost:8000/api/data_extraction/%d", id), body["id"])
		assert.Equal(t, fmt.Sprintf("data extraction %d", id), body["name"])
		assert.Equal(t, fmt.Sprintf("http://localhost:8000/api/data_product/%d", id), body["data_product"])
		assert.Equal(t, fmt.Sprintf("http://localhost:8000/api/external_object/%d", testGraph.externalID), body["external_product"])
	})

	t.Run("Primary", func(t *testing.T) {
		w := performRequest(testRouter, "GET", fmt.Sprintf("/api/data_extraction/%d", testGraph.primary.ID), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("No External Object", func(t *testing.T) {
		w := performRequest(testRouter, "GET", fmt.Sprintf("/api/data_extraction/%d", testGraph.d1.ID), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestFormatsAndMetrics(t *testing.T) {
	w := performRequest(testRouter, "GET", "/api/formats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w.Body.Bytes())
	assert.Equal(t, []interface{}{"json", "json-ld", "zip"}, body["ro-crate"])

	// 先产生一次构建，再检查指标输出
	performRequest(testRouter, "GET", fmt.Sprintf("/api/prov-report/%d", testGraph.d1.ID), nil)
	w = performRequest(testRouter, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "registry_report_builds_total")
}

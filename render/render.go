// Package render turns provenance documents and crates into response bytes.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/FAIRDataPipeline/data-registry/entity"
	"github.com/FAIRDataPipeline/data-registry/prov"
	"github.com/FAIRDataPipeline/data-registry/rocrate"
)

const (
	FormatJSON   = "json"
	FormatJSONLD = "json-ld"
	FormatXML    = "xml"
	FormatProvN  = "provn"
	FormatJPG    = "jpg"
	FormatSVG    = "svg"
	FormatZip    = "zip"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

var contentTypes = map[string]string{
	FormatJSON:   "application/json",
	FormatJSONLD: "application/ld+json",
	FormatXML:    "text/xml",
	FormatProvN:  "text/provenance-notation",
	FormatJPG:    "image/jpeg",
	FormatSVG:    "image/svg+xml",
	FormatZip:    "application/zip",
}

// ContentType returns the media type served for format.
func ContentType(format string) string {
	return contentTypes[format]
}

// Output is a rendered response body.
type Output struct {
	ContentType string
	Body        []byte
	// FileName is set for downloads.
	FileName string
}

// Renderer dispatches on format. Image formats need Graphviz dot.
type Renderer struct {
	DotPath string
}

// New looks for dot on PATH; without it image formats are not offered.
func New() *Renderer {
	path, err := exec.LookPath("dot")
	if err != nil {
		path = ""
	}
	return &Renderer{DotPath: path}
}

func (r *Renderer) imagesEnabled() bool {
	return r != nil && r.DotPath != ""
}

// ProvFormats lists the formats a provenance report can be served in, default first.
func (r *Renderer) ProvFormats() []string {
	formats := []string{FormatJSON, FormatJSONLD, FormatXML, FormatProvN}
	if r.imagesEnabled() {
		formats = append(formats, FormatJPG, FormatSVG)
	}
	return formats
}

func (r *Renderer) CrateFormats() []string {
	return []string{FormatJSON, FormatJSONLD, FormatZip}
}

// Negotiate picks the format: an explicit format wins, then the Accept header, then json.
// Accept ranges are tried by descending q-value; a browser asking for text/html gets json.
func Negotiate(format, accept string, supported []string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "" {
		if contains(supported, format) {
			return format, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	accept = strings.TrimSpace(accept)
	if accept == "" {
		return FormatJSON, nil
	}
	for _, r := range parseAccept(accept) {
		switch r.mediaType {
		case "*/*", "application/*", "text/html":
			return FormatJSON, nil
		}
		for _, f := range supported {
			if contentTypes[f] == r.mediaType || (f == FormatXML && r.mediaType == "application/xml") {
				return f, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, accept)
}

type acceptRange struct {
	mediaType string
	q         float64
}

// parseAccept returns the acceptable ranges, highest q first; ties keep header order, q=0 is dropped.
func parseAccept(accept string) []acceptRange {
	var ranges []acceptRange
	for _, part := range strings.Split(accept, ",") {
		mt, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		q := 1.0
		if raw, ok := params["q"]; ok {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v < 0 || v > 1 {
				continue
			}
			q = v
		}
		if q == 0 {
			continue
		}
		ranges = append(ranges, acceptRange{mediaType: mt, q: q})
	}
	sort.SliceStable(ranges, func(i, j int) bool { return ranges[i].q > ranges[j].q })
	return ranges
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Prov serializes a provenance document.
func (r *Renderer) Prov(ctx context.Context, doc *prov.Document, format string, opts entity.ReportOptions) (Output, error) {
	if !contains(r.ProvFormats(), format) {
		return Output{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	var (
		body []byte
		err  error
	)
	switch format {
	case FormatJSON:
		body, err = json.MarshalIndent(doc.ToJSON(), "", "  ")
	case FormatJSONLD:
		var ld map[string]interface{}
		ld, err = doc.ToJSONLD()
		if err == nil {
			body, err = json.MarshalIndent(ld, "", "  ")
		}
	case FormatXML:
		body, err = doc.MarshalPROVXML()
	case FormatProvN:
		body = []byte(doc.ProvN())
	case FormatJPG, FormatSVG:
		dot := doc.DOT(prov.DotOptions{Attributes: opts.Attributes, AspectRatio: opts.AspectRatio, DPI: opts.DPI})
		body, err = r.image(ctx, dot, format)
	}
	if err != nil {
		return Output{}, fmt.Errorf("render %s failed: %w", format, err)
	}
	return Output{ContentType: contentTypes[format], Body: body}, nil
}

func (r *Renderer) image(ctx context.Context, dot, format string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.DotPath, "-T"+format)
	cmd.Stdin = strings.NewReader(dot)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("dot: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Crate serializes a crate as its metadata graph or a zip bundle.
func (r *Renderer) Crate(crate *rocrate.Crate, format string) (Output, error) {
	switch format {
	case FormatJSON, FormatJSONLD:
		body, err := json.MarshalIndent(crate.Metadata(), "", "  ")
		if err != nil {
			return Output{}, fmt.Errorf("render crate metadata failed: %w", err)
		}
		return Output{ContentType: contentTypes[format], Body: body}, nil
	case FormatZip:
		var buf bytes.Buffer
		if err := crate.WriteZip(&buf); err != nil {
			return Output{}, fmt.Errorf("render crate zip failed: %w", err)
		}
		return Output{ContentType: contentTypes[format], Body: buf.Bytes(), FileName: crate.Name() + ".zip"}, nil
	default:
		return Output{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

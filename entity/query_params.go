package entity

import (
	"strconv"
	"strings"
)

const (
	DefaultReportDepth       = 1
	DefaultReportAspectRatio = 0.71
)

// ReportParams 报告接口的查询参数，原样接收字符串，非法值静默回落到默认值
type ReportParams struct {
	Depth       string `form:"depth"`
	Attributes  string `form:"attributes"`
	AspectRatio string `form:"aspect_ratio"`
	DPI         string `form:"dpi"`
	Format      string `form:"format"`
}

// ReportOptions is the normalized form of ReportParams.
type ReportOptions struct {
	Depth       int
	Attributes  bool
	AspectRatio float64
	DPI         *float64
	Format      string
}

// Normalize clamps depth to >= 1 and replaces unparsable numbers with their defaults.
func (p ReportParams) Normalize() ReportOptions {
	opts := ReportOptions{
		Depth:       DefaultReportDepth,
		Attributes:  true,
		AspectRatio: DefaultReportAspectRatio,
		Format:      strings.ToLower(strings.TrimSpace(p.Format)),
	}

	if depth, err := strconv.Atoi(strings.TrimSpace(p.Depth)); err == nil && depth >= 1 {
		opts.Depth = depth
	}

	switch strings.TrimSpace(p.Attributes) {
	case "False", "false", "0":
		opts.Attributes = false
	}

	if ratio, err := strconv.ParseFloat(strings.TrimSpace(p.AspectRatio), 64); err == nil && ratio > 0 {
		opts.AspectRatio = ratio
	}

	if dpi, err := strconv.ParseFloat(strings.TrimSpace(p.DPI), 64); err == nil && dpi > 0 {
		opts.DPI = &dpi
	}

	return opts
}

// CacheKey 缓存键，保持参数顺序稳定
func (o ReportOptions) CacheKey() string {
	var b strings.Builder
	b.WriteString("depth=")
	b.WriteString(strconv.Itoa(o.Depth))
	b.WriteString("&attributes=")
	b.WriteString(strconv.FormatBool(o.Attributes))
	b.WriteString("&aspect_ratio=")
	b.WriteString(strconv.FormatFloat(o.AspectRatio, 'f', -1, 64))
	if o.DPI != nil {
		b.WriteString("&dpi=")
		b.WriteString(strconv.FormatFloat(*o.DPI, 'f', -1, 64))
	}
	b.WriteString("&format=")
	b.WriteString(o.Format)
	return b.String()
}

// QueryParams 列表接口的通用查询参数
type QueryParams struct {
	Page     int    `form:"page"`      // 页码
	PageSize int    `form:"page_size"` // 每页数量
	Keyword  string `form:"keyword"`   // 模糊匹配名称
	Name     string `form:"name"`

	// data_products 过滤字段
	Namespace string `form:"namespace"`
	Version   string `form:"version"`
	// Latest keeps only the highest version of each (namespace, name).
	Latest bool `form:"latest"`
}

// PageResult 通用的分页返回结构
type PageResult struct {
	Total int64       `json:"total"` // 总条数
	List  interface{} `json:"list"`  // 数据列表
}

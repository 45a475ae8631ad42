package dao

import (
	"context"
	"fmt"
	"strings"

	"github.com/FAIRDataPipeline/data-registry/entity"
	"github.com/FAIRDataPipeline/data-registry/graph"
	"github.com/FAIRDataPipeline/data-registry/infrastructure/db"

	"gorm.io/gorm"
)

type DataProductDAO struct {
	DB *gorm.DB
}

func NewDataProductDAO() *DataProductDAO {
	return &DataProductDAO{
		DB: db.DB,
	}
}

func (d *DataProductDAO) FindByID(ctx context.Context, id uint) (*entity.DataProduct, error) {
	if id == 0 {
		return nil, ErrInvalidID
	}

	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("find data product by id failed: %w", err)
	}

	var dp entity.DataProduct
	if err := dbConn.Preload("Namespace").First(&dp, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &dp, nil
}

// FindAll filters and pages data products, newest id first.
// With Latest set, paging applies after each (namespace, name) is reduced to its highest version.
func (d *DataProductDAO) FindAll(ctx context.Context, params entity.QueryParams) ([]entity.DataProduct, int64, error) {
	var products []entity.DataProduct
	var total int64

	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("find data products failed: %w", err)
	}

	dbConn = dbConn.Model(&entity.DataProduct{})

	// 1. 基础模糊搜索
	if keyword := strings.TrimSpace(params.Keyword); keyword != "" {
		dbConn = dbConn.Where("data_products.name LIKE ?", "%"+keyword+"%")
	}

	// 2. 指标组合过滤
	if name := strings.TrimSpace(params.Name); name != "" {
		dbConn = dbConn.Where("data_products.name = ?", name)
	}
	if version := strings.TrimSpace(params.Version); version != "" {
		dbConn = dbConn.Where("data_products.version = ?", version)
	}
	if namespace := strings.TrimSpace(params.Namespace); namespace != "" {
		dbConn = dbConn.Joins("JOIN namespaces ON namespaces.id = data_products.namespace_id").
			Where("namespaces.name = ?", namespace)
	}

	if params.Latest {
		// 版本号是语义化版本，无法在 SQL 中比较，取回后在内存中筛选
		var all []entity.DataProduct
		if err := dbConn.Preload("Namespace").Order("data_products.id DESC").Find(&all).Error; err != nil {
			return nil, 0, fmt.Errorf("query data products failed: %w", err)
		}
		latest := latestVersions(all)
		offset, limit := pagination(params)
		return pageSlice(latest, offset, limit), int64(len(latest)), nil
	}

	// 3. 获取总数
	if err := dbConn.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count data products failed: %w", err)
	}

	// 4. 执行分页查询 (默认 ID 降序)
	offset, limit := pagination(params)
	err = dbConn.Preload("Namespace").Order("data_products.id DESC").Offset(offset).Limit(limit).Find(&products).Error
	if err != nil {
		return nil, 0, fmt.Errorf("query data products failed: %w", err)
	}

	return products, total, nil
}

// latestVersions keeps the highest semantic version per (namespace, name), preserving input order.
func latestVersions(products []entity.DataProduct) []entity.DataProduct {
	groups := make(map[string][]entity.DataProduct)
	order := make([]string, 0)
	for _, dp := range products {
		key := fmt.Sprintf("%d/%s", dp.NamespaceID, dp.Name)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], dp)
	}

	out := make([]entity.DataProduct, 0, len(order))
	for _, key := range order {
		group := groups[key]
		graph.SortDataProducts(group)
		out = append(out, group[len(group)-1])
	}
	return out
}

func pageSlice(products []entity.DataProduct, offset, limit int) []entity.DataProduct {
	if offset >= len(products) {
		return []entity.DataProduct{}
	}
	end := offset + limit
	if end > len(products) {
		end = len(products)
	}
	return products[offset:end]
}

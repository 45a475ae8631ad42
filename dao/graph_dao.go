package dao

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FAIRDataPipeline/data-registry/entity"
	"github.com/FAIRDataPipeline/data-registry/graph"
	"github.com/FAIRDataPipeline/data-registry/infrastructure/db"

	"gorm.io/gorm"
)

// GraphDAO answers graph.Accessor queries from the registry tables.
type GraphDAO struct {
	DB        *gorm.DB
	Personnel *Personnel
}

var (
	_ graph.Accessor = (*GraphDAO)(nil)
	_ graph.Source   = (*GraphDAO)(nil)
)

func NewGraphDAO(personnel *Personnel) *GraphDAO {
	return &GraphDAO{
		DB:        db.DB,
		Personnel: personnel,
	}
}

// Snapshot runs fn inside one read-only repeatable-read transaction.
func (d *GraphDAO) Snapshot(ctx context.Context, fn func(graph.Accessor) error) error {
	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return fmt.Errorf("open snapshot failed: %w", err)
	}
	return dbConn.Transaction(func(tx *gorm.DB) error {
		return fn(&GraphDAO{DB: tx, Personnel: d.Personnel})
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}

func (d *GraphDAO) DataProduct(ctx context.Context, id uint) (*entity.DataProduct, error) {
	if id == 0 {
		return nil, ErrInvalidID
	}
	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("find data product failed: %w", err)
	}

	var dp entity.DataProduct
	if err := dbConn.Preload("Namespace").First(&dp, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &dp, nil
}

func (d *GraphDAO) CodeRun(ctx context.Context, id uint) (*entity.CodeRun, error) {
	if id == 0 {
		return nil, ErrInvalidID
	}
	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("find code run failed: %w", err)
	}

	var run entity.CodeRun
	if err := dbConn.First(&run, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &run, nil
}

func (d *GraphDAO) Object(ctx context.Context, id uint) (*entity.Object, error) {
	if id == 0 {
		return nil, ErrInvalidID
	}
	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("find object failed: %w", err)
	}

	var obj entity.Object
	err = dbConn.
		Preload("StorageLocation.StorageRoot").
		Preload("FileType").
		First(&obj, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &obj, nil
}

func (d *GraphDAO) Components(ctx context.Context, objectID uint) ([]entity.ObjectComponent, error) {
	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("find components failed: %w", err)
	}

	var components []entity.ObjectComponent
	err = dbConn.Where("object_id = ?", objectID).Order("id ASC").Find(&components).Error
	return components, err
}

func (d *GraphDAO) GeneratingCodeRun(ctx context.Context, componentID uint) (*entity.CodeRun, error) {
	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("find generating code run failed: %w", err)
	}

	// 多个 code run 时取 id 最小的一条
	var runs []entity.CodeRun
	err = dbConn.
		Joins("JOIN code_run_outputs ON code_run_outputs.code_run_id = code_runs.id").
		Where("code_run_outputs.object_component_id = ?", componentID).
		Order("code_runs.id ASC").
		Limit(1).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func (d *GraphDAO) runComponents(ctx context.Context, table string, codeRunID uint) ([]entity.ObjectComponent, error) {
	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("find %s failed: %w", table, err)
	}

	var components []entity.ObjectComponent
	err = dbConn.
		Joins(fmt.Sprintf("JOIN %s ON %s.object_component_id = object_components.id", table, table)).
		Where(fmt.Sprintf("%s.code_run_id = ?", table), codeRunID).
		Order("object_components.id ASC").
		Find(&components).Error
	return components, err
}

func (d *GraphDAO) Inputs(ctx context.Context, codeRunID uint) ([]entity.ObjectComponent, error) {
	return d.runComponents(ctx, "code_run_inputs", codeRunID)
}

func (d *GraphDAO) Outputs(ctx context.Context, codeRunID uint) ([]entity.ObjectComponent, error) {
	return d.runComponents(ctx, "code_run_outputs", codeRunID)
}

func (d *GraphDAO) DataProductsOf(ctx context.Context, objectID uint) ([]entity.DataProduct, error) {
	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("find data products failed: %w", err)
	}

	var products []entity.DataProduct
	if err := dbConn.Preload("Namespace").Where("object_id = ?", objectID).Find(&products).Error; err != nil {
		return nil, err
	}
	graph.SortDataProducts(products)
	return products, nil
}

func (d *GraphDAO) Authors(ctx context.Context, objectID uint) ([]entity.Author, error) {
	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("find authors failed: %w", err)
	}

	var authors []entity.Author
	err = dbConn.
		Joins("JOIN object_authors ON object_authors.author_id = authors.id").
		Where("object_authors.object_id = ?", objectID).
		Order("authors.id ASC").
		Find(&authors).Error
	return authors, err
}

func (d *GraphDAO) Licences(ctx context.Context, objectID uint) ([]entity.Licence, error) {
	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("find licences failed: %w", err)
	}

	var licences []entity.Licence
	err = dbConn.Where("object_id = ?", objectID).Order("id ASC").Find(&licences).Error
	return licences, err
}

func (d *GraphDAO) ExternalObject(ctx context.Context, dataProductID uint) (*entity.ExternalObject, error) {
	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("find external object failed: %w", err)
	}

	var external entity.ExternalObject
	result := dbConn.
		Preload("OriginalStore.StorageRoot").
		Where("data_product_id = ?", dataProductID).
		Limit(1).
		Find(&external)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &external, nil
}

func (d *GraphDAO) CodeRepoRelease(ctx context.Context, objectID uint) (*entity.CodeRepoRelease, error) {
	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("find code repo release failed: %w", err)
	}

	var release entity.CodeRepoRelease
	result := dbConn.Where("object_id = ?", objectID).Limit(1).Find(&release)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &release, nil
}

func (d *GraphDAO) UserAuthor(ctx context.Context, userID uint) (*entity.Author, error) {
	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("find user author failed: %w", err)
	}

	var link entity.UserAuthor
	result := dbConn.Preload("Author").Where("user_id = ?", userID).Limit(1).Find(&link)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 || link.Author == nil {
		return nil, nil
	}
	return link.Author, nil
}

func (d *GraphDAO) User(ctx context.Context, userID uint) (*entity.User, error) {
	dbConn, err := withContext(d.DB, ctx)
	if err != nil {
		return nil, fmt.Errorf("find user failed: %w", err)
	}

	var user entity.User
	if err := dbConn.First(&user, userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (d *GraphDAO) FullName(ctx context.Context, user *entity.User) string {
	if user == nil || d.Personnel == nil {
		return graph.UserNotFound
	}
	return d.Personnel.FullName(user.Username)
}

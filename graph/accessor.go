// Package graph is the read-only view of the registry that the report builders walk.
package graph

import (
	"context"
	"errors"

	"github.com/FAIRDataPipeline/data-registry/entity"
)

var ErrNotFound = errors.New("record not found")

// UserNotFound is the name given to a code-run agent whose user cannot be resolved in the personnel file.
const UserNotFound = "User Not Found"

// Accessor answers the queries a provenance walk needs.
// Single lookups return ErrNotFound; optional relations return nil without error.
type Accessor interface {
	DataProduct(ctx context.Context, id uint) (*entity.DataProduct, error)
	CodeRun(ctx context.Context, id uint) (*entity.CodeRun, error)
	Object(ctx context.Context, id uint) (*entity.Object, error)

	Components(ctx context.Context, objectID uint) ([]entity.ObjectComponent, error)
	// GeneratingCodeRun returns the run listing the component as an output, lowest run id first.
	GeneratingCodeRun(ctx context.Context, componentID uint) (*entity.CodeRun, error)
	Inputs(ctx context.Context, codeRunID uint) ([]entity.ObjectComponent, error)
	Outputs(ctx context.Context, codeRunID uint) ([]entity.ObjectComponent, error)
	// DataProductsOf is ordered by semantic version, then id.
	DataProductsOf(ctx context.Context, objectID uint) ([]entity.DataProduct, error)

	Authors(ctx context.Context, objectID uint) ([]entity.Author, error)
	Licences(ctx context.Context, objectID uint) ([]entity.Licence, error)
	ExternalObject(ctx context.Context, dataProductID uint) (*entity.ExternalObject, error)
	CodeRepoRelease(ctx context.Context, objectID uint) (*entity.CodeRepoRelease, error)

	UserAuthor(ctx context.Context, userID uint) (*entity.Author, error)
	User(ctx context.Context, userID uint) (*entity.User, error)
	FullName(ctx context.Context, user *entity.User) string
}

// Source hands out an Accessor bound to one consistent view of the registry.
type Source interface {
	Snapshot(ctx context.Context, fn func(Accessor) error) error
}

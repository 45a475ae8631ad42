package service

import (
	"context"

	"github.com/FAIRDataPipeline/data-registry/dao"
	"github.com/FAIRDataPipeline/data-registry/entity"
)

// DataProductStore is the slice of dao.DataProductDAO the listing needs.
type DataProductStore interface {
	FindByID(ctx context.Context, id uint) (*entity.DataProduct, error)
	FindAll(ctx context.Context, params entity.QueryParams) ([]entity.DataProduct, int64, error)
}

type DataProductService struct {
	store DataProductStore
}

func NewDataProductService(store DataProductStore) *DataProductService {
	if store == nil {
		store = dao.NewDataProductDAO()
	}
	return &DataProductService{store: store}
}

// DataProductView is the API form of a data product, with links to its reports.
type DataProductView struct {
	entity.DataProduct
	NamespaceName string `json:"namespace_name"`
	ProvReport    string `json:"prov_report"`
	ROCrate       string `json:"ro_crate"`
}

func dataProductView(dp entity.DataProduct, base string) DataProductView {
	return DataProductView{
		DataProduct:   dp,
		NamespaceName: dp.NamespaceName(),
		ProvReport:    base + "api/prov-report/" + uintString(dp.ID),
		ROCrate:       base + "api/ro-crate/data_product/" + uintString(dp.ID),
	}
}

func (s *DataProductService) GetAllDataProducts(ctx context.Context, params entity.QueryParams, base string) (entity.PageResult, error) {
	products, total, err := s.store.FindAll(ctx, params)
	if err != nil {
		serviceLogger().With("service", "DataProductService", "method", "GetAllDataProducts").Error(
			"list data products failed", "error", err)
		return entity.PageResult{}, err
	}

	views := make([]DataProductView, 0, len(products))
	for _, dp := range products {
		views = append(views, dataProductView(dp, base))
	}
	return entity.PageResult{
		Total: total,
		List:  views,
	}, nil
}

func (s *DataProductService) GetDataProduct(ctx context.Context, id uint, base string) (DataProductView, error) {
	if id == 0 {
		return DataProductView{}, ErrInvalidID
	}
	dp, err := s.store.FindByID(ctx, id)
	if err != nil {
		return DataProductView{}, err
	}
	return dataProductView(*dp, base), nil
}

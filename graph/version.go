package graph

import (
	"sort"

	"github.com/FAIRDataPipeline/data-registry/entity"

	"github.com/Masterminds/semver/v3"
)

// SortDataProducts orders products by semantic version, then id. Unparsable versions sort after valid ones.
func SortDataProducts(products []entity.DataProduct) {
	sort.SliceStable(products, func(i, j int) bool {
		vi, errI := semver.NewVersion(products[i].Version)
		vj, errJ := semver.NewVersion(products[j].Version)
		switch {
		case errI == nil && errJ == nil:
			if c := vi.Compare(vj); c != 0 {
				return c < 0
			}
		case errI == nil:
			return true
		case errJ == nil:
			return false
		default:
			if products[i].Version != products[j].Version {
				return products[i].Version < products[j].Version
			}
		}
		return products[i].ID < products[j].ID
	})
}

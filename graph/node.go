package graph

import "github.com/FAIRDataPipeline/data-registry/entity"

// ObjectNode is an Object with the relations every renderer needs.
type ObjectNode struct {
	Object       *entity.Object
	Authors      []entity.Author
	Licences     []entity.Licence
	DataProducts []entity.DataProduct
}

// FileName is the last path segment of the storage location, or "" without one.
func (n ObjectNode) FileName() string {
	if n.Object == nil || n.Object.StorageLocation == nil {
		return ""
	}
	uri := n.Object.StorageLocation.URI()
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '/' {
			return uri[i+1:]
		}
	}
	return uri
}

type DataProductNode struct {
	DataProduct *entity.DataProduct
	Object      ObjectNode
	External    *entity.ExternalObject
}

func (n *DataProductNode) ID() uint {
	return n.DataProduct.ID
}

// ExtractedFromExternal reports whether the product was derived from, not identical to, an external source.
func (n *DataProductNode) ExtractedFromExternal() bool {
	return n.External != nil && !n.External.PrimaryNotSupplement
}

type CodeRepoNode struct {
	ObjectNode
	Release *entity.CodeRepoRelease
}

// AgentNode is whoever started a code run. Author is nil when the user has no linked author.
type AgentNode struct {
	Author *entity.Author
	User   *entity.User
	Name   string
}

type RunNode struct {
	Run              *entity.CodeRun
	Agent            AgentNode
	CodeRepo         *CodeRepoNode
	ModelConfig      *ObjectNode
	SubmissionScript ObjectNode
	Inputs           []*DataProductNode
	Outputs          []*DataProductNode
}

func (n *RunNode) ID() uint {
	return n.Run.ID
}

// Role says how a data product entered the walk.
type Role int

const (
	RoleRoot Role = iota
	RoleInput
	RoleOutput
)

func (r Role) String() string {
	switch r {
	case RoleRoot:
		return "root"
	case RoleInput:
		return "input"
	case RoleOutput:
		return "output"
	default:
		return "unknown"
	}
}

// Sink receives the nodes of a walk. Each data product is visited once with the first role it was reached by.
// VisitCodeRun is called once per (run, target) pair; target is nil when the walk started at the run.
type Sink interface {
	VisitDataProduct(node *DataProductNode, role Role) error
	VisitCodeRun(run *RunNode, target *DataProductNode) error
}

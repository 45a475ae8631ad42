package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/FAIRDataPipeline/data-registry/entity"
)

// Walker resolves registry records into nodes and drives a Sink through the depth loop.
// A Walker caches what it resolves and must not be reused across snapshots.
type Walker struct {
	acc Accessor

	objects      map[uint]*ObjectNode
	dataProducts map[uint]*DataProductNode
	runs         map[uint]*RunNode

	visited  map[uint]bool
	expanded map[uint]bool
	runVisit map[[2]uint]bool
}

func NewWalker(acc Accessor) *Walker {
	return &Walker{
		acc:          acc,
		objects:      make(map[uint]*ObjectNode),
		dataProducts: make(map[uint]*DataProductNode),
		runs:         make(map[uint]*RunNode),
		visited:      make(map[uint]bool),
		expanded:     make(map[uint]bool),
		runVisit:     make(map[[2]uint]bool),
	}
}

// ClampDepth maps anything below 1 to 1.
func ClampDepth(depth int) int {
	if depth < 1 {
		return 1
	}
	return depth
}

// WalkFromDataProduct visits the root product, its generating runs and their inputs,
// then repeats for the inputs until depth levels have been expanded.
func (w *Walker) WalkFromDataProduct(ctx context.Context, dataProductID uint, depth int, sink Sink) error {
	root, err := w.DataProduct(ctx, dataProductID)
	if err != nil {
		return err
	}
	if err := w.visitDataProduct(root, RoleRoot, sink); err != nil {
		return err
	}
	return w.expandLevels(ctx, []*DataProductNode{root}, ClampDepth(depth), sink)
}

// WalkFromCodeRun visits the run with its outputs and inputs. Depth beyond 1 expands the inputs' own runs.
func (w *Walker) WalkFromCodeRun(ctx context.Context, codeRunID uint, depth int, sink Sink) error {
	run, err := w.acc.CodeRun(ctx, codeRunID)
	if err != nil {
		return err
	}
	node, err := w.Run(ctx, run)
	if err != nil {
		return err
	}

	for _, out := range node.Outputs {
		if err := w.visitDataProduct(out, RoleOutput, sink); err != nil {
			return err
		}
	}
	for _, in := range node.Inputs {
		if err := w.visitDataProduct(in, RoleInput, sink); err != nil {
			return err
		}
	}
	w.runVisit[[2]uint{node.ID(), 0}] = true
	if err := sink.VisitCodeRun(node, nil); err != nil {
		return err
	}
	// outputs of the starting run are not expanded, only what fed into it
	for _, out := range node.Outputs {
		w.expanded[out.ID()] = true
	}

	return w.expandLevels(ctx, w.unexpanded(node.Inputs), ClampDepth(depth)-1, sink)
}

func (w *Walker) expandLevels(ctx context.Context, level []*DataProductNode, remaining int, sink Sink) error {
	for ; remaining >= 1 && len(level) > 0; remaining-- {
		var next []*DataProductNode
		queued := make(map[uint]bool)

		for _, dp := range level {
			if w.expanded[dp.ID()] {
				continue
			}
			w.expanded[dp.ID()] = true

			runs, err := w.GeneratingRuns(ctx, dp)
			if err != nil {
				return err
			}
			for _, run := range runs {
				key := [2]uint{run.ID(), dp.ID()}
				if w.runVisit[key] {
					continue
				}
				w.runVisit[key] = true

				for _, in := range run.Inputs {
					if err := w.visitDataProduct(in, RoleInput, sink); err != nil {
						return err
					}
				}
				if err := sink.VisitCodeRun(run, dp); err != nil {
					return err
				}
				for _, in := range w.unexpanded(run.Inputs) {
					if queued[in.ID()] {
						continue
					}
					queued[in.ID()] = true
					next = append(next, in)
				}
			}
		}
		level = next
	}
	return nil
}

func (w *Walker) unexpanded(nodes []*DataProductNode) []*DataProductNode {
	out := make([]*DataProductNode, 0, len(nodes))
	for _, n := range nodes {
		if !w.expanded[n.ID()] {
			out = append(out, n)
		}
	}
	return out
}

func (w *Walker) visitDataProduct(node *DataProductNode, role Role, sink Sink) error {
	if w.visited[node.ID()] {
		return nil
	}
	w.visited[node.ID()] = true
	return sink.VisitDataProduct(node, role)
}

// GeneratingRuns returns the distinct runs that produced any component of the product, in component order.
func (w *Walker) GeneratingRuns(ctx context.Context, dp *DataProductNode) ([]*RunNode, error) {
	components, err := w.acc.Components(ctx, dp.DataProduct.ObjectID)
	if err != nil {
		return nil, fmt.Errorf("list components of object %d: %w", dp.DataProduct.ObjectID, err)
	}

	seen := make(map[uint]bool)
	var runs []*RunNode
	for _, c := range components {
		run, err := w.acc.GeneratingCodeRun(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("generating run of component %d: %w", c.ID, err)
		}
		if run == nil || seen[run.ID] {
			continue
		}
		seen[run.ID] = true

		node, err := w.Run(ctx, run)
		if err != nil {
			return nil, err
		}
		runs = append(runs, node)
	}
	return runs, nil
}

// DataProduct resolves a product by id, with its object and external object.
func (w *Walker) DataProduct(ctx context.Context, id uint) (*DataProductNode, error) {
	if node, ok := w.dataProducts[id]; ok {
		return node, nil
	}
	dp, err := w.acc.DataProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return w.dataProductNode(ctx, dp)
}

func (w *Walker) dataProductNode(ctx context.Context, dp *entity.DataProduct) (*DataProductNode, error) {
	if node, ok := w.dataProducts[dp.ID]; ok {
		return node, nil
	}

	obj, err := w.ObjectNode(ctx, dp.ObjectID)
	if err != nil {
		return nil, err
	}
	external, err := w.acc.ExternalObject(ctx, dp.ID)
	if err != nil {
		return nil, fmt.Errorf("external object of data product %d: %w", dp.ID, err)
	}

	node := &DataProductNode{DataProduct: dp, Object: *obj, External: external}
	w.dataProducts[dp.ID] = node
	return node, nil
}

// ObjectNode resolves an object with its authors, licences and data product views.
func (w *Walker) ObjectNode(ctx context.Context, objectID uint) (*ObjectNode, error) {
	if node, ok := w.objects[objectID]; ok {
		return node, nil
	}

	obj, err := w.acc.Object(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", objectID, err)
	}
	authors, err := w.acc.Authors(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("authors of object %d: %w", objectID, err)
	}
	licences, err := w.acc.Licences(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("licences of object %d: %w", objectID, err)
	}
	products, err := w.acc.DataProductsOf(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("data products of object %d: %w", objectID, err)
	}

	node := &ObjectNode{Object: obj, Authors: authors, Licences: licences, DataProducts: products}
	w.objects[objectID] = node
	return node, nil
}

// Run resolves everything a renderer needs about one code run.
func (w *Walker) Run(ctx context.Context, run *entity.CodeRun) (*RunNode, error) {
	if node, ok := w.runs[run.ID]; ok {
		return node, nil
	}

	agent, err := w.agent(ctx, run)
	if err != nil {
		return nil, err
	}
	node := &RunNode{Run: run, Agent: agent}

	if run.CodeRepoID != nil {
		obj, err := w.ObjectNode(ctx, *run.CodeRepoID)
		if err != nil {
			return nil, err
		}
		release, err := w.acc.CodeRepoRelease(ctx, *run.CodeRepoID)
		if err != nil {
			return nil, fmt.Errorf("code repo release of object %d: %w", *run.CodeRepoID, err)
		}
		node.CodeRepo = &CodeRepoNode{ObjectNode: *obj, Release: release}
	}

	if run.ModelConfigID != nil {
		obj, err := w.ObjectNode(ctx, *run.ModelConfigID)
		if err != nil {
			return nil, err
		}
		node.ModelConfig = obj
	}

	script, err := w.ObjectNode(ctx, run.SubmissionScriptID)
	if err != nil {
		return nil, err
	}
	node.SubmissionScript = *script

	inputs, err := w.acc.Inputs(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("inputs of code run %d: %w", run.ID, err)
	}
	if node.Inputs, err = w.componentDataProducts(ctx, inputs); err != nil {
		return nil, err
	}

	outputs, err := w.acc.Outputs(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("outputs of code run %d: %w", run.ID, err)
	}
	if node.Outputs, err = w.componentDataProducts(ctx, outputs); err != nil {
		return nil, err
	}

	w.runs[run.ID] = node
	return node, nil
}

func (w *Walker) componentDataProducts(ctx context.Context, components []entity.ObjectComponent) ([]*DataProductNode, error) {
	seen := make(map[uint]bool)
	var nodes []*DataProductNode
	for _, c := range components {
		products, err := w.acc.DataProductsOf(ctx, c.ObjectID)
		if err != nil {
			return nil, fmt.Errorf("data products of object %d: %w", c.ObjectID, err)
		}
		for i := range products {
			if seen[products[i].ID] {
				continue
			}
			seen[products[i].ID] = true
			dp := products[i]
			node, err := w.dataProductNode(ctx, &dp)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

func (w *Walker) agent(ctx context.Context, run *entity.CodeRun) (AgentNode, error) {
	author, err := w.acc.UserAuthor(ctx, run.UpdatedByID)
	if err != nil {
		return AgentNode{}, fmt.Errorf("author of user %d: %w", run.UpdatedByID, err)
	}

	user, err := w.acc.User(ctx, run.UpdatedByID)
	switch {
	case errors.Is(err, ErrNotFound):
		user = &entity.User{ID: run.UpdatedByID}
	case err != nil:
		return AgentNode{}, fmt.Errorf("user %d: %w", run.UpdatedByID, err)
	}

	if author != nil {
		return AgentNode{Author: author, User: user, Name: author.Name}, nil
	}
	name := UserNotFound
	if user.Username != "" {
		name = w.acc.FullName(ctx, user)
	}
	return AgentNode{User: user, Name: name}, nil
}

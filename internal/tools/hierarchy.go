package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/lthms/sitewise-mcp/internal/hierarchy"
	"github.com/lthms/sitewise-mcp/internal/sitewise"
)

const (
	formatNested = "nested"
	formatFlat   = "flat"
)

type hierarchyArgs struct {
	Format         string `json:"format,omitempty" jsonschema:"nested (default) or flat"`
	WithProperties *bool  `json:"with_properties,omitempty" jsonschema:"Include property definitions of every asset (default true)"`
}

type modelInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"creation_date,omitzero"`
}

// AssetView is one asset placed in the hierarchy.
type AssetView struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	ModelID         string              `json:"model_id"`
	ModelName       string              `json:"model_name"`
	ParentID        string              `json:"parent_id,omitempty"`
	Level           int                 `json:"level"`
	Status          string              `json:"status"`
	ARN             string              `json:"arn,omitempty"`
	CreatedAt       time.Time           `json:"creation_date,omitzero"`
	UpdatedAt       time.Time           `json:"last_update,omitzero"`
	PropertiesCount int                 `json:"properties_count"`
	Properties      []sitewise.Property `json:"properties"`
	ChildrenNames   []string            `json:"children_names"`
	ChildrenCount   int                 `json:"children_count"`
}

// NestedAsset is an AssetView with its subtree.
type NestedAsset struct {
	AssetView
	Children []*NestedAsset `json:"children"`
}

// Forest reports the asset tree of the whole fleet.
func (t *Toolset) Forest(ctx context.Context, withProperties bool) (*hierarchy.Forest, error) {
	return t.forest(ctx, nil, withProperties)
}

// forest builds the tree from the assets of models, or of every model when
// models is nil.
func (t *Toolset) forest(ctx context.Context, models []sitewise.AssetModel, withProperties bool) (*hierarchy.Forest, error) {
	assets, err := t.src.ListAssets(ctx, sitewise.AssetQuery{
		Models:         models,
		ResolveParents: true,
		WithProperties: withProperties,
	})
	if err != nil {
		return nil, err
	}

	records := make([]hierarchy.Record, 0, len(assets))
	for _, a := range assets {
		records = append(records, hierarchy.Record{ID: a.ID, Name: a.Name, ParentID: a.ParentID, Payload: a})
	}
	return hierarchy.Build(records)
}

func (t *Toolset) listAllAssetsHierarchy(ctx context.Context, args hierarchyArgs) (*result, error) {
	format := args.Format
	if format == "" {
		format = formatNested
	}
	if format != formatNested && format != formatFlat {
		return nil, sitewise.InvalidArgument(fmt.Errorf("format must be %q or %q, got %q", formatNested, formatFlat, format))
	}

	models, err := t.src.ListAssetModels(ctx)
	if err != nil {
		return nil, err
	}
	forest, err := t.forest(ctx, models, boolOr(args.WithProperties, true))
	if err != nil {
		return nil, err
	}

	info := make(map[string]modelInfo, len(models))
	for _, m := range models {
		info[m.ID] = modelInfo{Name: m.Name, Description: m.Description, CreatedAt: m.CreatedAt}
	}

	var view any
	if format == formatFlat {
		view = FlatView(forest)
	} else {
		view = NestedView(forest)
	}

	msg := fmt.Sprintf("hierarchy built: %d assets, %d root hierarchies", forest.Len(), len(forest.Roots))
	if forest.Len() == 0 {
		msg = "no assets found"
	}

	return &result{
		fields: map[string]any{
			"format":      format,
			"hierarchy":   view,
			"models_info": info,
			"total_count": forest.Len(),
			"root_count":  len(forest.Roots),
			"max_depth":   forest.Depth(),
			"message":     msg,
		},
		count: forest.Len(),
	}, nil
}

// NestedView renders the forest with recursive children.
func NestedView(f *hierarchy.Forest) []*NestedAsset {
	out := make([]*NestedAsset, 0, len(f.Roots))
	for _, r := range f.Roots {
		out = append(out, nest(r))
	}
	return out
}

func nest(n *hierarchy.Node) *NestedAsset {
	na := &NestedAsset{
		AssetView: fieldsOf(n.Payload, n.ParentID, n.Level, n.Children),
		Children:  make([]*NestedAsset, 0, len(n.Children)),
	}
	for _, c := range n.Children {
		na.Children = append(na.Children, nest(c))
	}
	return na
}

// FlatView renders the forest depth-first, one entry per asset.
func FlatView(f *hierarchy.Forest) []AssetView {
	out := make([]AssetView, 0, f.Len())
	f.Walk(func(n *hierarchy.Node) bool {
		out = append(out, fieldsOf(n.Payload, n.ParentID, n.Level, n.Children))
		return true
	})
	return out
}

func fieldsOf(payload any, parentID string, level int, children []*hierarchy.Node) AssetView {
	a, _ := payload.(sitewise.Asset)
	props := a.Properties
	if props == nil {
		props = []sitewise.Property{}
	}
	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, c.Name)
	}
	return AssetView{
		ID:              a.ID,
		Name:            a.Name,
		ModelID:         a.ModelID,
		ModelName:       a.ModelName,
		ParentID:        parentID,
		Level:           level,
		Status:          a.Status,
		ARN:             a.ARN,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
		PropertiesCount: len(props),
		Properties:      props,
		ChildrenNames:   names,
		ChildrenCount:   len(children),
	}
}

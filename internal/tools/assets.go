package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/lthms/sitewise-mcp/internal/sitewise"
)

const (
	defaultListAssets         = 20
	defaultPropertiesPerAsset = 5
)

type listAssetModelsArgs struct{}

type listAssetsArgs struct {
	MaxResults         int    `json:"max_results,omitempty" jsonschema:"Maximum number of assets to return (default 20)"`
	ModelID            string `json:"model_id,omitempty" jsonschema:"Only list assets of this asset model"`
	PropertiesPerAsset int    `json:"properties_per_asset,omitempty" jsonschema:"Properties shown per asset (default 5)"`
	OnlyMeasurable     *bool  `json:"only_measurable,omitempty" jsonschema:"Skip assets that have no properties (default true)"`
}

type assetArgs struct {
	AssetID string `json:"asset_id,omitempty" jsonschema:"Asset id"`
}

type assetSummary struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	ModelID         string              `json:"model_id"`
	ModelName       string              `json:"model_name"`
	Status          string              `json:"status"`
	PropertiesCount int                 `json:"properties_count"`
	Properties      []sitewise.Property `json:"properties"`
}

func (t *Toolset) listAssetModels(ctx context.Context, _ listAssetModelsArgs) (*result, error) {
	models, err := t.src.ListAssetModels(ctx)
	if err != nil {
		return nil, err
	}
	return &result{
		fields: map[string]any{"models": models, "count": len(models)},
		count:  len(models),
	}, nil
}

func (t *Toolset) listAssets(ctx context.Context, args listAssetsArgs) (*result, error) {
	if args.MaxResults < 0 || args.PropertiesPerAsset < 0 {
		return nil, sitewise.InvalidArgument(errors.New("max_results and properties_per_asset must not be negative"))
	}
	limit := args.MaxResults
	if limit == 0 {
		limit = defaultListAssets
	}
	perAsset := args.PropertiesPerAsset
	if perAsset == 0 {
		perAsset = defaultPropertiesPerAsset
	}
	measurable := boolOr(args.OnlyMeasurable, true)

	assets, err := t.src.ListAssets(ctx, sitewise.AssetQuery{
		ModelID:        args.ModelID,
		Limit:          limit,
		WithProperties: true,
		OnlyMeasurable: measurable,
	})
	if err != nil {
		return nil, err
	}

	out := make([]assetSummary, 0, len(assets))
	for _, a := range assets {
		props := a.Properties
		if props == nil {
			props = []sitewise.Property{}
		}
		out = append(out, assetSummary{
			ID:              a.ID,
			Name:            a.Name,
			ModelID:         a.ModelID,
			ModelName:       a.ModelName,
			Status:          a.Status,
			PropertiesCount: len(props),
			Properties:      props[:min(perAsset, len(props))],
		})
	}

	what := "assets"
	if measurable {
		what = "assets with measurable properties"
	}
	return &result{
		fields: map[string]any{
			"assets":  out,
			"count":   len(out),
			"message": fmt.Sprintf("found %d %s", len(out), what),
		},
		count: len(out),
	}, nil
}

func (t *Toolset) getAsset(ctx context.Context, args assetArgs) (*result, error) {
	d, err := t.describe(ctx, args.AssetID)
	if err != nil {
		return nil, err
	}
	return &result{fields: map[string]any{"asset": d}, count: 1}, nil
}

func (t *Toolset) getAssetProperties(ctx context.Context, args assetArgs) (*result, error) {
	d, err := t.describe(ctx, args.AssetID)
	if err != nil {
		return nil, err
	}
	props := d.Properties
	if props == nil {
		props = []sitewise.Property{}
	}
	return &result{
		fields: map[string]any{
			"asset_id":       d.ID,
			"asset_name":     d.Name,
			"asset_model_id": d.ModelID,
			"properties":     props,
			"count":          len(props),
		},
		count: len(props),
	}, nil
}

func (t *Toolset) describe(ctx context.Context, id string) (*sitewise.AssetDetail, error) {
	if id == "" {
		return nil, sitewise.InvalidArgument(errors.New("asset_id is required"))
	}
	d, err := t.src.DescribeAsset(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", id, err)
	}
	return d, nil
}

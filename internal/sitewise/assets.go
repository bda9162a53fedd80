package sitewise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotsitewise"
	"github.com/aws/aws-sdk-go-v2/service/iotsitewise/types"
	"golang.org/x/sync/errgroup"
)

// AssetModel is an asset model summary.
type AssetModel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"creation_date,omitzero"`
}

// Asset is an asset summary, optionally enriched with its parent id and
// property definitions.
type Asset struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ARN        string     `json:"arn,omitempty"`
	ModelID    string     `json:"model_id"`
	ModelName  string     `json:"model_name,omitempty"`
	Status     string     `json:"status"`
	ParentID   string     `json:"parent_id,omitempty"`
	CreatedAt  time.Time  `json:"creation_date,omitzero"`
	UpdatedAt  time.Time  `json:"last_update,omitzero"`
	Properties []Property `json:"properties,omitempty"`
}

// AssetDetail is the full description of one asset.
type AssetDetail struct {
	Asset
	Description string         `json:"description,omitempty"`
	Hierarchies []HierarchyRef `json:"hierarchies"`
}

// HierarchyRef is a named child slot declared by an asset's model.
type HierarchyRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Property is a measurable attribute definition.
type Property struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Alias        string        `json:"alias,omitempty"`
	DataType     string        `json:"dataType"`
	DataTypeSpec string        `json:"dataTypeSpec,omitempty"`
	Unit         string        `json:"unit,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// Notification is a property's MQTT notification setting.
type Notification struct {
	State string `json:"state"`
	Topic string `json:"topic,omitempty"`
}

// AssetQuery selects assets for ListAssets.
type AssetQuery struct {
	ModelID        string       // restrict to one model
	Models         []AssetModel // models already listed by the caller; nil = list them
	Limit          int          // 0 = no limit
	ResolveParents bool         // fill ParentID
	WithProperties bool         // fill Properties
	OnlyMeasurable bool         // drop assets without properties; implies WithProperties
}

// ListAssetModels returns every asset model.
func (c *Client) ListAssetModels(ctx context.Context) ([]AssetModel, error) {
	p := iotsitewise.NewListAssetModelsPaginator(c.api, &iotsitewise.ListAssetModelsInput{
		MaxResults: aws.Int32(modelPageSize),
	})

	models := []AssetModel{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify("ListAssetModels", err)
		}
		for _, m := range page.AssetModelSummaries {
			models = append(models, AssetModel{
				ID:          aws.ToString(m.Id),
				Name:        aws.ToString(m.Name),
				Description: aws.ToString(m.Description),
				CreatedAt:   aws.ToTime(m.CreationDate),
			})
		}
	}
	return models, nil
}

// ListAssets walks every asset model (or q.ModelID) and returns their assets,
// enriched as q requests. A model or asset whose lookup fails is logged and
// skipped so that one bad entry does not hide the rest of the fleet.
// Credential, permission and cancellation errors abort the listing.
//
// With a limit, pages are sized to the number of assets still missing so
// that no more assets are enriched than can be returned.
func (c *Client) ListAssets(ctx context.Context, q AssetQuery) ([]Asset, error) {
	if q.OnlyMeasurable {
		q.WithProperties = true
	}

	models := q.Models
	if models == nil {
		var err error
		if models, err = c.ListAssetModels(ctx); err != nil {
			return nil, err
		}
	}
	if q.ModelID != "" {
		models = filterModel(models, q.ModelID)
		if len(models) == 0 {
			return nil, fmt.Errorf("asset model %s: %w", q.ModelID, ErrNotFound)
		}
	}

	assets := []Asset{}
	for _, m := range models {
		var token *string
		for {
			size := assetPageSize
			if q.Limit > 0 {
				size = min(size, q.Limit-len(assets))
			}
			page, err := c.api.ListAssets(ctx, &iotsitewise.ListAssetsInput{
				AssetModelId: aws.String(m.ID),
				MaxResults:   aws.Int32(int32(size)),
				NextToken:    token,
			})
			if err != nil {
				err = classify("ListAssets", err)
				if fatal(err) || ctx.Err() != nil {
					return nil, err
				}
				slog.Warn("list assets failed, skipping model", "model_id", m.ID, "error", err)
				break
			}

			batch := make([]Asset, 0, len(page.AssetSummaries))
			for _, s := range page.AssetSummaries {
				batch = append(batch, assetFromSummary(s, m.Name))
			}
			if err := c.enrich(ctx, batch, q); err != nil {
				return nil, err
			}

			for _, a := range batch {
				if q.OnlyMeasurable && len(a.Properties) == 0 {
					continue
				}
				assets = append(assets, a)
				if q.Limit > 0 && len(assets) >= q.Limit {
					return assets, nil
				}
			}

			token = page.NextToken
			if aws.ToString(token) == "" {
				break
			}
		}
	}
	return assets, nil
}

func filterModel(models []AssetModel, id string) []AssetModel {
	for _, m := range models {
		if m.ID == id {
			return []AssetModel{m}
		}
	}
	return nil
}

// enrich fills parents and properties in place, at most c.concurrency
// lookups at a time. Per-asset failures are logged and skipped unless fatal.
func (c *Client) enrich(ctx context.Context, batch []Asset, q AssetQuery) error {
	if !q.ResolveParents && !q.WithProperties {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i := range batch {
		a := &batch[i]
		g.Go(func() error {
			if q.ResolveParents {
				parent, err := c.parentOf(gctx, a.ID)
				if fatal(err) {
					return err
				}
				if err != nil {
					slog.Warn("parent lookup failed, treating asset as root", "asset_id", a.ID, "error", err)
				}
				a.ParentID = parent
			}
			if q.WithProperties {
				d, err := c.DescribeAsset(gctx, a.ID)
				if fatal(err) {
					return err
				}
				if err != nil {
					slog.Warn("describe asset failed, properties omitted", "asset_id", a.ID, "error", err)
					return nil
				}
				a.Properties = d.Properties
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (c *Client) parentOf(ctx context.Context, assetID string) (string, error) {
	out, err := c.api.ListAssociatedAssets(ctx, &iotsitewise.ListAssociatedAssetsInput{
		AssetId:            aws.String(assetID),
		TraversalDirection: types.TraversalDirectionParent,
	})
	if err != nil {
		return "", classify("ListAssociatedAssets", err)
	}
	if len(out.AssetSummaries) == 0 {
		return "", nil
	}
	return aws.ToString(out.AssetSummaries[0].Id), nil
}

// DescribeAsset returns one asset with its property definitions.
func (c *Client) DescribeAsset(ctx context.Context, assetID string) (*AssetDetail, error) {
	if assetID == "" {
		return nil, InvalidArgument(errors.New("asset_id is required"))
	}

	out, err := c.api.DescribeAsset(ctx, &iotsitewise.DescribeAssetInput{
		AssetId: aws.String(assetID),
	})
	if err != nil {
		return nil, classify("DescribeAsset", err)
	}

	d := &AssetDetail{
		Asset: Asset{
			ID:         aws.ToString(out.AssetId),
			Name:       aws.ToString(out.AssetName),
			ARN:        aws.ToString(out.AssetArn),
			ModelID:    aws.ToString(out.AssetModelId),
			Status:     assetState(out.AssetStatus),
			CreatedAt:  aws.ToTime(out.AssetCreationDate),
			UpdatedAt:  aws.ToTime(out.AssetLastUpdateDate),
			Properties: make([]Property, 0, len(out.AssetProperties)),
		},
		Description: aws.ToString(out.AssetDescription),
		Hierarchies: make([]HierarchyRef, 0, len(out.AssetHierarchies)),
	}
	for _, p := range out.AssetProperties {
		d.Properties = append(d.Properties, propertyFromSDK(p))
	}
	for _, h := range out.AssetHierarchies {
		d.Hierarchies = append(d.Hierarchies, HierarchyRef{ID: aws.ToString(h.Id), Name: aws.ToString(h.Name)})
	}
	return d, nil
}

func assetFromSummary(s types.AssetSummary, modelName string) Asset {
	return Asset{
		ID:        aws.ToString(s.Id),
		Name:      aws.ToString(s.Name),
		ARN:       aws.ToString(s.Arn),
		ModelID:   aws.ToString(s.AssetModelId),
		ModelName: modelName,
		Status:    assetState(s.Status),
		CreatedAt: aws.ToTime(s.CreationDate),
		UpdatedAt: aws.ToTime(s.LastUpdateDate),
	}
}

func assetState(s *types.AssetStatus) string {
	if s == nil || s.State == "" {
		return "UNKNOWN"
	}
	return string(s.State)
}

func propertyFromSDK(p types.AssetProperty) Property {
	prop := Property{
		ID:           aws.ToString(p.Id),
		Name:         aws.ToString(p.Name),
		Alias:        aws.ToString(p.Alias),
		DataType:     string(p.DataType),
		DataTypeSpec: aws.ToString(p.DataTypeSpec),
		Unit:         aws.ToString(p.Unit),
	}
	if p.Notification != nil {
		prop.Notification = &Notification{
			State: string(p.Notification.State),
			Topic: aws.ToString(p.Notification.Topic),
		}
	}
	return prop
}

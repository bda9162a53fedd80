package sitewise

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotsitewise"
	"github.com/aws/aws-sdk-go-v2/service/iotsitewise/types"
)

// MaxHistoryResults is the largest page GetAssetPropertyValueHistory serves.
const MaxHistoryResults = 20000

// PropertyRef identifies a property either by alias or by asset and
// property id.
type PropertyRef struct {
	Alias      string `json:"property_alias,omitempty"`
	AssetID    string `json:"asset_id,omitempty"`
	PropertyID string `json:"property_id,omitempty"`
}

// Validate reports ErrInvalidRef unless an alias or a full id pair is set.
// An alias wins when both are given.
func (r PropertyRef) Validate() error {
	if r.Alias != "" {
		return nil
	}
	if r.AssetID != "" && r.PropertyID != "" {
		return nil
	}
	return ErrInvalidRef
}

func (r PropertyRef) params() (alias, assetID, propertyID *string) {
	if r.Alias != "" {
		return aws.String(r.Alias), nil, nil
	}
	return nil, aws.String(r.AssetID), aws.String(r.PropertyID)
}

// Value is one timestamped property measurement.
type Value struct {
	Value     any       `json:"value"`
	DataType  string    `json:"data_type"`
	Timestamp time.Time `json:"timestamp"`
	Quality   string    `json:"quality"`
}

// HistoryQuery selects a window of property values.
type HistoryQuery struct {
	Ref        PropertyRef
	Start, End time.Time
	MaxResults int // clamped to [1, MaxHistoryResults]
	Descending bool
	NextToken  string
}

// HistoryPage is one page of property values.
type HistoryPage struct {
	Values    []Value
	NextToken string
}

// CurrentValue returns the latest value of a property.
func (c *Client) CurrentValue(ctx context.Context, ref PropertyRef) (*Value, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	alias, assetID, propertyID := ref.params()
	out, err := c.api.GetAssetPropertyValue(ctx, &iotsitewise.GetAssetPropertyValueInput{
		PropertyAlias: alias,
		AssetId:       assetID,
		PropertyId:    propertyID,
	})
	if err != nil {
		return nil, classify("GetAssetPropertyValue", err)
	}
	if out.PropertyValue == nil {
		return nil, fmt.Errorf("property has no value: %w", ErrNotFound)
	}

	v := valueFromSDK(*out.PropertyValue)
	return &v, nil
}

// ValueHistory returns one page of values between q.Start and q.End.
func (c *Client) ValueHistory(ctx context.Context, q HistoryQuery) (*HistoryPage, error) {
	if err := q.Ref.Validate(); err != nil {
		return nil, err
	}
	if !q.Start.Before(q.End) {
		return nil, InvalidArgument(errors.New("start_date must be before end_date"))
	}

	ordering := types.TimeOrderingAscending
	if q.Descending {
		ordering = types.TimeOrderingDescending
	}

	alias, assetID, propertyID := q.Ref.params()
	in := &iotsitewise.GetAssetPropertyValueHistoryInput{
		PropertyAlias: alias,
		AssetId:       assetID,
		PropertyId:    propertyID,
		StartDate:     aws.Time(q.Start),
		EndDate:       aws.Time(q.End),
		MaxResults:    aws.Int32(int32(ClampResults(q.MaxResults))),
		TimeOrdering:  ordering,
	}
	if q.NextToken != "" {
		in.NextToken = aws.String(q.NextToken)
	}

	out, err := c.api.GetAssetPropertyValueHistory(ctx, in)
	if err != nil {
		return nil, classify("GetAssetPropertyValueHistory", err)
	}

	page := &HistoryPage{
		Values:    make([]Value, 0, len(out.AssetPropertyValueHistory)),
		NextToken: aws.ToString(out.NextToken),
	}
	for _, v := range out.AssetPropertyValueHistory {
		page.Values = append(page.Values, valueFromSDK(v))
	}
	return page, nil
}

// ClampResults bounds a requested result count to what the service accepts.
func ClampResults(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxHistoryResults:
		return MaxHistoryResults
	}
	return n
}

func valueFromSDK(v types.AssetPropertyValue) Value {
	out := Value{Quality: string(v.Quality)}
	if v.Timestamp != nil {
		out.Timestamp = time.Unix(
			aws.ToInt64(v.Timestamp.TimeInSeconds),
			int64(aws.ToInt32(v.Timestamp.OffsetInNanos)),
		).UTC()
	}
	if v.Value != nil {
		out.Value, out.DataType = decodeVariant(*v.Value)
	}
	return out
}

func decodeVariant(v types.Variant) (any, string) {
	switch {
	case v.DoubleValue != nil:
		return *v.DoubleValue, "double"
	case v.IntegerValue != nil:
		return *v.IntegerValue, "integer"
	case v.BooleanValue != nil:
		return *v.BooleanValue, "boolean"
	case v.StringValue != nil:
		return *v.StringValue, "string"
	}
	return nil, "null"
}

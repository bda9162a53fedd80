package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lthms/sitewise-mcp/internal/sitewise"
)

const (
	defaultHistoryResults = 100
	defaultLatestCount    = 10
	defaultLookbackHours  = 24
)

// Accepted start_date/end_date forms. Inputs without a zone are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// refArgs addresses a property. Its fields are repeated in the other
// argument structs so that they stay top-level in the input schema.
type refArgs struct {
	PropertyAlias string `json:"property_alias,omitempty" jsonschema:"Property alias, e.g. /factory/motor1/temperature"`
	AssetID       string `json:"asset_id,omitempty" jsonschema:"Asset id, used with property_id when no alias is given"`
	PropertyID    string `json:"property_id,omitempty" jsonschema:"Property id, used with asset_id"`
}

func (a refArgs) ref() sitewise.PropertyRef {
	return sitewise.PropertyRef{Alias: a.PropertyAlias, AssetID: a.AssetID, PropertyID: a.PropertyID}
}

type historyArgs struct {
	PropertyAlias string `json:"property_alias,omitempty" jsonschema:"Property alias"`
	AssetID       string `json:"asset_id,omitempty" jsonschema:"Asset id, used with property_id when no alias is given"`
	PropertyID    string `json:"property_id,omitempty" jsonschema:"Property id, used with asset_id"`
	StartDate     string `json:"start_date,omitempty" jsonschema:"Window start, RFC 3339 (2024-01-01T00:00:00Z) or date (2024-01-01)"`
	EndDate       string `json:"end_date,omitempty" jsonschema:"Window end, RFC 3339 or date"`
	MaxResults    int    `json:"max_results,omitempty" jsonschema:"Maximum number of values (default 100, at most 20000)"`
	NextToken     string `json:"next_token,omitempty" jsonschema:"Continuation token from a previous call"`
}

func (a historyArgs) ref() sitewise.PropertyRef {
	return refArgs{a.PropertyAlias, a.AssetID, a.PropertyID}.ref()
}

type latestArgs struct {
	PropertyAlias string `json:"property_alias,omitempty" jsonschema:"Property alias"`
	AssetID       string `json:"asset_id,omitempty" jsonschema:"Asset id, used with property_id when no alias is given"`
	PropertyID    string `json:"property_id,omitempty" jsonschema:"Property id, used with asset_id"`
	Count         int    `json:"count,omitempty" jsonschema:"Number of values (default 10, at most 20000)"`
	LookbackHours int    `json:"lookback_hours,omitempty" jsonschema:"How far back to look (default 24)"`
}

func (a latestArgs) ref() sitewise.PropertyRef {
	return refArgs{a.PropertyAlias, a.AssetID, a.PropertyID}.ref()
}

func (t *Toolset) getCurrentValue(ctx context.Context, args refArgs) (*result, error) {
	ref := args.ref()
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	v, err := t.src.CurrentValue(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &result{
		fields: map[string]any{
			"property_alias": args.PropertyAlias,
			"asset_id":       args.AssetID,
			"property_id":    args.PropertyID,
			"value":          v.Value,
			"data_type":      v.DataType,
			"timestamp":      v.Timestamp,
			"quality":        v.Quality,
			"retrieved_at":   t.now().UTC(),
		},
		count: 1,
	}, nil
}

func (t *Toolset) getHistoricalData(ctx context.Context, args historyArgs) (*result, error) {
	ref := args.ref()
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	start, err := parseTime("start_date", args.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseTime("end_date", args.EndDate)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, sitewise.InvalidArgument(errors.New("start_date must be before end_date"))
	}
	if args.MaxResults < 0 {
		return nil, sitewise.InvalidArgument(errors.New("max_results must not be negative"))
	}
	limit := args.MaxResults
	if limit == 0 {
		limit = defaultHistoryResults
	}

	page, err := t.src.ValueHistory(ctx, sitewise.HistoryQuery{
		Ref:        ref,
		Start:      start,
		End:        end,
		MaxResults: sitewise.ClampResults(limit),
		NextToken:  args.NextToken,
	})
	if err != nil {
		return nil, err
	}

	return &result{
		fields: map[string]any{
			"property_alias": args.PropertyAlias,
			"asset_id":       args.AssetID,
			"property_id":    args.PropertyID,
			"start_date":     start,
			"end_date":       end,
			"values":         nonNil(page.Values),
			"count":          len(page.Values),
			"next_token":     page.NextToken,
			"has_more":       page.NextToken != "",
		},
		count: len(page.Values),
	}, nil
}

func (t *Toolset) getLatestValues(ctx context.Context, args latestArgs) (*result, error) {
	ref := args.ref()
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if args.Count < 0 || args.LookbackHours < 0 {
		return nil, sitewise.InvalidArgument(errors.New("count and lookback_hours must not be negative"))
	}
	count := args.Count
	if count == 0 {
		count = defaultLatestCount
	}
	hours := args.LookbackHours
	if hours == 0 {
		hours = defaultLookbackHours
	}

	end := t.now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)

	page, err := t.src.ValueHistory(ctx, sitewise.HistoryQuery{
		Ref:        ref,
		Start:      start,
		End:        end,
		MaxResults: sitewise.ClampResults(count),
		Descending: true,
	})
	if err != nil {
		return nil, err
	}

	return &result{
		fields: map[string]any{
			"property_alias":  args.PropertyAlias,
			"asset_id":        args.AssetID,
			"property_id":     args.PropertyID,
			"requested_count": count,
			"actual_count":    len(page.Values),
			"values":          nonNil(page.Values),
			"time_range":      map[string]time.Time{"start": start, "end": end},
		},
		count: len(page.Values),
	}, nil
}

func parseTime(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, sitewise.InvalidArgument(fmt.Errorf("%s is required", field))
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, sitewise.InvalidArgument(fmt.Errorf("%s: cannot parse %q, use RFC 3339 (2024-01-01T00:00:00Z) or a date (2024-01-01)", field, s))
}

func nonNil(v []sitewise.Value) []sitewise.Value {
	if v == nil {
		return []sitewise.Value{}
	}
	return v
}

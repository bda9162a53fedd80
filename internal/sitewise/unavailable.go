package sitewise

import (
	"context"
	"errors"
	"fmt"
)

// Unavailable stands in for a Client that could not be constructed. Every
// call fails with ErrUnavailable so the server can keep answering with a
// tagged failure instead of refusing to start.
type Unavailable struct {
	Reason error
}

func (u Unavailable) err() error {
	if u.Reason == nil {
		return ErrUnavailable
	}
	if errors.Is(u.Reason, ErrUnavailable) {
		return u.Reason
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, u.Reason)
}

func (u Unavailable) ListAssetModels(context.Context) ([]AssetModel, error) { return nil, u.err() }

func (u Unavailable) ListAssets(context.Context, AssetQuery) ([]Asset, error) { return nil, u.err() }

func (u Unavailable) DescribeAsset(context.Context, string) (*AssetDetail, error) {
	return nil, u.err()
}

func (u Unavailable) CurrentValue(context.Context, PropertyRef) (*Value, error) { return nil, u.err() }

func (u Unavailable) ValueHistory(context.Context, HistoryQuery) (*HistoryPage, error) {
	return nil, u.err()
}

func (u Unavailable) Identity(context.Context) (*Identity, error) { return nil, u.err() }

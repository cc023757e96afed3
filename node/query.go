package node

import (
	"context"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/evaluator"
	"github.com/blockberries/ledger/store"
	"github.com/blockberries/ledger/types"
)

// Query reads committed state. Only the latest committed height is
// served.
//
//	/object      Data is an object id such as "1.2.5"; Value is the object.
//	/balance     Data is a cramberry BalanceQuery; Value is a types.Asset.
//	/account     Data is an account name; Value is the account object.
//	/parameters  Value is the active types.ChainParameters.
//	/head        Value is the committed types.BlockRef.
func (app *App) Query(_ context.Context, req types.StateQuery) (types.StateQueryResult, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()

	height := app.committed.Height
	if req.Height != nil && *req.Height != height {
		return app.queryFailed(req, height, errors.NotFound.WithFormat("height %d is not retained, latest is %d", *req.Height, height)), nil
	}
	key, value, err := app.query(req)
	if err != nil {
		return app.queryFailed(req, height, err), nil
	}
	queries.WithLabelValues(string(req.Path), errors.OK.String()).Inc()
	return types.StateQueryResult{
		Key:    key,
		Value:  value,
		Height: height,
	}, nil
}

func (app *App) queryFailed(req types.StateQuery, height uint64, err error) types.StateQueryResult {
	code := errors.Code(err)
	queries.WithLabelValues(string(req.Path), code.String()).Inc()
	return types.StateQueryResult{Code: uint32(code), Key: req.Data, Height: height, Info: err.Error()}
}

func (app *App) query(req types.StateQuery) (key, value []byte, err error) {
	switch req.Path {
	case types.QueryObject:
		id, err := types.ParseObjectID(string(req.Data))
		if err != nil {
			return nil, nil, errors.BadRequest.Wrap(err)
		}
		value, err := app.store.ReadCommittedRaw(id)
		return req.Data, value, err

	case types.QueryBalance:
		var q types.BalanceQuery
		if err := cramberry.Unmarshal(req.Data, &q); err != nil {
			return nil, nil, errors.BadRequest.WithFormat("decode balance query: %w", err)
		}
		amount := types.NewAsset(0, q.Asset)
		var row *types.AccountBalanceObject
		var ok bool
		app.chain.View(func(*store.Store) { row, ok = app.chain.Dispatcher().Ledger().Row(q.Account, q.Asset) })
		if ok {
			obj, err := app.store.ReadCommitted(row.ID)
			switch {
			case err == nil:
				amount = obj.(*types.AccountBalanceObject).Amount()
			case !errors.Is(err, errors.NotFound):
				return nil, nil, err
			}
		}
		value, err := cramberry.Marshal(&amount)
		return req.Data, value, errors.Internal.Wrap(err)

	case types.QueryAccount:
		var obj types.Object
		var ok bool
		app.chain.View(func(s *store.Store) { obj, ok = s.Lookup(evaluator.IndexAccountName, string(req.Data)) })
		if !ok {
			return nil, nil, errors.NotFound.WithFormat("account %q not found", req.Data)
		}
		value, err := app.store.ReadCommittedRaw(obj.GetID())
		return req.Data, value, err

	case types.QueryParameters:
		obj, err := app.store.ReadCommitted(types.GlobalPropertyID)
		if err != nil {
			return nil, nil, err
		}
		value, err := cramberry.Marshal(&obj.(*types.GlobalPropertyObject).Parameters)
		return nil, value, errors.Internal.Wrap(err)

	case types.QueryHead:
		value, err := cramberry.Marshal(&app.committed)
		return nil, value, errors.Internal.Wrap(err)

	default:
		return nil, nil, errors.NotSupported.WithFormat("unknown query path %q", req.Path)
	}
}

package store

import (
	"github.com/blockberries/ledger/types"
)

// GlobalProperties returns the governed chain parameters object. It
// panics if the chain has not been initialized.
func GlobalProperties(s *Store) *types.GlobalPropertyObject {
	gpo, err := Load[*types.GlobalPropertyObject](s, types.GlobalPropertyID)
	if err != nil {
		panic(err)
	}
	return gpo
}

// Parameters returns the active chain parameters.
func Parameters(s *Store) *types.ChainParameters {
	return &GlobalProperties(s).Parameters
}

// DynamicGlobals returns the head state object. It panics if the chain
// has not been initialized.
func DynamicGlobals(s *Store) *types.DynamicGlobalPropertyObject {
	dgp, err := Load[*types.DynamicGlobalPropertyObject](s, types.DynamicGlobalPropertyID)
	if err != nil {
		panic(err)
	}
	return dgp
}

// HeadTime returns the timestamp of the head block.
func HeadTime(s *Store) types.TimePoint { return DynamicGlobals(s).Time }

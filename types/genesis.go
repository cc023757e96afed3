package types

// GenesisAccount is an account created at genesis.
type GenesisAccount struct {
	Name             string    `cramberry:"1" json:"name"`
	OwnerKey         PublicKey `cramberry:"2" json:"owner_key"`
	ActiveKey        PublicKey `cramberry:"3" json:"active_key"`
	IsLifetimeMember bool      `cramberry:"4" json:"is_lifetime_member"`
}

// GenesisAsset is an asset created at genesis.
type GenesisAsset struct {
	Symbol           string `cramberry:"1" json:"symbol"`
	IssuerName       string `cramberry:"2" json:"issuer_name"`
	Precision        uint8  `cramberry:"3" json:"precision"`
	MaxSupply        int64  `cramberry:"4" json:"max_supply"`
	CoreExchangeRate Price  `cramberry:"5" json:"core_exchange_rate"`
	FeePool          int64  `cramberry:"6" json:"fee_pool"`
}

// GenesisBalance is an initial balance.
type GenesisBalance struct {
	Owner  string `cramberry:"1" json:"owner"`
	Symbol string `cramberry:"2" json:"symbol"`
	Amount int64  `cramberry:"3" json:"amount"`
}

// GenesisWitness is an initial block producer.
type GenesisWitness struct {
	OwnerName       string    `cramberry:"1" json:"owner_name"`
	BlockSigningKey PublicKey `cramberry:"2" json:"block_signing_key"`
}

// GenesisDoc is the genesis document for chain initialization.
type GenesisDoc struct {
	ChainID           string           `cramberry:"1" json:"chain_id"`
	GenesisTime       TimePoint        `cramberry:"2" json:"genesis_time"`
	InitialParameters ChainParameters  `cramberry:"3" json:"initial_parameters"`
	InitialAccounts   []GenesisAccount `cramberry:"4" json:"initial_accounts"`
	InitialAssets     []GenesisAsset   `cramberry:"5" json:"initial_assets"`
	InitialBalances   []GenesisBalance `cramberry:"6" json:"initial_balances"`
	InitialWitnesses  []GenesisWitness `cramberry:"7" json:"initial_witnesses"`
	// CoreSymbol names the core asset. Its supply is the sum of core
	// initial balances.
	CoreSymbol string `cramberry:"8" json:"core_symbol"`
}

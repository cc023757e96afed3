package types

// HandshakeRequest is sent by the engine on every startup.
type HandshakeRequest struct {
	// The last block the ENGINE committed. Nil = genesis (fresh chain).
	LastCommitted *BlockRef `cramberry:"1"`
	// Genesis document. Only set when LastCommitted is nil.
	Genesis *GenesisDoc `cramberry:"2"`
}

// HandshakeResponse is the node's reply, reporting its state and
// capabilities.
type HandshakeResponse struct {
	// The last block the node committed. Nil = no state.
	LastBlock *BlockRef `cramberry:"1"`
	// App hash at that height (for consistency check with engine).
	AppHash *AppHash `cramberry:"2"`
	// Capabilities this node supports. Drives engine behavior.
	Capabilities Capabilities `cramberry:"3"`
}

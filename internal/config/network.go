package config

import "github.com/btcsuite/btcd/chaincfg"

// Params names the per-network constants a node's genesis, peer
// handshake, and coinbase-maturity checks depend on. Borrows
// chaincfg's magic-number and default-port conventions rather than
// inventing a parallel table; GenesisTimestampMs and CoinbaseMaturity
// are this protocol's own, chaincfg carries no notion of either.
type Params struct {
	Magic             uint32
	DefaultPort       string
	GenesisTimestampMs int64
	CoinbaseMaturity  uint64
}

// paramsByNetwork maps each supported Network to its Params. Alpha
// borrows SimNet's magic/port pairing since both name a
// developer-facing test network distinct from Main/Testnet/Regtest.
var paramsByNetwork = map[Network]Params{
	Main:     {Magic: uint32(chaincfg.MainNetParams.Net), DefaultPort: chaincfg.MainNetParams.DefaultPort, GenesisTimestampMs: 1_231_006_505_000, CoinbaseMaturity: 144},
	Alpha:    {Magic: uint32(chaincfg.SimNetParams.Net), DefaultPort: chaincfg.SimNetParams.DefaultPort, GenesisTimestampMs: 1_296_688_602_000, CoinbaseMaturity: 10},
	Testnet:  {Magic: uint32(chaincfg.TestNet3Params.Net), DefaultPort: chaincfg.TestNet3Params.DefaultPort, GenesisTimestampMs: 1_296_688_602_000, CoinbaseMaturity: 100},
	Regtest:  {Magic: uint32(chaincfg.RegressionNetParams.Net), DefaultPort: chaincfg.RegressionNetParams.DefaultPort, GenesisTimestampMs: 1_296_688_602_000, CoinbaseMaturity: 2},
}

// ParamsFor returns the network parameters for n, panicking only if n
// is outside the four values ParseNetwork can ever produce.
func ParamsFor(n Network) Params {
	p, ok := paramsByNetwork[n]
	if !ok {
		panic("config: no Params registered for network")
	}
	return p
}

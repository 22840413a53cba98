// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package params

// The genesis header for each network. There is no parent to link to
// and no proof-of-work search performed here; these are fixed values
// the Block Index Map seeds height zero with.

var mainnetGenesisHeader = BlockHeader{
	Version: 1,
	Time:    1231006505,
	Bits:    0x1d00ffff,
	Nonce:   2083236893,
}

var testnet1GenesisHeader = BlockHeader{
	Version: 1,
	Time:    1296688602,
	Bits:    0x1d00ffff,
	Nonce:   414098458,
}

var alphanetGenesisHeader = BlockHeader{
	Version: 1,
	Time:    1296688602,
	Bits:    0x207fffff,
	Nonce:   0,
}

var regtestGenesisHeader = BlockHeader{
	Version: 1,
	Time:    1296688602,
	Bits:    0x207fffff,
	Nonce:   0,
}

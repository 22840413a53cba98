// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package params

// NetworkParams holds the small set of chain parameters the storage
// engine needs: the magic bytes that frame on-disk records, the file
// size limits that bound the Write Coordinator, and the on-disk
// directory layout.
//
// This intentionally does not carry consensus rules, seed addresses,
// or any other parameter outside the storage engine's concern, per
// the chain-parameter-table scope named in the out-of-scope list.
type NetworkParams struct {
	// Name is the human-readable network name used in log output.
	Name string

	// BlockMagic are the four magic bytes that prefix every forward
	// (block) record. Mismatch during a scan means "no record here."
	BlockMagic [4]byte

	// UndoMagic are the four magic bytes that prefix every revert
	// (undo) record. Kept distinct from BlockMagic so a reindex scan
	// of a forward file can never mistake an undo record header for a
	// block header, and vice versa.
	UndoMagic [4]byte

	// MaxFileBytes caps the size of a single forward (blkNNNNN.dat)
	// file. Revert files are not capped.
	MaxFileBytes uint32

	// BlockFileChunkSize is the increment by which a forward file is
	// grown when it runs out of tail space.
	BlockFileChunkSize uint32

	// UndoFileChunkSize is the increment by which a revert file is
	// grown when it runs out of tail space.
	UndoFileChunkSize uint32

	// DataDir is the network-specific subdirectory name under the
	// node's base data directory, so mainnet/testnet/regtest data
	// never collide in the same directory tree.
	DataDir string

	// GenesisHeader is the fixed 80-byte header every block index for
	// this network is seeded with at height 0.
	GenesisHeader BlockHeader
}

// BlockHeader is the fixed-size, 80-byte Bitcoin-style block header
// the storage engine hashes and indexes. Transaction bytes and the
// rest of the block body are opaque to this engine; only the header
// fields participate in chain-selection and indexing.
type BlockHeader struct {
	Version    int32
	PrevBlock  [32]byte
	MerkleRoot [32]byte
	Time       uint32
	Bits       uint32
	Nonce      uint32
}

var (
	// MainnetParams are the parameters for the main network.
	MainnetParams = NetworkParams{
		Name:               "mainnet",
		BlockMagic:         [4]byte{0xf9, 0xbe, 0xb4, 0xd9},
		UndoMagic:          [4]byte{0xf9, 0xbe, 0xb4, 0xda},
		MaxFileBytes:       128 * 1024 * 1024,
		BlockFileChunkSize: 16 * 1024 * 1024,
		UndoFileChunkSize:  1 * 1024 * 1024,
		DataDir:            "mainnet",
		GenesisHeader:      mainnetGenesisHeader,
	}

	// Testnet1Params are the parameters for the primary test network.
	Testnet1Params = NetworkParams{
		Name:               "testnet1",
		BlockMagic:         [4]byte{0x0b, 0x11, 0x09, 0x07},
		UndoMagic:          [4]byte{0x0b, 0x11, 0x09, 0x08},
		MaxFileBytes:       32 * 1024 * 1024,
		BlockFileChunkSize: 4 * 1024 * 1024,
		UndoFileChunkSize:  512 * 1024,
		DataDir:            "testnet1",
		GenesisHeader:      testnet1GenesisHeader,
	}

	// AlphanetParams are the parameters for the fast-test ("fttest")
	// network used in integration tests where short file rollovers
	// need to be exercised without touching production-size files.
	AlphanetParams = NetworkParams{
		Name:               "fttest",
		BlockMagic:         [4]byte{0xfa, 0xbf, 0xb5, 0xda},
		UndoMagic:          [4]byte{0xfa, 0xbf, 0xb5, 0xdb},
		MaxFileBytes:       1 * 1024 * 1024,
		BlockFileChunkSize: 128 * 1024,
		UndoFileChunkSize:  32 * 1024,
		DataDir:            "fttest",
		GenesisHeader:      alphanetGenesisHeader,
	}

	// RegestParams are the parameters used by regression tests. File
	// sizes are kept tiny so rollover and growth paths are reachable
	// in a handful of writes.
	RegestParams = NetworkParams{
		Name:               "regtest",
		BlockMagic:         [4]byte{0xfa, 0xbf, 0xb5, 0xdb},
		UndoMagic:          [4]byte{0xfa, 0xbf, 0xb5, 0xdc},
		MaxFileBytes:       16 * 1024,
		BlockFileChunkSize: 4 * 1024,
		UndoFileChunkSize:  4 * 1024,
		DataDir:            "regtest",
		GenesisHeader:      regtestGenesisHeader,
	}
)

// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

// Command blockstoretool operates directly on a block storage
// engine's data directory: inspecting its file/tip state, forcing a
// reindex, or compacting its metadata store, without running a full
// node around it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/project-illium/ilxd/blockstore"
	"github.com/project-illium/ilxd/params"
)

type options struct {
	DataDir  string `short:"d" long:"datadir" description:"Block storage engine data directory" required:"true"`
	Network  string `short:"n" long:"network" description:"Network (mainnet, testnet1, fttest, regtest)" default:"mainnet"`
	LogLevel string `short:"l" long:"loglevel" description:"Logging level (debug, info, warning, error, fatal)" default:"info"`
}

func (o *options) networkParams() (*params.NetworkParams, error) {
	switch o.Network {
	case "mainnet":
		return &params.MainnetParams, nil
	case "testnet1":
		return &params.Testnet1Params, nil
	case "fttest":
		return &params.AlphanetParams, nil
	case "regtest":
		return &params.RegestParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", o.Network)
	}
}

type inspectCmd struct{}

func (c *inspectCmd) Execute(args []string) error {
	setupLogging(opts.LogLevel)
	np, err := opts.networkParams()
	if err != nil {
		return err
	}
	cfg := blockstore.Config{DataDir: opts.DataDir, Params: np}
	store, err := blockstore.CreateInstance(cfg, nil, nil)
	if err != nil {
		return err
	}
	defer store.Shutdown()

	tip := store.HeaderChain().Tip()
	fmt.Printf("best tip:    %s\n", tip.Hash)
	fmt.Printf("height:      %d\n", tip.Height)
	fmt.Printf("tips known:  %d\n", len(store.HeaderChainTips()))

	last, ok, err := store.ReadLastBlockFile()
	if err != nil {
		return err
	}
	if ok {
		fi, err := store.ReadBlockFileInfo(last)
		if err == nil {
			fmt.Printf("last file:   %d (%d blocks, %d data bytes, %d undo bytes)\n",
				last, fi.Count, fi.DataBytes, fi.UndoBytes)
		}
	}
	return nil
}

type reindexCmd struct{}

func (c *reindexCmd) Execute(args []string) error {
	setupLogging(opts.LogLevel)
	np, err := opts.networkParams()
	if err != nil {
		return err
	}
	cfg := blockstore.Config{DataDir: opts.DataDir, Params: np}
	store, err := blockstore.CreateInstance(cfg, nil, nil)
	if err != nil {
		return err
	}
	defer store.Shutdown()

	if err := store.SetReindexing(blockstore.ScanningFiles); err != nil {
		return err
	}
	return store.StartBlockImporter(context.Background())
}

type compactCmd struct{}

func (c *compactCmd) Execute(args []string) error {
	setupLogging(opts.LogLevel)
	np, err := opts.networkParams()
	if err != nil {
		return err
	}
	cfg := blockstore.Config{DataDir: opts.DataDir, Params: np, Wipe: false}
	store, err := blockstore.CreateInstance(cfg, nil, nil)
	if err != nil {
		return err
	}
	return store.Shutdown()
}

var opts options

func main() {
	parser := flags.NewNamedParser("blockstoretool", flags.Default)
	parser.AddGroup("Global Options", "", &opts)
	if _, err := parser.AddCommand("inspect", "Print tip and file summary", "", &inspectCmd{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if _, err := parser.AddCommand("reindex", "Rescan every forward data file; no validator is attached, so the block index is not rebuilt", "", &reindexCmd{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if _, err := parser.AddCommand("compact", "Reopen the metadata store to drop stale keys", "", &compactCmd{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

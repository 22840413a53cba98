// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package blockstore

import (
	"context"
	"testing"

	datastore "github.com/ipfs/go-datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSideDataPutGetSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	key := datastore.NewKey("/peerbook/127.0.0.1")

	sd, err := openSideData(dir, 0)
	require.NoError(t, err)
	require.NoError(t, sd.Put(ctx, key, []byte("peer-info")))
	require.NoError(t, sd.Close())

	sd2, err := openSideData(dir, 0)
	require.NoError(t, err)
	defer sd2.Close()

	got, err := sd2.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("peer-info"), got)
}

func TestSideDataIsSeparateFromBlockMetadata(t *testing.T) {
	store, err := CreateInstance(Config{DataDir: t.TempDir(), Params: testParams(16 * 1024)}, nil, nil)
	require.NoError(t, err)
	defer store.Shutdown()

	ctx := context.Background()
	key := datastore.NewKey("/checkpoint")
	require.NoError(t, store.SideData().Put(ctx, key, []byte("checkpoint-data")))

	got, err := store.SideData().Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("checkpoint-data"), got)
}

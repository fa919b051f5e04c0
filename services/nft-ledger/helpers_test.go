package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/chain"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/config"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/storage"
)

type account struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func newAccount(t *testing.T) account {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return account{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type testEnv struct {
	admin, alice, bob account

	node   *ledgerNode
	api    *APIServer
	server *httptest.Server
	hook   *logtest.Hook
}

func testConfig(admin common.Address) *config.Config {
	cfg := config.Default()
	cfg.Collection.Admin = admin.Hex()
	cfg.Collection.MaxSupply = 5
	cfg.Storage.Backend = storage.BackendMemory
	cfg.Storage.DataDir = ""
	cfg.Log.JournalDir = ""
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{admin: newAccount(t), alice: newAccount(t), bob: newAccount(t)}

	logger, hook := logtest.NewNullLogger()
	env.hook = hook

	node, err := openLedger(testConfig(env.admin.address), logger)
	require.NoError(t, err)
	node.sequencer.Start(context.Background())
	env.node = node

	env.api = NewAPIServer(node, true)
	env.server = httptest.NewServer(env.api.Handler())
	t.Cleanup(func() {
		env.api.Close()
		env.server.Close()
		node.Close()
	})
	return env
}

func (e *testEnv) get(t *testing.T, path string) (int, envelope) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func (e *testEnv) postRaw(t *testing.T, payload []byte) (int, envelope) {
	t.Helper()
	resp, err := http.Post(e.server.URL+"/api/v1/transactions", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func (e *testEnv) submit(t *testing.T, tx *chain.Transaction, signer account) (int, envelope) {
	t.Helper()
	require.NoError(t, tx.Sign(signer.key))
	payload, err := json.Marshal(tx)
	require.NoError(t, err)
	return e.postRaw(t, payload)
}

func decodeData(t *testing.T, body envelope, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body.Data, into))
}

package nft

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const testBaseURI = "https://api.example.com/metadata/"

var (
	admin = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	addr1 = common.HexToAddress("0x0000000000000000000000000000000000000001")
	addr2 = common.HexToAddress("0x0000000000000000000000000000000000000002")
	addr3 = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func testOptions() Options {
	return Options{
		Name:      "NFT Collection",
		Symbol:    "NFT",
		MaxSupply: 10000,
		BaseURI:   testBaseURI,
		Admin:     admin,
	}
}

func newTestCollection(t *testing.T) *Collection {
	t.Helper()
	c, err := NewCollection(testOptions())
	require.NoError(t, err)
	return c
}

func newCappedCollection(t *testing.T, maxSupply uint64) *Collection {
	t.Helper()
	opts := testOptions()
	opts.MaxSupply = maxSupply
	c, err := NewCollection(opts)
	require.NoError(t, err)
	return c
}

// nft-ledger runs and operates a single NFT collection ledger.
//
// Usage:
//
//	nft-ledger [--config nft.toml] serve
//	nft-ledger keygen --out admin.key
//	nft-ledger sign --keyfile admin.key --type mint --to 0x.. --token-id 1
//	nft-ledger inspect
package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

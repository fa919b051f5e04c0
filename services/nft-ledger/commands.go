package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/chain"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/config"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/nft"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/storage"
)

var Version = "dev"

func newApp() *cli.App {
	return &cli.App{
		Name:    "nft-ledger",
		Usage:   "NFT collection ownership ledger",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML config file",
				EnvVars: []string{"NFT_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Override storage.data_dir",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override log.level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			keygenCommand(),
			signCommand(),
			inspectCommand(),
		},
	}
}

// readConfig applies the global flags on top of config.Read.
func readConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Read(c.String("config"))
	if err != nil {
		return nil, err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.Storage.DataDir = dir
	}
	if level := c.String("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the ledger HTTP API and event stream",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Override server.listen_addr",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := readConfig(c)
	if err != nil {
		return err
	}
	if addr := c.String("listen"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	node, err := openLedger(cfg, logger)
	if err != nil {
		return err
	}
	defer node.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	node.sequencer.Start(ctx)
	go node.monitor.Run(ctx)
	api := NewAPIServer(node, cfg.Server.EnableCORS)
	defer api.Close()

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("🌐 NFT ledger API listening on %s", cfg.Server.ListenAddr)
		logger.Infof("📡 Event stream: ws://%s/ws/events", cfg.Server.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("🛑 Shutting down NFT ledger")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate a secp256k1 account key",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out",
				Usage: "Write the private key to this file instead of printing it",
			},
		},
		Action: func(c *cli.Context) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			address := crypto.PubkeyToAddress(key.PublicKey)

			w := c.App.Writer
			color.New(color.FgGreen, color.Bold).Fprintf(w, "Address:     %s\n", address.Hex())
			if out := c.String("out"); out != "" {
				if err := crypto.SaveECDSA(out, key); err != nil {
					return fmt.Errorf("save key: %w", err)
				}
				fmt.Fprintf(w, "Key file:    %s\n", out)
				return nil
			}
			color.New(color.FgYellow).Fprintf(w, "Private key: %x\n", crypto.FromECDSA(key))
			return nil
		},
	}
}

func signCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "Build and sign a ledger transaction",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Usage: "Hex private key of the caller"},
			&cli.StringFlag{Name: "keyfile", Usage: "File holding the caller's hex private key"},
			&cli.StringFlag{Name: "type", Usage: "mint, transferFrom, approve, burn, pause or unpause", Required: true},
			&cli.StringFlag{Name: "from", Usage: "Current owner (transferFrom)"},
			&cli.StringFlag{Name: "to", Usage: "Recipient (mint, transferFrom)"},
			&cli.StringFlag{Name: "approved", Usage: "Spender to approve; omit to revoke (approve)"},
			&cli.Uint64Flag{Name: "token-id", Usage: "Token id"},
			&cli.Uint64Flag{Name: "nonce", Usage: "Nonce distinguishing otherwise identical transactions"},
			&cli.StringFlag{Name: "submit", Usage: "POST the signed transaction to this API base URL"},
		},
		Action: runSign,
	}
}

func runSign(c *cli.Context) error {
	key, err := loadKey(c.String("key"), c.String("keyfile"))
	if err != nil {
		return err
	}
	tx, err := buildTransaction(c)
	if err != nil {
		return err
	}
	if err := tx.Sign(key); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return err
	}

	base := c.String("submit")
	if base == "" {
		fmt.Fprintln(c.App.Writer, string(payload))
		return nil
	}

	resp, err := http.Post(strings.TrimSuffix(base, "/")+"/api/v1/transactions", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("submit transaction: %w", err)
	}
	defer resp.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !body.Success {
		return fmt.Errorf("transaction %s rejected: %s (%s)", tx.Hash().Hex(), body.Error, body.Code)
	}
	color.New(color.FgGreen).Fprintf(c.App.Writer, "✅ Transaction %s applied\n", tx.Hash().Hex())
	return nil
}

func loadKey(hexKey, keyfile string) (*ecdsa.PrivateKey, error) {
	switch {
	case hexKey != "" && keyfile != "":
		return nil, errors.New("use only one of --key and --keyfile")
	case hexKey != "":
		key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse key: %w", err)
		}
		return key, nil
	case keyfile != "":
		key, err := crypto.LoadECDSA(keyfile)
		if err != nil {
			return nil, fmt.Errorf("load key file: %w", err)
		}
		return key, nil
	default:
		return nil, errors.New("one of --key or --keyfile is required")
	}
}

func parseAddressFlag(c *cli.Context, name string) (common.Address, error) {
	raw := c.String(name)
	if raw == "" {
		return nft.NoIdentity, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("--%s %q is not a hex address", name, raw)
	}
	return common.HexToAddress(raw), nil
}

func buildTransaction(c *cli.Context) (*chain.Transaction, error) {
	txType, err := chain.ParseTransactionType(c.String("type"))
	if err != nil {
		return nil, err
	}
	from, err := parseAddressFlag(c, "from")
	if err != nil {
		return nil, err
	}
	to, err := parseAddressFlag(c, "to")
	if err != nil {
		return nil, err
	}
	approved, err := parseAddressFlag(c, "approved")
	if err != nil {
		return nil, err
	}
	tokenID := c.Uint64("token-id")

	var tx *chain.Transaction
	switch txType {
	case chain.MintToken:
		tx = chain.NewMint(to, tokenID)
	case chain.TransferToken:
		tx = chain.NewTransferFrom(from, to, tokenID)
	case chain.ApproveToken:
		tx = chain.NewApprove(approved, tokenID)
	case chain.BurnToken:
		tx = chain.NewBurn(tokenID)
	case chain.PauseCollection:
		tx = chain.NewPause()
	case chain.UnpauseCollection:
		tx = chain.NewUnpause()
	}
	tx.Nonce = c.Uint64("nonce")
	return tx, nil
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Print the stored collection state and check its invariants",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print the status as JSON"},
			&cli.BoolFlag{Name: "events", Usage: "Also list the stored events"},
		},
		Action: runInspect,
	}
}

func runInspect(c *cli.Context) error {
	cfg, err := readConfig(c)
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("inspect %s store in %s: %w", cfg.Storage.Backend, cfg.Storage.DataDir, err)
	}
	collection, restoreErr := nft.Restore(snap, nil)

	w := c.App.Writer
	if c.Bool("json") {
		if restoreErr != nil {
			return restoreErr
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(collection.GetStatus())
	}

	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(w, "%s (%s)\n", snap.Name, snap.Symbol)
	fmt.Fprintf(w, "  Admin:        %s\n", snap.Admin.Hex())
	fmt.Fprintf(w, "  Base URI:     %s\n", snap.BaseURI)
	fmt.Fprintf(w, "  Supply:       %d / %d\n", len(snap.Owners), snap.MaxSupply)
	fmt.Fprintf(w, "  Paused:       %t\n", snap.Paused)
	fmt.Fprintf(w, "  Approvals:    %d\n", len(snap.Approvals))
	fmt.Fprintf(w, "  Retired ids:  %d\n", len(snap.Retired))
	var lastEvent uint64
	if snap.NextSequence > 0 {
		lastEvent = snap.NextSequence - 1
	}
	fmt.Fprintf(w, "  Last event:   %d\n", lastEvent)

	if c.Bool("events") {
		events, err := store.Events(0)
		if err != nil {
			return err
		}
		header.Fprintf(w, "Events (%d)\n", len(events))
		for _, e := range events {
			fmt.Fprintf(w, "  #%d %s token=%d from=%s to=%s\n", e.Sequence, e.Type, e.TokenID, e.From.Hex(), e.To.Hex())
		}
	}

	if restoreErr != nil {
		color.New(color.FgRed).Fprintf(w, "❌ Invariants violated: %v\n", restoreErr)
		return restoreErr
	}
	color.New(color.FgGreen).Fprintln(w, "✅ Invariants hold")
	return nil
}

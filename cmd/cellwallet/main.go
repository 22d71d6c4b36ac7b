// cellwallet is a command-line wallet for cell-chain networks. It keeps
// a local index of the owner's live cells by syncing headers and blocks
// from a remote full node, and builds and signs transactions against
// that index.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/cellchain/cellwallet/config"
	"github.com/cellchain/cellwallet/internal/index"
	"github.com/cellchain/cellwallet/internal/log"
	"github.com/cellchain/cellwallet/internal/query"
	"github.com/cellchain/cellwallet/internal/rpcclient"
	"github.com/cellchain/cellwallet/internal/storage"
	chainsync "github.com/cellchain/cellwallet/internal/sync"
	"github.com/cellchain/cellwallet/internal/wallet"
	"github.com/cellchain/cellwallet/pkg/crypto"
	"github.com/cellchain/cellwallet/pkg/tx"
	"github.com/cellchain/cellwallet/pkg/types"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg := config.DefaultMainnet()

	// Scan for global flags appearing before the subcommand.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--node" && len(args) > 1:
			cfg.Node.URL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--node="):
			cfg.Node.URL = args[0][len("--node="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			cfg.DataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			cfg.DataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			cfg.Network = config.NetworkType(args[1])
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			cfg.Network = config.NetworkType(args[0][len("--network="):])
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	// File config fills anything the flags didn't override.
	if values, err := config.LoadFile(cfg.ConfigFile()); err == nil {
		if err := config.ApplyFileConfig(cfg, values); err != nil {
			fatal("config file: %v", err)
		}
	}
	if err := config.Validate(cfg); err != nil {
		fatal("config: %v", err)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	if cfg.Network == config.Testnet {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "status":
		cmdStatus(cfg)
	case "wallet":
		cmdWallet(cfg, cmdArgs)
	case "track":
		cmdTrack(cfg, cmdArgs)
	case "untrack":
		cmdUntrack(cfg, cmdArgs)
	case "tracked":
		cmdTracked(cfg)
	case "sync":
		cmdSync(cfg, cmdArgs)
	case "rescan":
		cmdRescan(cfg)
	case "balance":
		cmdBalance(cfg, cmdArgs)
	case "cells":
		cmdCells(cfg, cmdArgs)
	case "send":
		cmdSend(cfg, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: cellwallet [global flags] <command> [flags]

Global flags:
  --node <url>        Node RPC endpoint (default: http://127.0.0.1:8545)
  --datadir <path>    Data directory (default: ~/.cellwallet)
  --network <net>     mainnet (default) or testnet

Commands:
  status                          Show local sync state and node tip
  sync [--follow]                 Sync the local index to the node tip
  rescan                          Drop the index and resync from scratch

  wallet create --name <n>        Create a new wallet
  wallet import --name <n> --mnemonic "..."
                                  Import wallet from mnemonic
  wallet list                     List wallets
  wallet address --wallet <w>     List wallet addresses
  wallet new-address --wallet <w> Derive the next receiving address

  track <address> [--label <l>]   Track an address's cells in the index
  untrack <address>               Stop tracking and drop its cells
  tracked                         List tracked addresses

  balance <address>               Show tracked balance for an address
  balance --wallet <w>            Show balance across wallet addresses
  cells <address>                 List live cells for an address

  send --wallet <w> --to <addr> --amount <n> [--fee-rate <r>]
                                  Build, sign, and submit a transfer
`)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// openIndex opens the badger-backed cell index under the datadir.
func openIndex(cfg *config.Config) (*index.Store, func()) {
	db, err := storage.NewBadger(cfg.IndexDir())
	if err != nil {
		fatal("open index db: %v", err)
	}
	store, err := index.NewStore(db, cfg.Sync.RollbackWindow)
	if err != nil {
		db.Close()
		fatal("open index: %v", err)
	}
	return store, func() { db.Close() }
}

func newEngine(cfg *config.Config, store *index.Store) *chainsync.Engine {
	client := rpcclient.NewWithTimeout(cfg.Node.URL, cfg.Node.Timeout)
	return chainsync.NewEngine(store, client, chainsync.Config{
		StartHeight:    cfg.Sync.StartHeight,
		MaturityWindow: cfg.Sync.MaturityWindow,
		PollInterval:   cfg.Sync.PollInterval,
	})
}

func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// =============================================================================
// status / sync / rescan
// =============================================================================

func cmdStatus(cfg *config.Config) {
	store, closeDB := openIndex(cfg)
	defer closeDB()

	cursor, ok, err := store.Cursor()
	if err != nil {
		fatal("read cursor: %v", err)
	}
	if !ok {
		fmt.Println("Local index: empty (no blocks applied)")
	} else {
		fmt.Printf("Local index: height %d (%s)\n", cursor.Height, cursor.Hash.Short())
	}

	locks, err := store.TrackedLocks()
	if err != nil {
		fatal("read tracked locks: %v", err)
	}
	fmt.Printf("Tracked locks: %d\n", len(locks))

	ctx, cancel := interruptContext()
	defer cancel()
	client := rpcclient.NewWithTimeout(cfg.Node.URL, cfg.Node.Timeout)
	info, err := client.GetChainInfo(ctx)
	if err != nil {
		fmt.Printf("Node: unreachable (%v)\n", err)
		return
	}
	fmt.Printf("Node: %s, tip height %d (%s)\n", info.Network, info.TipHeight, info.TipHash.Short())
	if ok && info.TipHeight > cursor.Height {
		fmt.Printf("Behind by %d blocks\n", info.TipHeight-cursor.Height)
	}
}

func cmdSync(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	follow := fs.Bool("follow", false, "Keep polling the node after catching up")
	fs.Parse(args)

	store, closeDB := openIndex(cfg)
	defer closeDB()
	engine := newEngine(cfg, store)

	ctx, cancel := interruptContext()
	defer cancel()

	if *follow {
		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			fatal("sync: %v", err)
		}
		return
	}

	if err := engine.Tick(ctx); err != nil {
		fatal("sync: %v", err)
	}
	if cursor, ok, err := store.Cursor(); err == nil && ok {
		fmt.Printf("Synced to height %d (%s)\n", cursor.Height, cursor.Hash.Short())
	} else {
		fmt.Println("Synced (index empty)")
	}
}

func cmdRescan(cfg *config.Config) {
	store, closeDB := openIndex(cfg)
	defer closeDB()
	engine := newEngine(cfg, store)

	ctx, cancel := interruptContext()
	defer cancel()

	if err := engine.Rescan(ctx); err != nil {
		fatal("rescan: %v", err)
	}
	if cursor, ok, err := store.Cursor(); err == nil && ok {
		fmt.Printf("Rescanned to height %d (%s)\n", cursor.Height, cursor.Hash.Short())
	}
}

// =============================================================================
// track / untrack
// =============================================================================

func cmdTrack(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("track", flag.ExitOnError)
	label := fs.String("label", "", "Human-readable label for the lock")

	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fatal("Usage: cellwallet track <address> [--label <l>]")
	}
	addr, err := types.ParseAddress(args[0])
	if err != nil {
		fatal("parse address: %v", err)
	}
	fs.Parse(args[1:])

	store, closeDB := openIndex(cfg)
	defer closeDB()

	if err := trackAddress(store, addr, *label); err != nil {
		fatal("track: %v", err)
	}
	fmt.Printf("Tracking %s (lock %s)\n", addr, crypto.LockHashForAddress(addr).Short())
	fmt.Println("Run 'cellwallet sync' to index its cells.")
}

// trackAddress registers the address's lock script. If blocks are
// already applied the lock is marked for backfill from the next sync.
func trackAddress(store *index.Store, addr types.Address, label string) error {
	cursor, ok, err := store.Cursor()
	if err != nil {
		return err
	}
	var added uint64
	if ok {
		added = cursor.Height
	}
	script := addr.Script()
	return store.Track(index.TrackedLock{
		LockHash:    crypto.ScriptHash(script),
		Script:      script,
		Label:       label,
		AddedHeight: added,
	})
}

func cmdUntrack(cfg *config.Config, args []string) {
	if len(args) != 1 {
		fatal("Usage: cellwallet untrack <address>")
	}
	addr, err := types.ParseAddress(args[0])
	if err != nil {
		fatal("parse address: %v", err)
	}

	store, closeDB := openIndex(cfg)
	defer closeDB()

	lockHash := crypto.LockHashForAddress(addr)
	if err := store.Untrack(lockHash); err != nil {
		fatal("untrack: %v", err)
	}
	fmt.Printf("Untracked %s\n", addr)
}

func cmdTracked(cfg *config.Config) {
	store, closeDB := openIndex(cfg)
	defer closeDB()

	locks, err := store.TrackedLocks()
	if err != nil {
		fatal("read tracked locks: %v", err)
	}
	if len(locks) == 0 {
		fmt.Println("No tracked addresses. Use 'cellwallet track <address>' to add one.")
		return
	}

	for _, l := range locks {
		var addr types.Address
		copy(addr[:], l.Script.Args)
		total, err := store.TotalCapacity(l.LockHash)
		if err != nil {
			fatal("read total: %v", err)
		}
		line := fmt.Sprintf("%s  capacity %d", addr, total)
		if l.Label != "" {
			line += fmt.Sprintf("  (%s)", l.Label)
		}
		if l.AddedHeight > 0 {
			line += "  [backfill pending]"
		}
		fmt.Println(line)
	}
}

// =============================================================================
// balance / cells
// =============================================================================

func cmdBalance(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Show the combined balance of a wallet's addresses")

	var addr types.Address
	haveAddr := false
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		a, err := types.ParseAddress(args[0])
		if err != nil {
			fatal("parse address: %v", err)
		}
		addr = a
		haveAddr = true
		args = args[1:]
	}
	fs.Parse(args)

	store, closeDB := openIndex(cfg)
	defer closeDB()
	q := query.NewEngine(store)

	switch {
	case haveAddr:
		printBalance(q, addr)
	case *walletName != "":
		ks, err := wallet.NewKeystore(cfg.KeystoreDir())
		if err != nil {
			fatal("open keystore: %v", err)
		}
		entries, err := ks.ListAccounts(*walletName)
		if err != nil {
			fatal("list accounts: %v", err)
		}
		var total, spendable uint64
		for _, e := range entries {
			acct, err := wallet.AccountFromEntry(e)
			if err != nil {
				fatal("%v", err)
			}
			bal, err := q.Balance(acct.LockHash())
			if err != nil {
				fatal("balance: %v", err)
			}
			total += bal.Total
			spendable += bal.Spendable
			fmt.Printf("%s  total=%d spendable=%d\n", acct.Address, bal.Total, bal.Spendable)
		}
		fmt.Printf("Wallet total: %d (spendable %d)\n", total, spendable)
	default:
		fatal("Usage: cellwallet balance <address> | balance --wallet <w>")
	}
}

func printBalance(q *query.Engine, addr types.Address) {
	bal, err := q.Balance(crypto.LockHashForAddress(addr))
	if err != nil {
		fatal("balance: %v", err)
	}
	fmt.Printf("Address:   %s\n", addr)
	fmt.Printf("Total:     %d\n", bal.Total)
	fmt.Printf("Spendable: %d\n", bal.Spendable)
	if bal.Immature > 0 {
		fmt.Printf("Immature:  %d\n", bal.Immature)
	}
	fmt.Printf("At height: %d\n", bal.Height)
}

func cmdCells(cfg *config.Config, args []string) {
	if len(args) != 1 {
		fatal("Usage: cellwallet cells <address>")
	}
	addr, err := types.ParseAddress(args[0])
	if err != nil {
		fatal("parse address: %v", err)
	}

	store, closeDB := openIndex(cfg)
	defer closeDB()
	q := query.NewEngine(store)

	cells, err := q.Cells(crypto.LockHashForAddress(addr))
	if err != nil {
		fatal("cells: %v", err)
	}
	if len(cells) == 0 {
		fmt.Println("No live cells.")
		return
	}

	height, _, err := q.SyncHeight()
	if err != nil {
		fatal("sync height: %v", err)
	}
	for _, c := range cells {
		mature := ""
		if !c.Mature(height) {
			mature = fmt.Sprintf("  (immature until %d)", c.MaturesAt)
		}
		fmt.Printf("%s  capacity=%d height=%d%s\n", c.OutPoint, c.Capacity, c.Height, mature)
	}
	fmt.Printf("%d cells\n", len(cells))
}

// =============================================================================
// send
// =============================================================================

func cmdSend(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet to spend from")
	to := fs.String("to", "", "Recipient address")
	amount := fs.Uint64("amount", 0, "Amount in base capacity units")
	feeRate := fs.Uint64("fee-rate", cfg.Wallet.FeeRate, "Fee in base units per byte")
	fs.Parse(args)

	if *walletName == "" || *to == "" || *amount == 0 {
		fatal("Usage: cellwallet send --wallet <w> --to <addr> --amount <n>")
	}
	toAddr, err := types.ParseAddress(*to)
	if err != nil {
		fatal("parse recipient: %v", err)
	}

	policy, err := query.ParsePolicy(cfg.Wallet.Selection)
	if err != nil {
		fatal("config: %v", err)
	}

	store, closeDB := openIndex(cfg)
	defer closeDB()
	q := query.NewEngine(store)

	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	entries, err := ks.ListAccounts(*walletName)
	if err != nil {
		fatal("list accounts: %v", err)
	}
	if len(entries) == 0 {
		fatal("wallet %q has no accounts", *walletName)
	}

	password, err := readPassword("Wallet password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	seed, err := ks.Load(*walletName, password)
	if err != nil {
		fatal("unlock wallet: %v", err)
	}
	defer zero(seed)
	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		fatal("derive master key: %v", err)
	}

	// Fund the transfer from the wallet's accounts in order, first one
	// that covers amount plus fee wins; change returns to it.
	signed, changeAddr, err := buildTransfer(q, master, entries, toAddr, *amount, *feeRate, policy)
	if err != nil {
		fatal("build transaction: %v", err)
	}

	ctx, cancel := interruptContext()
	defer cancel()
	client := rpcclient.NewWithTimeout(cfg.Node.URL, cfg.Node.Timeout)
	txHash, err := client.SubmitTransaction(ctx, signed)
	if err != nil {
		fatal("submit: %v", err)
	}

	fmt.Printf("Submitted: %s\n", txHash)
	fmt.Printf("Sent %d to %s (change to %s)\n", *amount, toAddr, changeAddr)
	fmt.Println("The balance updates once the next sync indexes the block.")
}

// buildTransfer selects cells, builds, and signs a transfer from the
// first wallet account whose spendable cells cover amount plus fee.
func buildTransfer(
	q *query.Engine,
	master *wallet.HDKey,
	entries []wallet.AccountEntry,
	to types.Address,
	amount, feeRate uint64,
	policy query.Policy,
) (*tx.Transaction, types.Address, error) {
	var lastErr error
	for _, e := range entries {
		acct, err := wallet.AccountFromEntry(e)
		if err != nil {
			return nil, types.Address{}, err
		}
		lockHash := acct.LockHash()

		// Fee depends on input count, which depends on selection; settle
		// with one re-selection round at the grown target.
		fee := tx.EstimateFee(1, 2, types.AddressSize, feeRate)
		sel, err := q.SelectCells(lockHash, amount+fee, policy)
		if err != nil {
			lastErr = err
			continue
		}
		fee = tx.EstimateFee(len(sel.Cells), 2, types.AddressSize, feeRate)
		if sel.Total < amount+fee {
			sel, err = q.SelectCells(lockHash, amount+fee, policy)
			if err != nil {
				lastErr = err
				continue
			}
			fee = tx.EstimateFee(len(sel.Cells), 2, types.AddressSize, feeRate)
			if sel.Total < amount+fee {
				lastErr = query.ErrInsufficientCapacity
				continue
			}
		}

		builder := tx.NewBuilder()
		for _, c := range sel.Cells {
			builder.AddInput(c.OutPoint, c.LockHash)
		}
		builder.AddOutput(amount, to.Script())
		if change := sel.Total - amount - fee; change > 0 {
			builder.AddOutput(change, acct.Address.Script())
		}

		key, err := master.DeriveAccountKey(0, acct.Change, acct.Index)
		if err != nil {
			return nil, types.Address{}, fmt.Errorf("derive key: %w", err)
		}
		signer, err := key.Signer()
		if err != nil {
			return nil, types.Address{}, err
		}
		defer signer.Zero()
		if key.Address() != acct.Address {
			return nil, types.Address{}, fmt.Errorf("derived address mismatch for account %d/%d", acct.Change, acct.Index)
		}

		if err := builder.SignMulti(map[types.Hash]*crypto.PrivateKey{lockHash: signer}); err != nil {
			return nil, types.Address{}, err
		}
		signed := builder.Build()
		if err := tx.ValidateStructure(signed); err != nil {
			return nil, types.Address{}, err
		}
		return signed, acct.Address, nil
	}
	if lastErr == nil {
		lastErr = query.ErrInsufficientCapacity
	}
	return nil, types.Address{}, lastErr
}

// =============================================================================
// wallet subcommands
// =============================================================================

func cmdWallet(cfg *config.Config, args []string) {
	if len(args) == 0 {
		fatal("Usage: cellwallet wallet <create|import|list|address|new-address> [flags]")
	}
	sub := args[0]
	subArgs := args[1:]

	switch sub {
	case "create":
		cmdWalletCreate(cfg, subArgs)
	case "import":
		cmdWalletImport(cfg, subArgs)
	case "list":
		cmdWalletList(cfg)
	case "address":
		cmdWalletAddress(cfg, subArgs)
	case "new-address":
		cmdWalletNewAddress(cfg, subArgs)
	default:
		fatal("unknown wallet subcommand: %s", sub)
	}
}

func cmdWalletCreate(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wallet create", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: cellwallet wallet create --name <name>")
	}

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)

	addr := setupWallet(cfg, *name, mnemonic)
	fmt.Printf("\nWallet created: %s\n", *name)
	fmt.Printf("Address: %s (tracked)\n", addr)
}

func cmdWalletImport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wallet import", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	mnemonic := fs.String("mnemonic", "", "BIP-39 mnemonic (24 words)")
	fs.Parse(args)

	if *name == "" || *mnemonic == "" {
		fatal("Usage: cellwallet wallet import --name <name> --mnemonic \"word1 word2 ...\"")
	}
	if !wallet.ValidateMnemonic(*mnemonic) {
		fatal("invalid mnemonic")
	}

	addr := setupWallet(cfg, *name, *mnemonic)
	fmt.Printf("Wallet imported: %s\n", *name)
	fmt.Printf("Address: %s (tracked)\n", addr)
	fmt.Println("Run 'cellwallet sync' to index its history.")
}

// setupWallet encrypts the seed, stores account 0, and tracks its lock
// in the index.
func setupWallet(cfg *config.Config, name, mnemonic string) types.Address {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}

	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive seed: %v", err)
	}
	defer zero(seed)

	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		fatal("derive master key: %v", err)
	}
	hdKey, err := master.DeriveAccountKey(0, wallet.ChangeExternal, 0)
	if err != nil {
		fatal("derive address: %v", err)
	}
	addr := hdKey.Address()

	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		fatal("create keystore: %v", err)
	}
	if err := ks.Create(name, seed, password, wallet.DefaultKDFParams()); err != nil {
		fatal("create wallet: %v", err)
	}
	if err := ks.AddAccount(name, wallet.AccountEntry{
		Index:   0,
		Change:  wallet.ChangeExternal,
		Label:   "Default",
		Address: addr.String(),
	}); err != nil {
		fatal("add account: %v", err)
	}
	if err := ks.BumpIndex(name, wallet.ChangeExternal); err != nil {
		fatal("advance index: %v", err)
	}

	store, closeDB := openIndex(cfg)
	defer closeDB()
	if err := trackAddress(store, addr, name+"/0"); err != nil {
		fatal("track: %v", err)
	}
	return addr
}

func cmdWalletList(cfg *config.Config) {
	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	names, err := ks.List()
	if err != nil {
		fatal("list wallets: %v", err)
	}
	if len(names) == 0 {
		fmt.Println("No wallets found.")
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func cmdWalletAddress(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wallet address", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: cellwallet wallet address --wallet <name>")
	}

	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	entries, err := ks.ListAccounts(*walletName)
	if err != nil {
		fatal("list accounts: %v", err)
	}
	for _, e := range entries {
		label := e.Label
		if label == "" {
			label = strconv.FormatUint(uint64(e.Index), 10)
		}
		fmt.Printf("%s  (%s, change=%d index=%d)\n", e.Address, label, e.Change, e.Index)
	}
}

func cmdWalletNewAddress(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wallet new-address", flag.ExitOnError)
	walletName := fs.String("wallet", "", "Wallet name")
	label := fs.String("label", "", "Label for the new address")
	fs.Parse(args)

	if *walletName == "" {
		fatal("Usage: cellwallet wallet new-address --wallet <name>")
	}

	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}

	password, err := readPassword("Wallet password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	seed, err := ks.Load(*walletName, password)
	if err != nil {
		fatal("unlock wallet: %v", err)
	}
	defer zero(seed)

	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		fatal("derive master key: %v", err)
	}
	next, err := ks.NextIndex(*walletName, wallet.ChangeExternal)
	if err != nil {
		fatal("next index: %v", err)
	}
	hdKey, err := master.DeriveAccountKey(0, wallet.ChangeExternal, next)
	if err != nil {
		fatal("derive address: %v", err)
	}
	addr := hdKey.Address()

	if err := ks.AddAccount(*walletName, wallet.AccountEntry{
		Index:   next,
		Change:  wallet.ChangeExternal,
		Label:   *label,
		Address: addr.String(),
	}); err != nil {
		fatal("add account: %v", err)
	}
	if err := ks.BumpIndex(*walletName, wallet.ChangeExternal); err != nil {
		fatal("advance index: %v", err)
	}

	store, closeDB := openIndex(cfg)
	defer closeDB()
	if err := trackAddress(store, addr, fmt.Sprintf("%s/%d", *walletName, next)); err != nil {
		fatal("track: %v", err)
	}

	fmt.Printf("New address: %s (tracked)\n", addr)
	fmt.Println("Run 'cellwallet sync' to index its history.")
}

// =============================================================================
// helpers
// =============================================================================

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This binary is the command line tool for managing shardkeep wallets.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	glog "github.com/golang/glog"
	"github.com/google/subcommands"
	"github.com/mr-tron/base58"
	"github.com/shardkeep/shardkeep/constants"
	"github.com/shardkeep/shardkeep/custody/config"
	"github.com/shardkeep/shardkeep/custody/errs"
	"github.com/shardkeep/shardkeep/custody/history"
	"github.com/shardkeep/shardkeep/custody/wallet"
)

// walletFlags are shared by every command that touches a wallet.
type walletFlags struct {
	configFile  string
	userID      string
	metricsFile string
}

func (w *walletFlags) register(f *flag.FlagSet) {
	f.StringVar(&w.configFile, "config-file", config.DefaultPath(), "Path to a shardkeep YAML config file. Optional.")
	f.StringVar(&w.userID, "user", os.Getenv(constants.UserIDEnv), "The user whose wallet to use. Defaults to $"+constants.UserIDEnv+".")
	f.StringVar(&w.metricsFile, "metrics-file", "", "If set, write key reconstruction metrics to this file on exit, for a node_exporter textfile collector.")
}

// open returns a wallet service for the configured repository.
func (w *walletFlags) open(ctx context.Context) (*wallet.Service, func(), error) {
	if w.userID == "" {
		return nil, nil, fmt.Errorf("no user given: pass --user or set $%s", constants.UserIDEnv)
	}
	return openService(ctx, w.configFile, w.metricsFile)
}

// fail logs err and prints the user-facing message for it.
func fail(err error) subcommands.ExitStatus {
	glog.Errorf("%v", err)
	fmt.Fprintln(os.Stderr, errs.UserMessage(err))
	return subcommands.ExitFailure
}

// readInput reads the named file, or stdin for "-".
func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

// createCmd handles CLI options for the create command.
type createCmd struct {
	walletFlags
}

func (*createCmd) Name() string     { return "create" }
func (*createCmd) Synopsis() string { return "generates a new wallet for a user" }
func (*createCmd) Usage() string {
	return `Usage: shardkeep create [--config-file=<config_file>] --user=<user_id>

Generates an Ed25519 key, stores it as shares and prints the public key.

Flags:
`
}
func (c *createCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *createCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, cleanup, err := c.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	pub, err := svc.Create(ctx, c.userID)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Your public key is: %s\n", pub)
	return subcommands.ExitSuccess
}

// importCmd handles CLI options for the import command.
type importCmd struct {
	walletFlags
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "imports an existing private key for a user" }
func (*importCmd) Usage() string {
	return `Usage: shardkeep import [--config-file=<config_file>] --user=<user_id> <key_file>

Reads a hex or base58 Ed25519 private key (64 bytes) or seed (32 bytes) from
<key_file>, or from stdin if <key_file> is "-".

Examples:
  $ shardkeep import --user=42 - < key.txt

Flags:
`
}
func (c *importCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		glog.Errorf("Not enough arguments (expected key file)")
		return subcommands.ExitUsageError
	}
	text, err := readInput(f.Arg(0))
	if err != nil {
		glog.Errorf("Failed to read key file: %v", err)
		return subcommands.ExitFailure
	}
	key, err := wallet.ParsePrivateKey(string(text))
	clear(text)
	if err != nil {
		return fail(err)
	}
	defer clear(key)

	svc, cleanup, err := c.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	pub, err := svc.Import(ctx, c.userID, key)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Wallet imported successfully! Your public key is: %s\n", pub)
	return subcommands.ExitSuccess
}

// pubkeyCmd handles CLI options for the pubkey command.
type pubkeyCmd struct {
	walletFlags
}

func (*pubkeyCmd) Name() string     { return "pubkey" }
func (*pubkeyCmd) Synopsis() string { return "prints a user's public key" }
func (*pubkeyCmd) Usage() string {
	return `Usage: shardkeep pubkey [--config-file=<config_file>] --user=<user_id>

Flags:
`
}
func (c *pubkeyCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *pubkeyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, cleanup, err := c.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	pub, err := svc.PublicKey(ctx, c.userID)
	if err != nil {
		return fail(err)
	}
	fmt.Println(pub)
	return subcommands.ExitSuccess
}

// signCmd handles CLI options for the sign command.
type signCmd struct {
	walletFlags
}

func (*signCmd) Name() string     { return "sign" }
func (*signCmd) Synopsis() string { return "signs a message with a user's key" }
func (*signCmd) Usage() string {
	return `Usage: shardkeep sign [--config-file=<config_file>] --user=<user_id> <message_file>

Signs the contents of <message_file> (stdin if "-") and prints the base58
Ed25519 signature.

Flags:
`
}
func (c *signCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *signCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		glog.Errorf("Not enough arguments (expected message file)")
		return subcommands.ExitUsageError
	}
	msg, err := readInput(f.Arg(0))
	if err != nil {
		glog.Errorf("Failed to read message file: %v", err)
		return subcommands.ExitFailure
	}

	svc, cleanup, err := c.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	sig, err := svc.Sign(ctx, c.userID, msg)
	if err != nil {
		return fail(err)
	}
	fmt.Println(base58.Encode(sig))
	return subcommands.ExitSuccess
}

// historyCmd handles CLI options for the history command.
type historyCmd struct {
	walletFlags
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "prints a user's transfer history" }
func (*historyCmd) Usage() string {
	return `Usage: shardkeep history [--config-file=<config_file>] --user=<user_id>

Prints one line per transfer, oldest first. History is kept durably by the
redis backend only.

Flags:
`
}
func (c *historyCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, cleanup, err := c.open(ctx)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	entries, err := svc.History(ctx, c.userID)
	if err != nil {
		return fail(err)
	}
	if len(entries) == 0 {
		fmt.Println("No transfers yet.")
		return subcommands.ExitSuccess
	}
	for _, e := range entries {
		fmt.Println(formatEntry(e))
	}
	return subcommands.ExitSuccess
}

func formatEntry(e history.Entry) string {
	sol := float64(e.Lamports) / wallet.LamportsPerSOL
	dir := "to"
	if e.Kind == history.Receive {
		dir = "from"
	}
	return fmt.Sprintf("%s %-7s %.9f SOL %s %s (%s)", e.Time.Format(time.RFC3339), e.Kind, sol, dir, e.Counterparty, e.Signature)
}

// versionCmd handles CLI options for the version command.
type versionCmd struct{}

func (*versionCmd) Name() string           { return "version" }
func (*versionCmd) Synopsis() string       { return "prints the current version" }
func (*versionCmd) Usage() string          { return "Usage: shardkeep version" }
func (*versionCmd) SetFlags(*flag.FlagSet) {}
func (*versionCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	fmt.Printf("shardkeep version %s\n", constants.Version)
	return subcommands.ExitSuccess
}

func main() {
	flag.Parse()

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&createCmd{}, "wallet")
	subcommands.Register(&importCmd{}, "wallet")
	subcommands.Register(&pubkeyCmd{}, "wallet")
	subcommands.Register(&signCmd{}, "wallet")
	subcommands.Register(&historyCmd{}, "wallet")
	subcommands.Register(&versionCmd{}, "")

	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

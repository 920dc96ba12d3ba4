package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"utilitychain/cmd/internal/passphrase"
	nativecommon "utilitychain/native/common"
	"utilitychain/native/utility"
)

const (
	serviceName   = "utilityctl"
	defaultConfig = "./config.toml"
)

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"init":           {"init [-config path]", runInit},
	"setup":          {"setup -admin <id>", runSetup},
	"get-config":     {"get-config", runGetConfig},
	"create":         {"create -file utility.yaml [-from id]", runCreate},
	"get":            {"get -id <n>", runGet},
	"list":           {"list", runList},
	"join":           {"join -id <n> [-participant id] [-from id]", runJoin},
	"end":            {"end -id <n> [-from id]", runEnd},
	"claim":          {"claim -id <n> -user <id> [-from id]", runClaim},
	"claim-status":   {"claim-status -id <n> -user <id>", runClaimStatus},
	"mark-eligible":  {"mark-eligible -id <n> -user <id> [-from id]", runMarkEligible},
	"eligibility":    {"eligibility [-user id]", runEligibility},
	"register-asset": {"register-asset -asset <id> -usage-type limited|unlimited -expiry-type none|time|date [-from id]", runRegisterAsset},
	"asset":          {"asset -asset <id>", runAsset},
	"bind":           {"bind -asset <id> -id <n> -user <id> [-from id]", runBind},
	"redeem":         {"redeem -asset <id> -id <n> [-from id]", runRedeem},
	"check":          {"check -asset <id> -id <n>", runCheck},
	"ownership":      {"ownership -asset <id> -user <id>", runOwnership},
	"token":          {"token register|mint|pause-mint|approve|allowance|balance|set-holder ...", runToken},
}

// app carries the process-level collaborators shared by every command.
type app struct {
	stdout io.Writer
	stderr io.Writer
	// passphrases resolves the keystore passphrase source for an env var.
	passphrases func(envVar string) passphraseSource
}

type passphraseSource interface {
	Get() (string, error)
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		passphrases: func(envVar string) passphraseSource {
			return passphrase.NewSource(envVar)
		},
	}
}

func main() {
	os.Exit(newApp(os.Stdout, os.Stderr).execute(context.Background(), os.Args[1:]))
}

// execute runs a subcommand and returns the process exit status. Utility
// errors exit with their numeric code so scripts can branch on the kind.
func (a *app) execute(ctx context.Context, args []string) int {
	if len(args) < 1 {
		a.usage()
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		a.usage()
		return 2
	}
	if err := cmd.run(ctx, a, args[1:]); err != nil {
		return a.fail(err)
	}
	return 0
}

func (a *app) fail(err error) int {
	if code := utility.Code(err); code != 0 {
		fmt.Fprintf(a.stderr, "Error (code %d): %v\n", code, err)
		return int(code)
	}
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	if errors.Is(err, errUsage) {
		return 2
	}
	return 1
}

func (a *app) usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, "  "+commands[name].usage)
	}
	fmt.Fprintf(a.stderr, "Usage: %s <command> [flags]\n\nCommands:\n%s\n", serviceName, strings.Join(lines, "\n"))
}

func outcome(err error) string {
	if errors.Is(err, nativecommon.ErrModulePaused) {
		return "paused"
	}
	return utility.Outcome(err)
}

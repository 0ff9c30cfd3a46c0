package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/nimasrn/ledger-book/internal/app"
	"github.com/nimasrn/ledger-book/pkg/logger"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	flag.String("env", "", "path to a .env file")

	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&migrateCmd{}, "setup")
	commander.Register(&addCustomerCmd{}, "customers")
	commander.Register(&customersCmd{}, "customers")
	commander.Register(&deleteCustomerCmd{}, "customers")
	commander.Register(&addTxCmd{}, "transactions")
	commander.Register(&deleteTxCmd{}, "transactions")
	commander.Register(&reportCmd{}, "reports")
	commander.Register(&statementCmd{}, "reports")

	flag.Parse()
	if err := app.Init(os.Args); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(int(subcommands.ExitFailure))
	}
	os.Exit(int(commander.Execute(context.Background())))
}

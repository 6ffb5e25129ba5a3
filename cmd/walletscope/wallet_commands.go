package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brojonat/walletscope/client"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Wallet activity lookup commands",
		Subcommands: []*cli.Command{
			walletSummaryCommand(),
			walletTransactionsCommand(),
		},
	}
}

func walletSummaryCommand() *cli.Command {
	return &cli.Command{
		Name:      "summary",
		Usage:     "Show the activity summary for a wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq expression applied to the JSON output (implies --json)",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   60 * time.Second,
				Usage:   "Request timeout",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}
			address := c.Args().Get(0)

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			summary, err := newClientFromFlags(c).Summary(ctx, address)
			if err != nil {
				return fmt.Errorf("failed to fetch summary: %w", err)
			}

			if filter := c.String("jq"); filter != "" {
				return printFiltered(summary, filter)
			}
			if c.Bool("json") {
				return printJSON(summary)
			}

			printSummary(summary)
			return nil
		},
	}
}

func walletTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "transactions",
		Aliases:   []string{"txs"},
		Usage:     "Show recent transactions for a wallet, newest first",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   10,
				Usage:   "Maximum number of transactions to return (1-1000)",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq expression applied to the JSON output (implies --json)",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   60 * time.Second,
				Usage:   "Request timeout",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}
			address := c.Args().Get(0)

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			page, err := newClientFromFlags(c).Transactions(ctx, address, c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to fetch transactions: %w", err)
			}

			if filter := c.String("jq"); filter != "" {
				return printFiltered(page, filter)
			}
			if c.Bool("json") {
				return printJSON(page)
			}

			printTransactionPage(page)
			return nil
		},
	}
}

// newClientFromFlags builds a service client from the global flags. CLI
// errors go to stderr through the returned error path, so the client logger
// stays quiet below error level.
func newClientFromFlags(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	return client.NewClient(c.String("server-url"), nil, logger)
}

func printSummary(s *client.Summary) {
	fmt.Printf("Wallet:        %s\n", s.Address)
	fmt.Printf("Balance:       %.9f SOL (%d lamports)\n", s.Balance, s.BalanceLamports)

	count := fmt.Sprintf("%d", s.TxCount)
	if s.TxCountCapped {
		count = fmt.Sprintf("at least %d", s.TxCount)
	}
	fmt.Printf("Transactions:  %s\n", count)

	if s.LastActive != nil {
		fmt.Printf("Last Active:   %s\n", s.LastActive.Format(time.RFC3339))
	} else {
		fmt.Printf("Last Active:   never\n")
	}
}

func printTransactionPage(page *client.TransactionPage) {
	if page.Count == 0 {
		fmt.Printf("No transactions found for %s\n", page.Address)
		return
	}

	fmt.Printf("Transactions for %s (%d):\n\n", page.Address, page.Count)
	for _, txn := range page.Transactions {
		blockTime := "unknown"
		if txn.BlockTime != nil {
			blockTime = txn.BlockTime.Format(time.RFC3339)
		}
		fmt.Printf("  %s\n", txn.Signature)
		fmt.Printf("    Slot: %d  Status: %s  Fee: %d  Time: %s\n",
			txn.Slot, txn.Status, txn.Fee, blockTime)
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printFiltered runs a jq expression over the JSON form of v and prints
// every result the expression emits, one per line.
func printFiltered(v any, filter string) error {
	query, err := gojq.Parse(filter)
	if err != nil {
		return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}

	// Round-trip through JSON so gojq sees plain maps and slices.
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal output: %w", err)
	}

	iter := code.Run(doc)
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := result.(error); isErr {
			return fmt.Errorf("jq filter error: %w", err)
		}
		out, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal jq result: %w", err)
		}
		fmt.Println(string(out))
	}
	return nil
}

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"skillzone-service/internal/app"
	"skillzone-service/internal/config"
)

// NewPointsCmd groups operator commands on the points ledger.
func NewPointsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Inspect and adjust point balances",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "grant USER_ID AMOUNT",
		Short: "Credit points to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			return withLedger(cmd, *configPath, func(ledger *app.PointsLedger) error {
				balance, err := ledger.Credit(cmd.Context(), args[0], amount)
				if err != nil {
					return err
				}
				cmd.Printf("%s balance: %d\n", args[0], balance)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show USER_ID",
		Short: "Print the balance and level of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, *configPath, func(ledger *app.PointsLedger) error {
				account, err := ledger.Account(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				cmd.Printf("%s balance: %d level: %s\n", account.UserID, account.Balance, account.Level)
				return nil
			})
		},
	})
	return cmd
}

func withLedger(cmd *cobra.Command, configPath string, fn func(*app.PointsLedger) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	infra, err := buildAdapters(cmd.Context(), cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer infra.Close()
	return fn(app.NewPointsLedger(infra.store))
}

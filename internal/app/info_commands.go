package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ncasillas/txpilot/internal/chain"
	clierr "github.com/ncasillas/txpilot/internal/errors"
	"github.com/ncasillas/txpilot/internal/policy"
)

func (s *runtimeState) newChainsCommand() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "chains",
		Short: "List supported chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			var f chain.Filter
			switch filter {
			case "all":
				f = chain.FilterAll
			case "mainnet":
				f = chain.FilterMainnet
			case "testnet":
				f = chain.FilterTestnet
			default:
				return clierr.Newf(clierr.CodeUsage, "unknown filter %q (want all, mainnet or testnet)", filter)
			}
			chains := s.registry.List(f)

			if s.settings.JSON {
				type row struct {
					ID        int64  `json:"id"`
					Name      string `json:"name"`
					Native    string `json:"native"`
					Endpoints int    `json:"endpoints"`
					Testnet   bool   `json:"testnet"`
				}
				rows := make([]row, 0, len(chains))
				for _, c := range chains {
					rows = append(rows, row{ID: c.ID, Name: c.Name, Native: c.Native.Symbol, Endpoints: len(c.Endpoints), Testnet: c.IsTestnet})
				}
				return s.renderJSON(cmd.OutOrStdout(), rows)
			}
			for _, c := range chains {
				suffix := ""
				if c.IsTestnet {
					suffix = " (testnet)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s id=%-8d native=%-5s rpcs=%d%s\n",
					c.Name, c.ID, c.Native.Symbol, len(c.Endpoints), suffix)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "Filter chains (all, mainnet, testnet)")
	return cmd
}

func (s *runtimeState) newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect spending policy",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the active preset's limits and current usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := s.engine.Config()
			state := s.engine.Snapshot()

			if s.settings.JSON {
				return s.renderJSON(cmd.OutOrStdout(), map[string]any{
					"preset":               cfg.Preset,
					"max_tx_amount":        weiString(cfg.MaxTxAmountWei),
					"daily_spend_limit":    weiString(cfg.DailySpendWei),
					"confirm_above":        weiString(cfg.ConfirmAboveWei),
					"min_balance_left":     weiString(cfg.MinBalanceLeftWei),
					"max_tx_per_hour":      cfg.MaxTxPerHour,
					"max_tx_per_day":       cfg.MaxTxPerDay,
					"daily_spent":          weiString(state.DailySpentWei),
					"daily_tx_count":       state.DailyTxCount,
					"hourly_tx_count":      state.HourlyTxCount,
					"block_zero_address":   cfg.BlockZeroAddress,
					"block_unverified":     cfg.BlockUnverifiedTokens,
					"blocked_recipients":   len(cfg.BlockedRecipients),
					"chain_allowlist_size": len(cfg.AllowedChains),
				})
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "preset:           %s\n", cfg.Preset)
			fmt.Fprintf(w, "max per tx:       %s ETH\n", weiString(cfg.MaxTxAmountWei))
			fmt.Fprintf(w, "daily limit:      %s ETH (spent %s)\n", weiString(cfg.DailySpendWei), weiString(state.DailySpentWei))
			fmt.Fprintf(w, "confirm above:    %s ETH\n", weiString(cfg.ConfirmAboveWei))
			fmt.Fprintf(w, "tx per hour/day:  %d/%d (used %d/%d)\n", cfg.MaxTxPerHour, cfg.MaxTxPerDay, state.HourlyTxCount, state.DailyTxCount)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "presets",
		Short: "List available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.settings.JSON {
				return s.renderJSON(cmd.OutOrStdout(), policy.PresetNames())
			}
			for _, name := range policy.PresetNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})
	return cmd
}

package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <url-or-asin>",
	Short: "Track a new product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetFlag, _ := cmd.Flags().GetFloat64("target")
		return withEngine(func(ctx context.Context, a *app) error {
			var target *float64
			if targetFlag > 0 {
				target = &targetFlag
			}
			if err := a.engine.AddItem(ctx, args[0], target); err != nil {
				return err
			}
			fmt.Println("item added")
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, a *app) error {
			items, err := a.engine.Items(ctx)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("no tracked items")
				return nil
			}
			for _, it := range items {
				price := "--"
				if p, ok := it.CurrentPrice(); ok {
					price = fmt.Sprintf("%.2f", p)
				}
				target := "--"
				if it.TargetPrice > 0 {
					target = fmt.Sprintf("%.2f", it.TargetPrice)
				}
				fmt.Printf("%-10s  %-40s  price %-8s  target %-8s", it.ASIN, it.DisplayTitle(), price, target)
				if it.LastError != "" {
					fmt.Printf("  [error: %s]", it.LastError)
				}
				fmt.Println()
			}

			if at, ok, _ := a.engine.LastRunAt(ctx); ok {
				fmt.Printf("\nlast check: %s\n", at.Local().Format(time.RFC1123))
			}
			if at, ok, _ := a.engine.NextAutoCheckAt(ctx); ok {
				fmt.Printf("next check: %s\n", at.Local().Format(time.RFC1123))
			}
			return nil
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <id-or-asin>",
	Short: "Stop tracking an item (or everything with --all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) != 1 {
			return fmt.Errorf("pass an item id/asin or --all")
		}
		return withEngine(func(ctx context.Context, a *app) error {
			if all {
				if err := a.engine.ClearAll(ctx); err != nil {
					return err
				}
				fmt.Println("all items removed")
				return nil
			}
			it, err := findLocal(ctx, a, args[0])
			if err != nil {
				return err
			}
			if err := a.engine.DeleteItem(ctx, it.ID); err != nil {
				return err
			}
			fmt.Printf("removed %s\n", it.DisplayTitle())
			return nil
		})
	},
}

var targetCmd = &cobra.Command{
	Use:   "target <id-or-asin> <price>",
	Short: "Set an item's target price",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("price %q is not a number", args[1])
		}
		return withEngine(func(ctx context.Context, a *app) error {
			it, err := findLocal(ctx, a, args[0])
			if err != nil {
				return err
			}
			if err := a.engine.UpdateTarget(ctx, it.ID, value); err != nil {
				return err
			}
			fmt.Printf("target for %s set to %.2f\n", it.DisplayTitle(), value)
			return nil
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [id-or-asin]",
	Short: "Check one item now (or everything with --all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) != 1 {
			return fmt.Errorf("pass an item id/asin or --all")
		}
		return withEngine(func(ctx context.Context, a *app) error {
			if all {
				if err := a.engine.CheckAll(ctx); err != nil {
					return err
				}
				fmt.Println("check-all finished")
				return nil
			}
			it, err := findLocal(ctx, a, args[0])
			if err != nil {
				return err
			}
			if err := a.engine.CheckItem(ctx, it.ID); err != nil {
				return err
			}
			fmt.Printf("checked %s\n", it.DisplayTitle())
			return nil
		})
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the activity log (newest first)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withEngine(func(ctx context.Context, a *app) error {
			events, err := a.engine.Events(ctx)
			if err != nil {
				return err
			}
			if limit > 0 && len(events) > limit {
				events = events[:limit]
			}
			for _, ev := range events {
				fmt.Printf("%s  %s\n", ev.Timestamp.Local().Format("2006-01-02 15:04:05"), ev.Message)
			}
			return nil
		})
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify <on|off>",
	Short: "Enable or disable price alerts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var enabled bool
		switch args[0] {
		case "on":
			enabled = true
		case "off":
		default:
			return fmt.Errorf("expected on or off, got %q", args[0])
		}
		return withEngine(func(ctx context.Context, a *app) error {
			if err := a.engine.SetNotificationsEnabled(ctx, enabled); err != nil {
				return err
			}
			fmt.Printf("notifications %s\n", args[0])
			return nil
		})
	},
}

func init() {
	addCmd.Flags().Float64("target", 0, "target price to arm the alert")
	removeCmd.Flags().Bool("all", false, "remove every tracked item")
	checkCmd.Flags().Bool("all", false, "check every tracked item")
	logCmd.Flags().Int("limit", 0, "show at most this many entries")
}

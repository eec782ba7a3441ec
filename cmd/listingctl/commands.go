package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-listings/client"
)

const defaultServer = "http://localhost:8080"

type options struct {
	server string
	json   bool
}

func (o *options) client() *client.Client {
	return client.New(o.server)
}

func newRootCmd() *cobra.Command {
	opts := &options{server: defaultServer}
	if env, ok := os.LookupEnv("LISTINGS_SERVER"); ok {
		opts.server = env
	}

	root := &cobra.Command{
		Use:           "listingctl",
		Short:         "listingctl queries a listings server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", opts.server, "Base URL of the listings server (env LISTINGS_SERVER)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Print raw JSON instead of tables")

	root.AddCommand(
		newResolveCmd(opts),
		newListingsCmd(opts),
		newInfoCmd(opts),
		newSummaryCmd(opts),
		newBatchCmd(opts),
		newHealthCmd(opts),
	)
	return root
}

func newResolveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <name>",
		Short: "Resolves a complex name to its identifier.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.client().Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd, res)
			}
			if res.Identifier == nil {
				return fmt.Errorf("%s: %s", res.Name, res.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout(), *res.Identifier)
			return nil
		},
	}
}

func newListingsCmd(opts *options) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "listings <identifier> <size>",
		Short: "Shows listing stats of one complex, trade category and size bracket.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := parseSize(args[1])
			if err != nil {
				return err
			}
			stats, err := opts.client().Listings(cmd.Context(), args[0], category, size)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd, stats)
			}
			renderSample(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "sale", "Trade category: sale, jeonse (deposit) or monthly")
	return cmd
}

func newInfoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info <identifier>",
		Short: "Shows the name, address and unit count of a complex.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := opts.client().Info(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd, info)
			}
			renderInfo(cmd.OutOrStdout(), info)
			return nil
		},
	}
}

func newSummaryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <name> <size>",
		Short: "Summarizes sale, jeonse and monthly listings of a complex.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := parseSize(args[1])
			if err != nil {
				return err
			}
			summary, err := opts.client().Summary(cmd.Context(), args[0], size)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd, summary)
			}
			renderSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

func newBatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "batch",
		Short: "Shows the summaries of every configured target.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := opts.client().Batch(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd, result)
			}
			renderBatch(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Reports server and browser session status.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			health, err := opts.client().Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status=%s browser=%s\n", health.Status, health.Browser)
			return nil
		},
	}
}

func parseSize(raw string) (int, error) {
	size, err := strconv.Atoi(raw)
	if err != nil || size <= 0 {
		return 0, fmt.Errorf("size must be a positive integer, got %q", raw)
	}
	return size, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

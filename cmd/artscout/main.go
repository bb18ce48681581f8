package main

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	artscout "github.com/anatolykoptev/go-artscout"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "artscout",
	Short: "Query artworks across museum and open-media image APIs",
	Long: `artscout aggregates artwork results from the Met Museum, the Art
Institute of Chicago, the Library of Congress photo archive and Openverse
behind one interface, with per-source rate limiting and content filtering.`,
}

var randomCmd = &cobra.Command{
	Use:   "random [count]",
	Short: "Fetch random artworks",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count := 12
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("count must be a positive integer, got %q", args[0])
			}
			count = n
		}

		agg, verifier := buildAggregator()
		items, err := agg.RandomArtworks(cmd.Context(), count)
		if err != nil {
			return err
		}
		if verifier != nil {
			items = verifier.Verify(cmd.Context(), items)
		}
		printArtworks(items)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search artworks by free text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		agg, verifier := buildAggregator()
		items, err := agg.SearchArtworks(cmd.Context(), args[0], limit, offset)
		if err != nil {
			return err
		}
		if verifier != nil {
			items = verifier.Verify(cmd.Context(), items)
		}
		printArtworks(items)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Look up one artwork by id across all sources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		preferred, _ := cmd.Flags().GetString("prefer")

		agg, _ := buildAggregator()
		art := agg.ArtworkByID(cmd.Context(), args[0], preferred)
		if art == nil {
			fmt.Println("not found")
			return nil
		}
		printArtworks([]artscout.Artwork{*art})
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registered sources and their throttle state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		agg, _ := buildAggregator()
		limited := agg.RateLimitStatus()
		for _, name := range agg.Services() {
			s, _ := agg.Service(name)
			state := "ready"
			switch {
			case !s.Available():
				state = "disabled"
			case limited[name] != "":
				state = limited[name]
			}
			fmt.Printf("%-12s %s\n", name, state)
		}
		return nil
	},
}

// buildAggregator assembles the four sources from viper config. The
// returned verifier is nil unless --verify is on.
func buildAggregator() (*artscout.Aggregator, *artscout.Verifier) {
	timeout := viper.GetDuration("timeout")
	disabled := viper.GetStringSlice("disabled")
	off := func(name string) bool { return slices.Contains(disabled, name) }

	agg := artscout.NewAggregator(artscout.AggregatorConfig{},
		artscout.NewMet(artscout.MetConfig{Timeout: timeout, Disabled: off("met")}),
		artscout.NewArtic(artscout.ArticConfig{Timeout: timeout, Disabled: off("artic")}),
		artscout.NewLOC(artscout.LOCConfig{Timeout: timeout, Disabled: off("loc")}),
		artscout.NewOpenverse(artscout.OpenverseConfig{
			Timeout:     timeout,
			Disabled:    off("openverse"),
			AccessToken: viper.GetString("openverse.token"),
		}),
	)

	if source := viper.GetString("source"); source != "" {
		if err := agg.SetActive(source); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if !viper.GetBool("verify") {
		return agg, nil
	}
	return agg, &artscout.Verifier{MinWidth: viper.GetInt("min-width")}
}

func printArtworks(items []artscout.Artwork) {
	if len(items) == 0 {
		fmt.Println("no results")
		return
	}
	for _, a := range items {
		fmt.Printf("[%s] %s by %s\n", a.Source, a.Title, a.Artist)
		if a.Date != "" {
			fmt.Printf("    %s\n", a.Date)
		}
		fmt.Printf("    %s\n", a.ImageURL)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".artscout")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("ARTSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.artscout.yaml)")
	rootCmd.PersistentFlags().String("source", "", "route to one source instead of all (met, artic, loc, openverse)")
	rootCmd.PersistentFlags().Duration("timeout", 15*time.Second, "per-request timeout")
	rootCmd.PersistentFlags().StringSlice("disabled", nil, "sources to disable")
	rootCmd.PersistentFlags().Bool("verify", false, "download each result to verify size and drop duplicates")
	rootCmd.PersistentFlags().Int("min-width", artscout.DefaultMinImageWidth, "minimum verified image width in pixels")
	_ = viper.BindPFlag("source", rootCmd.PersistentFlags().Lookup("source"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	_ = viper.BindPFlag("disabled", rootCmd.PersistentFlags().Lookup("disabled"))
	_ = viper.BindPFlag("verify", rootCmd.PersistentFlags().Lookup("verify"))
	_ = viper.BindPFlag("min-width", rootCmd.PersistentFlags().Lookup("min-width"))

	searchCmd.Flags().Int("limit", artscout.DefaultSearchLimit, "maximum results")
	searchCmd.Flags().Int("offset", 0, "logical result offset")
	getCmd.Flags().String("prefer", "", "source to try first")

	rootCmd.AddCommand(randomCmd, searchCmd, getCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contentstore"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contract/postgres"
	"github.com/spf13/cobra"
)

func NewPublishCommand() *cobra.Command {
	var (
		info    musicmarket.TrackInfo
		account string
		list    bool
	)

	cmd := &cobra.Command{
		Use:   "publish <file>",
		Short: "Publish a track and optionally list it",
		Long: `Store the file and its metadata.json as one batch and print the resulting
asset URI and gateway URLs. With --list the track is also listed on the
marketplace on behalf of --account, which must be a registered artist.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			asset := musicmarket.Asset{FileName: filepath.Base(args[0]), Data: data}

			app, cleanup, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if !list {
				result, err := app.Publisher().Publish(cmd.Context(), asset, info)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			}

			if !common.IsHexAddress(account) {
				return fmt.Errorf("--account must be a hex address, got %q", account)
			}
			session, err := app.Session(cmd.Context(), common.HexToAddress(account))
			if err != nil {
				return err
			}
			result, tokenID, err := session.ListTrack(cmd.Context(), asset, info)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"token_id": tokenID,
				"publish":  result,
			})
		},
	}

	cmd.Flags().StringVar(&info.Name, "name", "", "track name")
	cmd.Flags().StringVar(&info.Description, "description", "", "track description")
	cmd.Flags().StringVar(&info.Artist, "artist", "", "artist name")
	cmd.Flags().StringVar(&info.Price, "price", "", "price in ether")
	cmd.Flags().BoolVar(&list, "list", false, "list the track after publishing")
	cmd.Flags().StringVar(&account, "account", "", "artist account used with --list")

	return cmd
}

func NewMarketCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "market",
		Short: "List the tracks for sale",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			views, unresolved, err := app.LoadMarket(cmd.Context())
			if err != nil {
				return err
			}
			if unresolved > 0 {
				slog.Warn("Some tokens could not be resolved", "unresolved", unresolved)
			}
			if asJSON {
				return printJSON(cmd, views)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TOKEN\tNAME\tARTIST\tPRICE\tSELLER")
			for _, v := range views {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", v.TokenID, v.Name, v.Artist, musicmarket.FormatEther(v.Price), v.Seller.Hex())
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func NewResolveCommand() *cobra.Command {
	var (
		tokenID uint64
		price   string
		seller  string
	)

	cmd := &cobra.Command{
		Use:   "resolve <token-id | metadata-url>",
		Short: "Resolve the metadata of a token",
		Long: `Resolve a listed token by id, or resolve a metadata URL directly. A metadata
URL is resolved as a token with the given --token-id, --price and --seller.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if id, err := strconv.ParseUint(args[0], 10, 64); err == nil {
				return resolveListed(cmd, app, id)
			}

			rec := musicmarket.TokenRecord{TokenID: tokenID, Price: new(big.Int)}
			if price != "" {
				wei, err := musicmarket.ParseEther(price)
				if err != nil {
					return err
				}
				rec.Price = wei
			}
			if seller != "" {
				if rec.Seller, err = parseAddress(seller); err != nil {
					return err
				}
			}
			view, err := app.Resolver().Resolve(cmd.Context(), rec, metadataURI(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		},
	}

	cmd.Flags().Uint64Var(&tokenID, "token-id", 0, "token id reported for a metadata URL")
	cmd.Flags().StringVar(&price, "price", "", "price in ether reported for a metadata URL")
	cmd.Flags().StringVar(&seller, "seller", "", "seller address reported for a metadata URL")
	return cmd
}

func resolveListed(cmd *cobra.Command, app *musicmarket.App, tokenID uint64) error {
	market := app.Marketplace()
	recs, err := market.GetAllUnsoldTokens(cmd.Context())
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if rec.TokenID == tokenID {
			view, err := app.Resolver().Resolve(cmd.Context(), rec, market)
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		}
	}
	return fmt.Errorf("token %d: %w", tokenID, musicmarket.ErrTrackNotListed)
}

// metadataURI reports the same metadata URI for every token
type metadataURI string

func (u metadataURI) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	return string(u), nil
}

func NewArtistCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artist",
		Short: "Inspect and register artists",
	}

	var owner string
	add := &cobra.Command{
		Use:   "add <address>",
		Short: "Register an artist as the contract owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := parseAddress(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if owner == "" {
				owner = cfg.ContractOwner
			}
			from, err := parseAddress(owner)
			if err != nil {
				return err
			}

			app, cleanup, err := cfg.BuildApp(cmd.Context(), musicmarket.NewLoggingEventSink(slog.Default()))
			if err != nil {
				return err
			}
			defer cleanup()

			session, err := app.Session(cmd.Context(), from)
			if err != nil {
				return err
			}
			if err := session.RegisterArtist(cmd.Context(), address); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered artist %s\n", address.Hex())
			return nil
		},
	}
	add.Flags().StringVar(&owner, "owner", "", "owner account (default: CONTRACT_OWNER)")

	check := &cobra.Command{
		Use:   "check <address>",
		Short: "Report whether an address is a registered artist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := parseAddress(args[0])
			if err != nil {
				return err
			}

			app, cleanup, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			exists, err := app.Marketplace().CheckArtistExisted(cmd.Context(), address)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), exists)
			return nil
		},
	}

	cmd.AddCommand(add, check)
	return cmd
}

func NewGatewayURLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway-url <cid> <path>",
		Short: "Print the gateway URL of a file inside a batch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			codec, err := cfg.BuildCodec()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), codec.GatewayURL(args[0], args[1]))
			return nil
		},
	}
}

func NewAssetURICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "asset-uri <cid> <path>",
		Short: "Print the canonical asset URI of a file inside a batch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			codec, err := cfg.BuildCodec()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), codec.AssetURI(args[0], args[1]))
			return nil
		},
	}
}

func NewDecodeCIDCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode-cid <gateway-url>",
		Short: "Extract the CID from a gateway URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			codec, err := cfg.BuildCodec()
			if err != nil {
				return err
			}
			cid := codec.CIDFromGatewayURL(args[0])
			if cid == "" {
				return errors.New("not a gateway URL")
			}
			fmt.Fprintln(cmd.OutOrStdout(), cid)
			return nil
		},
	}
}

func NewCIDCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cid <file>...",
		Short: "Compute the CID of a batch of files without storing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blobs := make([]musicmarket.Blob, 0, len(args))
			for _, p := range args {
				data, err := os.ReadFile(p)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", p, err)
				}
				blobs = append(blobs, musicmarket.Blob{Name: filepath.Base(p), Data: data})
			}
			cid, err := contentstore.ComputeCID(blobs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cid)
			return nil
		},
	}
}

func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <up|down|version|force> [version]",
		Short: "Manage the postgres ledger schema",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseType != "postgres" {
				return errors.New("DATABASE_URL must point to postgres")
			}
			return postgres.Migrate(slog.Default(), cfg.DatabaseURL, args[0], args[1:])
		},
	}
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

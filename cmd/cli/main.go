package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/client"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/config"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/config/di"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/messenger"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var container *di.Container

func main() {
	config.Init("cli")

	var err error
	if container, err = di.NewContainer(config.Get()); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}
	defer container.Delete()

	app := &cli.App{
		Name:  "marketplace",
		Usage: "operate the NFT marketplace",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "as", Usage: "principal the request acts for", EnvVars: []string{"MARKETPLACE_CALLER"}},
			&cli.StringFlag{Name: "url", Usage: "marketplace API url, overrides API_URL"},
		},
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "list a token for sale",
				ArgsUsage: "<contract> <tokenId> <price>",
				Action:    list,
			},
			{
				Name:      "buy",
				Usage:     "buy a listed token",
				ArgsUsage: "<contract> <tokenId> <payment>",
				Action:    buy,
			},
			{
				Name:      "delist",
				Usage:     "cancel a listing and reclaim the token",
				ArgsUsage: "<contract> <tokenId>",
				Action:    delist,
			},
			{
				Name:      "listing",
				Usage:     "show a listing",
				ArgsUsage: "<contract> <tokenId>",
				Action:    listing,
			},
			{
				Name:      "exists",
				Usage:     "check whether a token is listed",
				ArgsUsage: "<contract> <tokenId>",
				Action:    exists,
			},
			{
				Name:   "listings",
				Usage:  "show every open listing",
				Action: listings,
			},
			{
				Name:      "fee",
				Usage:     "show the sale fee, or the fee taken at a price",
				ArgsUsage: "[price]",
				Action:    fee,
			},
			{
				Name:      "set-fee",
				Usage:     "set the sale fee in parts per thousand",
				ArgsUsage: "<fraction>",
				Action:    setFee,
			},
			{
				Name:      "fee-owner",
				Usage:     "hand fee administration to another principal",
				ArgsUsage: "<owner>",
				Action:    feeOwner,
			},
			{
				Name:   "events",
				Usage:  "show recent marketplace actions",
				Action: events,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "number of actions, 0 for all"},
				},
			},
			{
				Name:      "history",
				Usage:     "show the indexed actions of a token, or its last sale",
				ArgsUsage: "<contract> <tokenId>",
				Action:    history,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "size", Value: 20, Usage: "number of actions"},
					&cli.BoolFlag{Name: "last-sale", Usage: "only show the last sale"},
				},
			},
			{
				Name:   "watch",
				Usage:  "follow marketplace actions on the message bus",
				Action: watch,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "action", Value: "*", Usage: "action to follow (listing, sale, delisting, fee)"},
				},
			},
			{
				Name:  "sandbox",
				Usage: "drive the in-process token registry and ledger",
				Subcommands: []*cli.Command{
					{Name: "mint", ArgsUsage: "<contract> <tokenId> <owner>", Action: sandboxMint},
					{Name: "approve", ArgsUsage: "<contract> <tokenId> <operator>", Action: sandboxApprove},
					{Name: "approve-all", ArgsUsage: "<contract> <operator> [true|false]", Action: sandboxApproveAll},
					{Name: "fund", ArgsUsage: "<principal> <amount>", Action: sandboxFund},
					{Name: "balance", ArgsUsage: "<principal>", Action: sandboxBalance},
					{Name: "owner", ArgsUsage: "<contract> <tokenId>", Action: sandboxOwner},
					{Name: "reject", ArgsUsage: "<principal> [true|false]", Action: sandboxReject},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Command failed")
	}
}

func marketplace(c *cli.Context) *client.Client {
	cfg := config.Get()

	m := container.GetClient()
	if url := c.String("url"); url != "" {
		m = client.NewClient(url, cfg.Api.Retries, time.Duration(cfg.Api.Timeout)*time.Second)
	}

	return m.As(c.String("as"))
}

func args(c *cli.Context, n int) error {
	if c.NArg() < n {
		return fmt.Errorf("expected %d arguments: %s", n, c.Command.ArgsUsage)
	}

	return nil
}

func tokenArgs(c *cli.Context) (string, uint64, error) {
	if err := args(c, 2); err != nil {
		return "", 0, err
	}

	tokenId, err := strconv.ParseUint(c.Args().Get(1), 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid token id %q", c.Args().Get(1))
	}

	return c.Args().Get(0), tokenId, nil
}

func boolArg(c *cli.Context, i int) (bool, error) {
	if c.NArg() <= i {
		return true, nil
	}

	return strconv.ParseBool(c.Args().Get(i))
}

func output(v interface{}, err error) error {
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(b))
	return nil
}

func list(c *cli.Context) error {
	contract, tokenId, err := tokenArgs(c)
	if err != nil {
		return err
	}
	if err := args(c, 3); err != nil {
		return err
	}

	return output(marketplace(c).List(c.Context, contract, tokenId, c.Args().Get(2)))
}

func buy(c *cli.Context) error {
	contract, tokenId, err := tokenArgs(c)
	if err != nil {
		return err
	}
	if err := args(c, 3); err != nil {
		return err
	}

	return output(marketplace(c).Buy(c.Context, contract, tokenId, c.Args().Get(2)))
}

func delist(c *cli.Context) error {
	contract, tokenId, err := tokenArgs(c)
	if err != nil {
		return err
	}

	return output(marketplace(c).Delist(c.Context, contract, tokenId))
}

func listing(c *cli.Context) error {
	contract, tokenId, err := tokenArgs(c)
	if err != nil {
		return err
	}

	return output(marketplace(c).GetListing(c.Context, contract, tokenId))
}

func exists(c *cli.Context) error {
	contract, tokenId, err := tokenArgs(c)
	if err != nil {
		return err
	}

	return output(marketplace(c).ListingExists(c.Context, contract, tokenId))
}

func listings(c *cli.Context) error {
	return output(marketplace(c).Listings(c.Context))
}

func fee(c *cli.Context) error {
	if c.NArg() > 0 {
		return output(marketplace(c).FeePreview(c.Context, c.Args().First()))
	}

	return output(marketplace(c).Fee(c.Context))
}

func setFee(c *cli.Context) error {
	if err := args(c, 1); err != nil {
		return err
	}

	fraction, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid fee %q", c.Args().First())
	}

	return output(marketplace(c).SetSaleFee(c.Context, fraction))
}

func feeOwner(c *cli.Context) error {
	if err := args(c, 1); err != nil {
		return err
	}

	return output(marketplace(c).TransferFeeOwnership(c.Context, c.Args().First()))
}

func events(c *cli.Context) error {
	return output(marketplace(c).Events(c.Context, c.Int("limit")))
}

func history(c *cli.Context) error {
	contract, tokenId, err := tokenArgs(c)
	if err != nil {
		return err
	}

	if c.Bool("last-sale") {
		return output(marketplace(c).LastSale(c.Context, contract, tokenId))
	}

	return output(marketplace(c).TokenHistory(c.Context, contract, tokenId, c.Int("size")))
}

func watch(c *cli.Context) error {
	svc, ok := container.GetMessenger()
	if !ok {
		return fmt.Errorf("AMQP_URI is not configured")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bindingKey := messenger.RoutingKey(config.Get().Index, c.String("action"))
	zap.L().With(zap.String("bindingKey", bindingKey)).Info("Watching marketplace actions")

	return svc.ConsumeMessages(ctx, messenger.MarketplaceActions, bindingKey, func(msg string) {
		fmt.Println(msg)
	})
}

func sandboxMint(c *cli.Context) error {
	contract, tokenId, err := tokenArgs(c)
	if err != nil {
		return err
	}
	if err := args(c, 3); err != nil {
		return err
	}

	return output(marketplace(c).Mint(c.Context, contract, tokenId, c.Args().Get(2)))
}

func sandboxApprove(c *cli.Context) error {
	contract, tokenId, err := tokenArgs(c)
	if err != nil {
		return err
	}
	if err := args(c, 3); err != nil {
		return err
	}

	return marketplace(c).Approve(c.Context, contract, tokenId, c.Args().Get(2))
}

func sandboxApproveAll(c *cli.Context) error {
	if err := args(c, 2); err != nil {
		return err
	}

	approved, err := boolArg(c, 2)
	if err != nil {
		return err
	}

	return marketplace(c).ApproveAll(c.Context, c.Args().Get(0), c.Args().Get(1), approved)
}

func sandboxFund(c *cli.Context) error {
	if err := args(c, 2); err != nil {
		return err
	}

	return output(marketplace(c).Fund(c.Context, c.Args().Get(0), c.Args().Get(1)))
}

func sandboxBalance(c *cli.Context) error {
	if err := args(c, 1); err != nil {
		return err
	}

	return output(marketplace(c).Balance(c.Context, c.Args().First()))
}

func sandboxOwner(c *cli.Context) error {
	contract, tokenId, err := tokenArgs(c)
	if err != nil {
		return err
	}

	return output(marketplace(c).OwnerOf(c.Context, contract, tokenId))
}

func sandboxReject(c *cli.Context) error {
	if err := args(c, 1); err != nil {
		return err
	}

	rejecting, err := boolArg(c, 1)
	if err != nil {
		return err
	}

	return marketplace(c).SetRejecting(c.Context, c.Args().First(), rejecting)
}

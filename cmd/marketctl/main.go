// marketctl 通过 HTTP 接口操作 marketd。
//
// 身份参数（-from、地址参数）接受 0x 地址或 #n（开发助记词派生的第 n 个账户）。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/openfire/firemarket/internal/client"
	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/wallet"
	"github.com/openfire/firemarket/pkg/config"
	"github.com/openfire/firemarket/pkg/logger"
)

type env struct {
	ctx      context.Context
	client   *client.Client
	mnemonic string
	devCount int
}

type command struct {
	usage string
	run   func(e *env, args []string) error
}

var commands map[string]command

// 在 init 中赋值：子命令通过 newFlags 反查 commands 打印用法
func init() {
	commands = map[string]command{
		"info":           {"info", cmdInfo},
		"accounts":       {"accounts [-n N]", cmdAccounts},
		"mint":           {"mint -from ACC [-uri U] [-meta M] [-royalty R]", cmdMint},
		"asset":          {"asset ID", cmdAsset},
		"assets":         {"assets [-owner ACC]", cmdAssets},
		"transfer-asset": {"transfer-asset -from ACC ID TO", cmdTransferAsset},
		"approve-market": {"approve-market -from ACC [-revoke]", cmdApproveMarket},
		"list":           {"list -from ACC ID PRICE", cmdList},
		"cancel":         {"cancel -from ACC ID", cmdCancel},
		"quote":          {"quote ID", cmdQuote},
		"purchase":       {"purchase -from ACC ID [OFFER]", cmdPurchase},
		"listings":       {"listings [-all]", cmdListings},
		"receipts":       {"receipts [-asset ID]", cmdReceipts},
		"balance":        {"balance ACC", cmdBalance},
		"allowance":      {"allowance OWNER SPENDER", cmdAllowance},
		"pay":            {"pay -from ACC TO AMOUNT", cmdPay},
		"approve":        {"approve -from ACC SPENDER AMOUNT", cmdApprove},
		"transfer-from":  {"transfer-from -from SPENDER OWNER TO AMOUNT", cmdTransferFrom},
	}
}

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "配置文件路径（读取 client.server 与开发账户助记词）")
	server := flag.String("server", "", "marketd 地址，覆盖配置")
	timeout := flag.Duration("timeout", 15*time.Second, "单条命令超时")
	flag.Usage = usage
	flag.Parse()

	if err := logger.Init(logger.Config{Level: "warn", Quiet: true}); err != nil {
		fatal(err)
	}

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fatal(err)
	}
	if *server != "" {
		cfg.ServerURL = *server
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "未知命令: %s\n\n", args[0])
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	e := &env{
		ctx:      ctx,
		client:   client.New(cfg.ServerURL),
		mnemonic: cfg.DevAccounts.Mnemonic,
		devCount: cfg.DevAccounts.Count,
	}
	if err := cmd.run(e, args[1:]); err != nil {
		fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "用法: marketctl [-config F] [-server URL] <command> [args]")
	fmt.Fprintln(os.Stderr)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
}

func fatal(err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(os.Stderr, "error: %s (%s)\n", apiErr.Message, apiErr.Code)
	} else {
		fmt.Fprintln(os.Stderr, "error:", err.Error())
	}
	os.Exit(1)
}

func (e *env) account(s string) (domain.Account, error) {
	return wallet.Resolve(s, e.mnemonic)
}

// caller 解析 -from；未指定时报错
func (e *env) caller(from string) (domain.Account, error) {
	if strings.TrimSpace(from) == "" {
		return domain.Account{}, errors.New("-from is required")
	}
	return e.account(from)
}

func parseAssetID(s string) (domain.AssetID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid asset id %q", s)
	}
	return domain.AssetID(n), nil
}

func parseUint(name, s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return n, nil
}

// newFlags 子命令参数，-h 打印用法
func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "用法: marketctl %s\n", commands[name].usage)
		fs.PrintDefaults()
	}
	return fs
}

func wantArgs(fs *flag.FlagSet, n int) ([]string, error) {
	if fs.NArg() != n {
		fs.Usage()
		return nil, fmt.Errorf("%s: expected %d argument(s), got %d", fs.Name(), n, fs.NArg())
	}
	return fs.Args(), nil
}

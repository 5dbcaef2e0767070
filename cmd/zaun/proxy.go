package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/keep-starknet-strange/zaun/proxy"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	proxyF          = "proxy"
	fileF           = "file"
	aggregatorF     = "aggregator"
	subContractsF   = "sub-contracts"
	implementationF = "implementation"
	initDataF       = "init-data"
	finalizeF       = "finalize"
	roleF           = "role"
	accountF        = "account"
)

func newProxyCmd(a *app) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Encode initialization payloads and operate the upgradable proxy.",
	}
	cmd.PersistentFlags().StringVar(&address, proxyF, "",
		"Address of the proxy. Defaults to the core contract.")

	bind := func(ctx context.Context) (*proxy.Client, error) {
		return a.Proxy(ctx, address)
	}
	cmd.AddCommand(
		newEncodeInitCmd(),
		newDecodeInitCmd(),
		newProxyStatusCmd(bind),
		newUpgradeCmd(bind),
		newRemoveImplementationCmd(bind),
		newGovernorCmd(bind, "nominate-governor", "Nominate an account as proxy governor.",
			func(c *proxy.Client, ctx context.Context, account common.Address) (*types.Receipt, error) {
				return c.Governance().NominateNewGovernor(ctx, account)
			}),
		newGovernorCmd(bind, "remove-governor", "Remove a proxy governor.",
			func(c *proxy.Client, ctx context.Context, account common.Address) (*types.Receipt, error) {
				return c.Governance().RemoveGovernor(ctx, account)
			}),
		newGovernanceCmd(bind, "accept-governance", "Accept a pending proxy governor nomination.",
			func(c *proxy.Client, ctx context.Context) (*types.Receipt, error) {
				return c.Governance().AcceptGovernance(ctx)
			}),
		newGovernanceCmd(bind, "cancel-nomination", "Cancel the pending proxy governor nomination.",
			func(c *proxy.Client, ctx context.Context) (*types.Receipt, error) {
				return c.Governance().CancelNomination(ctx)
			}),
		newRegisterRoleCmd(bind),
	)
	return cmd
}

// Proxy binds the proxy at address, or the core contract proxy when empty.
func (a *app) Proxy(ctx context.Context, address string) (*proxy.Client, error) {
	var (
		target common.Address
		err    error
	)
	if address == "" {
		target, err = a.cfg.CoreContractAddress()
	} else {
		target, err = parseAddress(proxyF, address)
	}
	if err != nil {
		return nil, err
	}
	variant, err := proxy.ParseVariant(a.cfg.ProxyVersion)
	if err != nil {
		return nil, err
	}
	backend, err := a.Backend(ctx)
	if err != nil {
		return nil, err
	}
	client := proxy.New(target, backend, variant, a.log)
	client.Contract().WithListener(a.contractMetrics())
	return client, nil
}

type proxyBinder func(ctx context.Context) (*proxy.Client, error)

func newEncodeInitCmd() *cobra.Command {
	var (
		file       string
		aggregator bool
	)
	cmd := &cobra.Command{
		Use:   "encode-init",
		Short: "Encode the initialize payload of a core contract implementation. Works offline.",
		Long: "Encode the initialize payload of a core contract implementation from a YAML file. " +
			"Without a file every field is zero.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := new(initFile)
			if file != "" {
				var err error
				if f, err = readInitFile(file); err != nil {
					return err
				}
			}
			d, err := f.payload(aggregator)
			if err != nil {
				return err
			}
			data, err := proxy.Encode(len(d.SubContractAddresses), d)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(data))
			return err
		},
	}
	cmd.Flags().StringVar(&file, fileF, "", "YAML file with the payload fields.")
	cmd.Flags().BoolVar(&aggregator, aggregatorF, false, "Use the layout with an aggregator program hash.")
	return cmd
}

func newDecodeInitCmd() *cobra.Command {
	var (
		subContracts int
		aggregator   bool
	)
	cmd := &cobra.Command{
		Use:   "decode-init <hex>",
		Short: "Decode an initialize payload into YAML. Works offline.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hexutil.Decode(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("payload: %w", err)
			}
			d, err := proxy.Decode(subContracts, data, newInitData(aggregator))
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(toInitFile(d)); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().IntVar(&subContracts, subContractsF, 0, "Number of sub-contract addresses the implementation expects.")
	cmd.Flags().BoolVar(&aggregator, aggregatorF, false, "Use the layout with an aggregator program hash.")
	return cmd
}

func newProxyStatusCmd(bind proxyBinder) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the implementation and the upgrade state of the proxy.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := bind(cmd.Context())
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			renderTable(cmd.OutOrStdout(), [][]string{
				{"Proxy", client.Address().Hex()},
				{"Version", client.Variant().String()},
				{"Implementation", status.Implementation.Hex()},
				{"Frozen", strconv.FormatBool(status.Frozen)},
				{"Finalized", strconv.FormatBool(status.Finalized)},
				{"Activation delay", status.ActivationDelay.String() + "s"},
			})
			return nil
		},
	}
}

// upgradeFlags describe an UpgradeIntent.
type upgradeFlags struct {
	implementation string
	initData       string
	file           string
	aggregator     bool
	finalize       bool
}

func (f *upgradeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.implementation, implementationF, "", "Address of the new implementation.")
	cmd.Flags().StringVar(&f.initData, initDataF, "", "Hex encoded initialize payload.")
	cmd.Flags().StringVar(&f.file, fileF, "", "YAML file to encode the initialize payload from.")
	cmd.Flags().BoolVar(&f.aggregator, aggregatorF, false, "Encode --file with the aggregator layout.")
	cmd.Flags().BoolVar(&f.finalize, finalizeF, false,
		"Lock the proxy to the implementation permanently. This cannot be undone.")
	cmd.MarkFlagsMutuallyExclusive(initDataF, fileF)
}

func (f *upgradeFlags) intent() (*proxy.UpgradeIntent, error) {
	implementation, err := parseAddress(implementationF, f.implementation)
	if err != nil {
		return nil, err
	}
	intent := &proxy.UpgradeIntent{NewImplementation: implementation, Finalize: f.finalize}
	switch {
	case f.initData != "":
		if intent.InitCalldata, err = hexutil.Decode(f.initData); err != nil {
			return nil, fmt.Errorf("--%s: %w", initDataF, err)
		}
	case f.file != "":
		file, err := readInitFile(f.file)
		if err != nil {
			return nil, err
		}
		d, err := file.payload(f.aggregator)
		if err != nil {
			return nil, err
		}
		if intent.InitCalldata, err = proxy.Encode(len(d.SubContractAddresses), d); err != nil {
			return nil, err
		}
	}
	return intent, intent.Validate()
}

func newUpgradeCmd(bind proxyBinder) *cobra.Command {
	var (
		flags         upgradeFlags
		skipPreflight bool
	)
	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Add an implementation and switch the proxy to it.",
		Long: "Add an implementation and switch the proxy to it. When the proxy has an " +
			"activation delay only the implementation is added; rerun after the reported time.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			intent, err := flags.intent()
			if err != nil {
				return err
			}
			client, err := bind(cmd.Context())
			if err != nil {
				return err
			}
			var opts []proxy.Option
			if skipPreflight {
				opts = append(opts, proxy.SkipPreflight())
			}
			result, err := client.Upgrade(cmd.Context(), intent, opts...)
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Implementation", intent.NewImplementation.Hex()},
				{"Added in", result.Added.TxHash.Hex()},
			}
			if result.Pending() {
				rows = append(rows, []string{"Enabled at", time.Unix(int64(result.EnabledAt), 0).UTC().Format(time.RFC3339)})
			} else {
				rows = append(rows,
					[]string{"Upgraded in", result.Upgraded.TxHash.Hex()},
					[]string{"Finalized", strconv.FormatBool(result.Finalized)})
			}
			renderTable(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&skipPreflight, skipPreflightF, false, "Skip the frozen and finalized checks.")
	return cmd
}

func newRemoveImplementationCmd(bind proxyBinder) *cobra.Command {
	var flags upgradeFlags
	cmd := &cobra.Command{
		Use:   "remove-implementation",
		Short: "Withdraw an added implementation before it is activated.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			intent, err := flags.intent()
			if err != nil {
				return err
			}
			client, err := bind(cmd.Context())
			if err != nil {
				return err
			}
			receipt, err := client.RemoveImplementation(cmd.Context(), intent)
			if err != nil {
				return err
			}
			renderReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newGovernorCmd(bind proxyBinder, use, short string,
	run func(c *proxy.Client, ctx context.Context, account common.Address) (*types.Receipt, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <address>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := parseAddress(accountF, args[0])
			if err != nil {
				return err
			}
			client, err := bind(cmd.Context())
			if err != nil {
				return err
			}
			receipt, err := run(client, cmd.Context(), account)
			if err != nil {
				return err
			}
			renderReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
}

func newGovernanceCmd(bind proxyBinder, use, short string,
	run func(c *proxy.Client, ctx context.Context) (*types.Receipt, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := bind(cmd.Context())
			if err != nil {
				return err
			}
			receipt, err := run(client, cmd.Context())
			if err != nil {
				return err
			}
			renderReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
}

func newRegisterRoleCmd(bind proxyBinder) *cobra.Command {
	var (
		role    proxy.Role
		account string
	)
	cmd := &cobra.Command{
		Use:   "register-role",
		Short: "Grant a role on a 5.x proxy.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := parseAddress(accountF, account)
			if err != nil {
				return err
			}
			client, err := bind(cmd.Context())
			if err != nil {
				return err
			}
			receipt, err := client.RegisterRole(cmd.Context(), role, target)
			if err != nil {
				return err
			}
			renderReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
	cmd.Flags().Var(&role, roleF, "Role to grant, e.g. security-agent or upgrade-governor.")
	cmd.Flags().StringVar(&account, accountF, "", "Account receiving the role.")
	return cmd
}

func renderReceipt(w io.Writer, receipt *types.Receipt) {
	renderTable(w, [][]string{
		{"Transaction", receipt.TxHash.Hex()},
		{"Block", receipt.BlockNumber.String()},
		{"Gas used", strconv.FormatUint(receipt.GasUsed, 10)},
	})
}

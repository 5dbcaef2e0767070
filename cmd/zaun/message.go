package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/keep-starknet-strange/zaun/core/crypto"
	"github.com/keep-starknet-strange/zaun/core/felt"
	"github.com/keep-starknet-strange/zaun/messaging"
	"github.com/keep-starknet-strange/zaun/utils"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	fromF          = "from"
	toF            = "to"
	selectorF      = "selector"
	payloadF       = "payload"
	nonceF         = "nonce"
	feeF           = "fee"
	l2ToL1F        = "l2-to-l1"
	fromBlockF     = "from-block"
	skipPreflightF = "skip-preflight"
)

var errMissingFlag = errors.New("missing required flag")

// messageFlags are the message fields shared by the message subcommands.
type messageFlags struct {
	from     string
	to       string
	selector string
	payload  []string
	nonce    string
}

func (f *messageFlags) register(fs *pflag.FlagSet, with ...string) {
	for _, name := range with {
		switch name {
		case fromF:
			fs.StringVar(&f.from, fromF, "", "Sender: an L1 address for L1->L2 messages, an L2 contract for L2->L1.")
		case toF:
			fs.StringVar(&f.to, toF, "", "Recipient: an L2 contract for L1->L2 messages, an L1 address for L2->L1.")
		case selectorF:
			fs.StringVar(&f.selector, selectorF, "", "L1 handler selector as a felt, or the Cairo function name.")
		case payloadF:
			fs.StringSliceVar(&f.payload, payloadF, nil, "Comma separated payload felts.")
		case nonceF:
			fs.StringVar(&f.nonce, nonceF, "", "Nonce assigned to the message by the core contract.")
		}
	}
}

func (f *messageFlags) toL2(from common.Address, withNonce bool) (*messaging.MessageToL2, error) {
	to, err := parseFelt(toF, f.to)
	if err != nil {
		return nil, err
	}
	selector, err := parseSelector(f.selector)
	if err != nil {
		return nil, err
	}
	payload, err := parseFelts(f.payload)
	if err != nil {
		return nil, err
	}
	msg := &messaging.MessageToL2{
		FromAddress: from,
		ToAddress:   to,
		Selector:    selector,
		Payload:     payload,
	}
	if withNonce {
		if msg.Nonce, err = parseNonce(f.nonce); err != nil {
			return nil, err
		}
	}
	return msg, msg.Validate()
}

func (f *messageFlags) toL1() (*messaging.MessageToL1, error) {
	from, err := parseFelt(fromF, f.from)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress(toF, f.to)
	if err != nil {
		return nil, err
	}
	payload, err := parseFelts(f.payload)
	if err != nil {
		return nil, err
	}
	msg := &messaging.MessageToL1{FromAddress: from, ToAddress: to, Payload: payload}
	return msg, msg.Validate()
}

func newMessageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Hash, inspect, send, consume and cancel L1<->L2 messages.",
	}
	cmd.AddCommand(
		newMessageHashCmd(),
		newMessageStatusCmd(a),
		newMessageSendCmd(a),
		newMessageConsumeCmd(a),
		newMessageCancelCmd(a),
	)
	return cmd
}

func newMessageHashCmd() *cobra.Command {
	var (
		flags  messageFlags
		l2ToL1 bool
	)
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Compute the mailbox hash of a message. Works offline.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var msg messaging.Message
			if l2ToL1 {
				toL1, err := flags.toL1()
				if err != nil {
					return err
				}
				msg = toL1
			} else {
				from, err := parseAddress(fromF, flags.from)
				if err != nil {
					return err
				}
				toL2, err := flags.toL2(from, true)
				if err != nil {
					return err
				}
				msg = toL2
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), msg.Hash().Hex())
			return err
		},
	}
	flags.register(cmd.Flags(), fromF, toF, selectorF, payloadF, nonceF)
	cmd.Flags().BoolVar(&l2ToL1, l2ToL1F, false, "Hash an L2->L1 message instead.")
	return cmd
}

func newMessageStatusCmd(a *app) *cobra.Command {
	var (
		flags     messageFlags
		l2ToL1    bool
		fromBlock uint64
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the mailbox state of a message.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := a.CoreContract(cmd.Context())
			if err != nil {
				return err
			}
			client := core.Messaging()

			if l2ToL1 {
				msg, err := flags.toL1()
				if err != nil {
					return err
				}
				pending, err := client.L2ToL1Pending(cmd.Context(), msg)
				if err != nil {
					return err
				}
				renderTable(cmd.OutOrStdout(), [][]string{
					{"Hash", msg.Hash().Hex()},
					{"Direction", msg.Direction().String()},
					{"Consumable", strconv.FormatUint(pending, 10)},
				})
				return nil
			}

			from, err := parseAddress(fromF, flags.from)
			if err != nil {
				return err
			}
			msg, err := flags.toL2(from, true)
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context(), msg)
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Hash", status.Hash.Hex()},
				{"Direction", msg.Direction().String()},
				{"Payload", utils.FeltArrToString(msg.Payload)},
				{"State", status.State.String()},
				{"Mailbox value", status.MailboxValue.String()},
				{"Cancellation requested at", formatTimestamp(status.CancellationRequestedAt)},
				{"Cancellation delay", strconv.FormatUint(status.CancellationDelay, 10) + "s"},
				{"Cancelable at", formatTimestamp(status.CancelableAt)},
				{"Chain time", formatTimestamp(status.ChainTime)},
			}
			if status.State == messaging.NotPending && cmd.Flags().Changed(fromBlockF) {
				resolution, err := client.Outcome(cmd.Context(), msg, fromBlock)
				if err != nil {
					return err
				}
				rows = append(rows, []string{"Outcome", resolution.State.String()})
				if resolution.State.Terminal() {
					rows = append(rows,
						[]string{"Resolved by", resolution.TxHash.Hex()},
						[]string{"Resolved in block", strconv.FormatUint(resolution.BlockNumber, 10)},
						[]string{"Finalized", strconv.FormatBool(resolution.Finalized)},
					)
				}
			}
			renderTable(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	flags.register(cmd.Flags(), fromF, toF, selectorF, payloadF, nonceF)
	cmd.Flags().BoolVar(&l2ToL1, l2ToL1F, false, "Inspect an L2->L1 message instead.")
	cmd.Flags().Uint64Var(&fromBlock, fromBlockF, 0,
		"Search consumption and cancellation logs from this L1 block when the mailbox entry is gone.")
	return cmd
}

func newMessageSendCmd(a *app) *cobra.Command {
	var (
		flags         messageFlags
		fee           string
		skipPreflight bool
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message to an L2 contract, paying the L1->L2 fee.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			feeWei, err := parseWei(feeF, fee)
			if err != nil {
				return err
			}
			core, err := a.CoreContract(cmd.Context())
			if err != nil {
				return err
			}
			client := core.Messaging()
			msg, err := flags.toL2(client.Sender(), false)
			if err != nil {
				return err
			}

			var opts []messaging.Option
			if skipPreflight {
				opts = append(opts, messaging.SkipPreflight())
			}
			sent, err := client.SendMessageToL2(cmd.Context(), msg.ToAddress, msg.Selector, msg.Payload, feeWei, opts...)
			if err != nil {
				return err
			}
			renderTable(cmd.OutOrStdout(), [][]string{
				{"Hash", sent.MessageHash.Hex()},
				{"Nonce", sent.Message.Nonce.Dec()},
				{"Transaction", sent.Receipt.TxHash.Hex()},
				{"Block", sent.Receipt.BlockNumber.String()},
			})
			return nil
		},
	}
	flags.register(cmd.Flags(), toF, selectorF, payloadF)
	cmd.Flags().StringVar(&fee, feeF, "", "Fee paid for the L2 handler in wei.")
	cmd.Flags().BoolVar(&skipPreflight, skipPreflightF, false, "Skip the fee bound check before sending.")
	return cmd
}

func newMessageConsumeCmd(a *app) *cobra.Command {
	var flags messageFlags
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Consume an L2->L1 message addressed to the signing account.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := parseFelt(fromF, flags.from)
			if err != nil {
				return err
			}
			payload, err := parseFelts(flags.payload)
			if err != nil {
				return err
			}
			core, err := a.CoreContract(cmd.Context())
			if err != nil {
				return err
			}
			submission, err := core.Messaging().ConsumeMessageFromL2(cmd.Context(), from, payload)
			if err != nil {
				return err
			}
			renderSubmission(cmd.OutOrStdout(), submission)
			return nil
		},
	}
	flags.register(cmd.Flags(), fromF, payloadF)
	return cmd
}

func newMessageCancelCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel an L1->L2 message that was never consumed.",
	}
	cmd.AddCommand(
		newCancellationCmd(a, "start", "Start the cancellation delay of a pending message.",
			(*messaging.Client).StartCancellation),
		newCancellationCmd(a, "finalize", "Cancel a message whose cancellation delay has elapsed.",
			(*messaging.Client).FinalizeCancellation),
	)
	return cmd
}

type cancellationFn func(c *messaging.Client, ctx context.Context, to, selector *felt.Felt, payload []*felt.Felt,
	nonce *uint256.Int, opts ...messaging.Option) (*messaging.Submission, error)

func newCancellationCmd(a *app, use, short string, run cancellationFn) *cobra.Command {
	var (
		flags         messageFlags
		skipPreflight bool
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := a.CoreContract(cmd.Context())
			if err != nil {
				return err
			}
			client := core.Messaging()
			msg, err := flags.toL2(client.Sender(), true)
			if err != nil {
				return err
			}

			var opts []messaging.Option
			if skipPreflight {
				opts = append(opts, messaging.SkipPreflight())
			}
			submission, err := run(client, cmd.Context(), msg.ToAddress, msg.Selector, msg.Payload, msg.Nonce, opts...)
			if err != nil {
				return err
			}
			renderSubmission(cmd.OutOrStdout(), submission)
			return nil
		},
	}
	flags.register(cmd.Flags(), toF, selectorF, payloadF, nonceF)
	cmd.Flags().BoolVar(&skipPreflight, skipPreflightF, false, "Skip the mailbox state check before submitting.")
	return cmd
}

func renderSubmission(w io.Writer, s *messaging.Submission) {
	renderTable(w, [][]string{
		{"Hash", s.MessageHash.Hex()},
		{"Transaction", s.Receipt.TxHash.Hex()},
		{"Block", s.Receipt.BlockNumber.String()},
	})
}

func renderTable(w io.Writer, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value"})
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

func formatTimestamp(ts uint64) string {
	switch ts {
	case 0:
		return "-"
	case math.MaxUint64:
		return "never"
	}
	return strconv.FormatUint(ts, 10)
}

func parseFelt(name, s string) (*felt.Felt, error) {
	if s == "" {
		return nil, fmt.Errorf("%w --%s", errMissingFlag, name)
	}
	f, err := felt.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return f, nil
}

func parseFelts(values []string) ([]*felt.Felt, error) {
	out := make([]*felt.Felt, len(values))
	for i, s := range values {
		f, err := parseFelt(fmt.Sprintf("%s[%d]", payloadF, i), strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// parseSelector accepts a felt or a Cairo function name.
func parseSelector(s string) (*felt.Felt, error) {
	if s == "" {
		return nil, fmt.Errorf("%w --%s", errMissingFlag, selectorF)
	}
	if strings.HasPrefix(s, "0x") || isDecimal(s) {
		return parseFelt(selectorF, s)
	}
	return crypto.SelectorFromName(s)
}

func isDecimal(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseAddress(name, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, fmt.Errorf("%w --%s", errMissingFlag, name)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("--%s: %w: %q", name, errInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

func parseNonce(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w --%s", errMissingFlag, nonceF)
	}
	var (
		nonce *uint256.Int
		err   error
	)
	if strings.HasPrefix(s, "0x") {
		nonce, err = uint256.FromHex(s)
	} else {
		nonce, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", nonceF, err)
	}
	return nonce, nil
}

func parseWei(name, s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w --%s", errMissingFlag, name)
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("--%s: invalid amount %q", name, s)
	}
	return v, nil
}

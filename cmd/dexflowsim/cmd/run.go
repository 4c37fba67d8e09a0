package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/paw-chain/dexflow/x/dexflow/simulation"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

const (
	flagTask     = "task"
	flagCoins    = "coins"
	flagOutDenom = "out-denom"
	flagBlocks   = "blocks"
)

// NewRunCmd runs one workflow to completion against a simulated venue.
func NewRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one workflow block by block and print its stage transitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulation(cmd.Context(), v, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	addSessionFlags(f)
	f.String(flagTask, taskBuyBack, "task to run: buy-back, open, repay or liquidation")
	f.String(flagCoins, "1000uatom,2000uosmo", "coins the task swaps")
	f.String(flagOutDenom, "upaw", "denom the coins are swapped into")
	f.Int(flagBlocks, 500, "maximum number of blocks to run")
	return cmd
}

func runSimulation(ctx context.Context, v *viper.Viper, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := newLogger(errOut, v.GetString(flagLogLevel))
	if err != nil {
		return err
	}
	shutdown, err := setupObservability(v, logger)
	if err != nil {
		return err
	}
	defer shutdown()

	s, err := newSession(v, logger)
	if err != nil {
		return err
	}
	coins, err := parseCoins(v.GetString(flagCoins))
	if err != nil {
		return fmt.Errorf("%s: %w", flagCoins, err)
	}
	id, task, err := s.start(v.GetString(flagTask), coins, v.GetString(flagOutDenom))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "started workflow %d: %s\n", id, task.Label())

	blocks := cast.ToInt(v.Get(flagBlocks))
	last := ""
	for block := 0; block < blocks; block++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		relayed, err := s.step()
		if err != nil {
			return err
		}
		for _, r := range relayed {
			if r.Outcome != simulation.OutcomeAck || r.Err != nil {
				fmt.Fprintf(out, "  relayed %s %s/%d: %s%s\n", r.Packet.Kind, r.Packet.ChannelID, r.Packet.Sequence, r.Outcome, errSuffix(r.Err))
			}
		}

		info, err := s.chain.Keeper.Workflow(s.chain.Ctx, id)
		if err != nil {
			return err
		}
		state := fmt.Sprintf("%s awaiting=%t", info.Stage, info.AwaitingRetry)
		if state != last {
			fmt.Fprintf(out, "height=%d time=%s stage=%s\n", s.chain.Ctx.BlockHeight(), s.chain.Ctx.BlockTime().Format(time.RFC3339), state)
			last = state
		}
		if info.Terminal {
			return printOutcome(out, s.chain, id)
		}
	}
	return fmt.Errorf("workflow %d did not finish within %d blocks", id, blocks)
}

func printOutcome(out io.Writer, chain *simulation.Chain, id uint64) error {
	st, err := chain.Keeper.GetWorkflow(chain.Ctx, id)
	if err != nil {
		return err
	}
	switch s := st.(type) {
	case workflow.Done:
		fmt.Fprintf(out, "done: %s received %s\n", s.TaskLabel, s.AmountOut)
	case workflow.Failed:
		fmt.Fprintf(out, "failed in %s: %s\n", s.At, s.Reason)
	}
	for _, addr := range []sdk.AccAddress{simTreasury, simLender, simCustody, simRelayer} {
		if balance := chain.Venue.Balances(chain.Ctx, addr); !balance.IsZero() {
			fmt.Fprintf(out, "  %s: %s\n", strings.TrimRight(string(addr), "_"), balance)
		}
	}
	return nil
}

func errSuffix(err error) string {
	if err == nil {
		return ""
	}
	return " (" + err.Error() + ")"
}

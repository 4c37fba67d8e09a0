package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	dexflowtelemetry "github.com/paw-chain/dexflow/pkg/telemetry"
	"github.com/paw-chain/dexflow/x/dexflow/simulation"
	"github.com/paw-chain/dexflow/x/dexflow/tasks"
	"github.com/paw-chain/dexflow/x/dexflow/types"
	"github.com/paw-chain/dexflow/x/dexflow/workflow"
)

const (
	flagChainID        = "chain-id"
	flagPrices         = "prices"
	flagBaseDenom      = "base-denom"
	flagSwapFee        = "swap-fee"
	flagConnection     = "connection"
	flagChannel        = "transfer-channel"
	flagRemote         = "remote-channel"
	flagBlockTime      = "block-time"
	flagTimeoutRate    = "timeout-rate"
	flagErrorRate      = "error-rate"
	flagSeed           = "seed"
	flagThroughput     = "relayer-throughput"
	flagBurst          = "relayer-burst"
	flagLogLevel       = "log-level"
	flagMetricsAddr    = "metrics-addr"
	flagOTLPEndpoint   = "otlp-endpoint"
	relayLimitPerBlock = 1000
)

// Task kinds accepted by --task and the API.
const (
	taskBuyBack     = "buy-back"
	taskOpen        = "open"
	taskRepay       = "repay"
	taskLiquidation = "liquidation"
)

var (
	simFunder   = sdk.AccAddress([]byte("dexflowsim-funder___"))
	simTreasury = sdk.AccAddress([]byte("dexflowsim-treasury_"))
	simLender   = sdk.AccAddress([]byte("dexflowsim-lender___"))
	simCustody  = sdk.AccAddress([]byte("dexflowsim-custody__"))
	simRelayer  = sdk.AccAddress([]byte("dexflowsim-relayer__"))

	simGenesis = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func addSessionFlags(f *pflag.FlagSet) {
	f.String(flagChainID, "dexflow-sim-1", "chain id of the simulated controller chain")
	f.String(flagPrices, "uusdc=1,uatom=10,uosmo=0.5,upaw=2", "oracle prices in the base denom")
	f.String(flagBaseDenom, "uusdc", "oracle base denom")
	f.String(flagSwapFee, "0.003", "venue fee taken on every swap hop")
	f.String(flagConnection, "connection-0", "connection to the venue")
	f.String(flagChannel, "channel-0", "local ICS-20 channel to the venue")
	f.String(flagRemote, "channel-1", "venue ICS-20 channel back to this chain")
	f.Duration(flagBlockTime, 6*time.Second, "block interval")
	f.Float64(flagTimeoutRate, 0, "probability that the relayer times a packet out")
	f.Float64(flagErrorRate, 0, "probability that the counterparty rejects a packet")
	f.Int64(flagSeed, 1, "seed of the relayer fault draws")
	f.Float64(flagThroughput, 0, "packets the relayer delivers per second of block time, 0 for unlimited")
	f.Int(flagBurst, 10, "relayer burst when throughput is capped")
	f.String(flagLogLevel, "error", "log level, e.g. info or dexflow:debug,*:error, or none")
	f.String(flagMetricsAddr, "", "serve Prometheus metrics on this address, e.g. :36660")
	f.String(flagOTLPEndpoint, "", "export traces to this OTLP/HTTP endpoint")
}

// session is one simulated controller chain with its venue and relayer.
// All access goes through its mutex.
type session struct {
	mu sync.Mutex

	chain     *simulation.Chain
	relayer   *simulation.Relayer
	conn      types.Connection
	base      tasks.Base
	blockTime time.Duration
}

func newSession(v *viper.Viper, logger log.Logger) (*session, error) {
	params, err := paramsFromConfig(v)
	if err != nil {
		return nil, err
	}

	config := simulation.DefaultConfig()
	if config.SwapFee, err = sdkmath.LegacyNewDecFromStr(v.GetString(flagSwapFee)); err != nil {
		return nil, fmt.Errorf("%s: %w", flagSwapFee, err)
	}
	config.HostConnectionID = v.GetString(flagConnection)

	chain, err := simulation.NewChain(logger, config, params, v.GetString(flagChainID), simGenesis)
	if err != nil {
		return nil, err
	}
	prices, err := parsePrices(v.GetString(flagPrices))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", flagPrices, err)
	}
	for denom, price := range prices {
		chain.Venue.SetPrice(chain.Ctx, denom, price)
	}
	if params.PaysRelayerFees() {
		tips := params.AckTip.Add(params.TimeoutTip...)
		chain.Venue.Fund(chain.Ctx, chain.Keeper.ModuleAddress(), tips.MulInt(sdkmath.NewInt(1_000_000)))
	}

	faults := simulation.Faults{
		TimeoutRate: cast.ToFloat64(v.Get(flagTimeoutRate)),
		ErrorRate:   cast.ToFloat64(v.Get(flagErrorRate)),
	}
	relayer, err := simulation.NewRelayer(chain.Venue, chain.Keeper, faults, cast.ToInt64(v.Get(flagSeed)), simRelayer)
	if err != nil {
		return nil, err
	}
	if perSecond := cast.ToFloat64(v.Get(flagThroughput)); perSecond > 0 {
		relayer.SetThroughput(perSecond, cast.ToInt(v.Get(flagBurst)))
	}

	return &session{
		chain:   chain,
		relayer: relayer,
		conn: types.Connection{
			ConnectionID:          v.GetString(flagConnection),
			TransferChannel:       v.GetString(flagChannel),
			RemoteTransferChannel: v.GetString(flagRemote),
		},
		base: tasks.NewBase(
			types.OracleRef{Address: "oracle", BaseDenom: v.GetString(flagBaseDenom)},
			types.TimeAlarmsRef{Address: "time-alarms"},
		),
		blockTime: cast.ToDuration(v.Get(flagBlockTime)),
	}, nil
}

// start funds the simulated funder with coins and starts a workflow for
// the task kind.
func (s *session) start(kind string, coins sdk.Coins, outDenom string) (uint64, workflow.SwapTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := newTask(kind, s.base, coins, outDenom)
	if err != nil {
		return 0, nil, err
	}
	s.chain.Venue.Fund(s.chain.Ctx, simFunder, coins)
	id, err := s.chain.Keeper.StartWorkflow(s.chain.Ctx, simFunder, task, s.conn)
	if err != nil {
		return 0, nil, err
	}
	return id, task, nil
}

// step relays the outbox and produces the next block.
func (s *session) step() ([]simulation.Relayed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	relayed, err := s.relayer.RelayAll(s.chain.Ctx, relayLimitPerBlock)
	if err != nil {
		return nil, err
	}
	return relayed, s.chain.NextBlock(s.blockTime)
}

// view runs fn against the current chain state.
func (s *session) view(fn func(chain *simulation.Chain) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.chain)
}

func newTask(kind string, base tasks.Base, coins sdk.Coins, outDenom string) (workflow.SwapTask, error) {
	switch kind {
	case taskBuyBack:
		return tasks.NewBuyBack(base, simTreasury, coins, outDenom)
	case taskOpen:
		if len(coins) == 0 || len(coins) > 2 {
			return nil, fmt.Errorf("open takes a downpayment and an optional loan, got %s", coins)
		}
		loan := sdk.NewCoin(coins[0].Denom, sdkmath.ZeroInt())
		if len(coins) == 2 {
			loan = coins[1]
		}
		return tasks.NewOpenPosition(base, "sim-position", simCustody, coins[0], loan, outDenom)
	case taskRepay, taskLiquidation:
		if len(coins) != 1 {
			return nil, fmt.Errorf("%s sells exactly one asset, got %s", kind, coins)
		}
		return tasks.NewClosePosition(base, "sim-position", tasks.CloseKind(kind), simLender, coins[0], outDenom)
	default:
		return nil, fmt.Errorf("unknown task %q", kind)
	}
}

// setupObservability starts the optional metrics endpoint and trace
// exporter. The returned func flushes the exporter.
func setupObservability(v *viper.Viper, logger log.Logger) (func(), error) {
	if addr := v.GetString(flagMetricsAddr); addr != "" {
		startMetricsServer(addr, logger)
	}
	endpoint := v.GetString(flagOTLPEndpoint)
	if endpoint == "" {
		return func() {}, nil
	}
	provider, err := dexflowtelemetry.NewProvider(dexflowtelemetry.Config{
		Enabled:      true,
		OTLPEndpoint: endpoint,
		SampleRate:   1,
		Environment:  "simulation",
		ChainID:      v.GetString(flagChainID),
	})
	if err != nil {
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}, nil
}

func newLogger(w io.Writer, level string) (log.Logger, error) {
	if level == "none" {
		return log.NewNopLogger(), nil
	}
	if !strings.Contains(level, ":") {
		level = "*:" + level
	}
	filter, err := log.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	return log.NewLogger(w, log.FilterOption(filter)), nil
}

func parseCoins(s string) (sdk.Coins, error) {
	if strings.TrimSpace(s) == "" {
		return sdk.NewCoins(), nil
	}
	return sdk.ParseCoinsNormalized(s)
}

// parsePrices reads denom=price pairs.
func parsePrices(s string) (map[string]sdkmath.LegacyDec, error) {
	prices := make(map[string]sdkmath.LegacyDec)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		denom, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected denom=price, got %q", pair)
		}
		price, err := sdkmath.LegacyNewDecFromStr(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("price of %s: %w", denom, err)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("price of %s must be positive", denom)
		}
		prices[strings.TrimSpace(denom)] = price
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("no prices")
	}
	return prices, nil
}

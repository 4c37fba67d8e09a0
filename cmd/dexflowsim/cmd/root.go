package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/paw-chain/dexflow/x/dexflow/types"
)

// EnvPrefix prefixes every environment override, e.g. DEXFLOW_RETRY_DELAY.
const EnvPrefix = "DEXFLOW"

const (
	flagConfig            = "config"
	flagTransferTimeout   = "transfer-timeout"
	flagICATimeout        = "ica-timeout"
	flagRetryDelay        = "retry-delay"
	flagDeliveryDelay     = "delivery-delay"
	flagAckTip            = "ack-tip"
	flagTimeoutTip        = "timeout-tip"
	flagMaxAlarmsPerBlock = "max-alarms-per-block"
)

// NewRootCmd creates the dexflowsim command tree.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "dexflowsim",
		Short: "Run cross-chain swap workflows against a simulated venue",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, cmd.Flags())
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String(flagConfig, "", "config file (json, yaml or toml)")
	addParamsFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		NewRunCmd(v),
		NewParamsCmd(v),
		NewServeCmd(v),
	)
	return rootCmd
}

func initConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	if path := v.GetString(flagConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return nil
}

func addParamsFlags(flags *pflag.FlagSet) {
	defaults := types.DefaultParams()
	flags.Duration(flagTransferTimeout, defaults.TransferTimeout, "timeout of a single ICS-20 transfer")
	flags.Duration(flagICATimeout, defaults.ICATimeout, "timeout of an interchain account transaction")
	flags.Duration(flagRetryDelay, defaults.RetryDelay, "delay before a timed out or failed request is re-issued")
	flags.Duration(flagDeliveryDelay, defaults.DeliveryDelay, "delay before a parked notification is re-delivered")
	flags.String(flagAckTip, defaults.AckTip.String(), "relayer tip for acknowledged packets")
	flags.String(flagTimeoutTip, defaults.TimeoutTip.String(), "relayer tip for timed out packets")
	flags.Uint32(flagMaxAlarmsPerBlock, defaults.MaxAlarmsPerBlock, "alarms fired per block")
}

// paramsFromConfig merges flags, environment and config file over the
// default module params.
func paramsFromConfig(v *viper.Viper) (types.Params, error) {
	params := types.DefaultParams()

	var err error
	if params.TransferTimeout, err = cast.ToDurationE(v.Get(flagTransferTimeout)); err != nil {
		return params, fmt.Errorf("%s: %w", flagTransferTimeout, err)
	}
	if params.ICATimeout, err = cast.ToDurationE(v.Get(flagICATimeout)); err != nil {
		return params, fmt.Errorf("%s: %w", flagICATimeout, err)
	}
	if params.RetryDelay, err = cast.ToDurationE(v.Get(flagRetryDelay)); err != nil {
		return params, fmt.Errorf("%s: %w", flagRetryDelay, err)
	}
	if params.DeliveryDelay, err = cast.ToDurationE(v.Get(flagDeliveryDelay)); err != nil {
		return params, fmt.Errorf("%s: %w", flagDeliveryDelay, err)
	}
	if params.AckTip, err = parseCoins(v.GetString(flagAckTip)); err != nil {
		return params, fmt.Errorf("%s: %w", flagAckTip, err)
	}
	if params.TimeoutTip, err = parseCoins(v.GetString(flagTimeoutTip)); err != nil {
		return params, fmt.Errorf("%s: %w", flagTimeoutTip, err)
	}
	if params.MaxAlarmsPerBlock, err = cast.ToUint32E(v.Get(flagMaxAlarmsPerBlock)); err != nil {
		return params, fmt.Errorf("%s: %w", flagMaxAlarmsPerBlock, err)
	}
	return params, params.Validate()
}

// NewParamsCmd prints the effective module params.
func NewParamsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "params",
		Short: "Print the module params after applying flags, environment and config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := paramsFromConfig(v)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(params)
		},
	}
}

package types

import (
	"fmt"
	"strings"
)

// OracleRef names the price oracle consulted for swap routes.
type OracleRef struct {
	Address   string `json:"address"`
	BaseDenom string `json:"base_denom"`
}

// Validate checks the reference.
func (r OracleRef) Validate() error {
	if strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("oracle address cannot be empty")
	}
	if strings.TrimSpace(r.BaseDenom) == "" {
		return fmt.Errorf("oracle base denom cannot be empty")
	}
	return nil
}

// TimeAlarmsRef names the service that delivers time alarms.
type TimeAlarmsRef struct {
	Address string `json:"address"`
}

// Validate checks the reference.
func (r TimeAlarmsRef) Validate() error {
	if strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("time alarms address cannot be empty")
	}
	return nil
}

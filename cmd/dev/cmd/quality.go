package cmd

import (
	"fmt"
	"os"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func TestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run driver, transport and cli unit tests against mocks and the simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Test(); err != nil {
				return fmt.Errorf("unit tests failed: %w", err)
			}
			return nil
		},
	}
	return cmd
}

func LintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Run golangci-lint over the module",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Lint(); err != nil {
				return fmt.Errorf("lint failed: %w", err)
			}
			return nil
		},
	}
	return cmd
}

// IntegrationTestCmd runs the test suite with hardware tests enabled. The bus
// and chip are handed to hmc5983 TestDevice_Hardware through the environment.
func IntegrationTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration-test",
		Short: "Run the test suite including tests against a magnetometer on a real I2C bus",
		RunE: func(cmd *cobra.Command, args []string) error {
			for flag, env := range map[string]string{
				"i2c-bus": "MAGNETOMETER_I2C_BUS",
				"family":  "MAGNETOMETER_FAMILY",
			} {
				if v := cmd.Flag(flag).Value.String(); v != "" {
					if err := os.Setenv(env, v); err != nil {
						return fmt.Errorf("could not set %s: %w", env, err)
					}
				}
			}
			if err := test.Integ(); err != nil {
				return fmt.Errorf("integration tests failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("i2c-bus", "", "I2C bus the sensor is attached to, e.g. /dev/i2c-1 (first bus when empty)")
	cmd.Flags().String("family", "", "chip family: HMC5843, HMC5883L or HMC5983 (default HMC5983)")
	return cmd
}

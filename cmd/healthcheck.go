package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/caas-team/ironshield/internal/logger"
	"github.com/caas-team/ironshield/pkg/healthz"
)

// NewCmdHealthcheck creates a command checking a locally running ironshield,
// e.g. as a container health check
func NewCmdHealthcheck() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check the health of a running ironshield",
		Long:  `Exits with a non zero code if the api of the local ironshield does not respond`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.IntoContext(context.Background(), logger.NewLogger())
			if !healthz.New(address).CheckOverallHealth(ctx) {
				return errors.New("ironshield is unhealthy")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "apiAddress", ":8080", "api: The address the checked server is listening on")

	return cmd
}

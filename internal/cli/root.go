// Package cli implements the operator provisioning commands.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/nw-com/nw-patrol/internal/domain"
)

// Exit codes returned by the provision binary.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitInvalidInput = 2
	ExitConflict     = 3
)

// Provisioner is the account creation the CLI drives.
type Provisioner interface {
	CreateUser(ctx context.Context, credential string, in domain.CreateUserInput) (*domain.CreateUserResult, error)
}

// Factory connects to both stores and returns a Provisioner plus its cleanup.
// It runs only after flags are parsed, so "--help" never dials anything.
type Factory func(ctx context.Context) (Provisioner, func(), error)

// NewRootCommand builds the "provision" command tree.
func NewRootCommand(factory Factory) *cobra.Command {
	root := &cobra.Command{
		Use:   "provision",
		Short: "Provision patrol accounts as a trusted operator",
		Long: `provision creates accounts in the identity provider and the profile store
without an administrator session. It is meant for bootstrapping the first
administrator and for bulk onboarding.

Example usage:
  provision create --email lead@example.com --password-stdin --name "Shift Lead" --role admin --title Coordinator
  provision apply -f users.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newCreateCommand(factory))
	root.AddCommand(newApplyCommand(factory))
	return root
}

// ExitCode maps a command error onto the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var failed *applyFailedError
	if errors.As(err, &failed) {
		return ExitFailure
	}
	var de *domain.Error
	if !errors.As(err, &de) {
		return ExitFailure
	}
	switch de.Kind {
	case domain.KindInvalidArgument:
		return ExitInvalidInput
	case domain.KindAlreadyExists:
		return ExitConflict
	default:
		return ExitFailure
	}
}

// operatorCredential is passed to the lifecycle; the operator guard ignores it.
const operatorCredential = ""

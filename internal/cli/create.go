package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nw-com/nw-patrol/internal/domain"
)

type createOptions struct {
	email         string
	password      string
	passwordStdin bool
	name          string
	role          string
	title         string
	communities   []string
}

func newCreateCommand(factory Factory) *cobra.Command {
	opts := &createOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create one account",
		Long: `Create one account in both stores.

Prefer --password-stdin over --password so the secret stays out of shell history.

Examples:
  echo -n "$PW" | provision create --email a@example.com --password-stdin \
      --name "Aki" --role admin --title Coordinator --community north`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreate(cmd, factory, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.email, "email", "", "login email (required)")
	flags.StringVar(&opts.password, "password", "", "initial password")
	flags.BoolVar(&opts.passwordStdin, "password-stdin", false, "read the initial password from stdin")
	flags.StringVar(&opts.name, "name", "", "display name (required)")
	flags.StringVar(&opts.role, "role", "", "role, e.g. admin or member (required)")
	flags.StringVar(&opts.title, "title", "", "title shown in the roster (required)")
	flags.StringArrayVar(&opts.communities, "community", nil, "community membership; repeat for several")
	for _, name := range []string{"email", "name", "role", "title"} {
		_ = cmd.MarkFlagRequired(name)
	}
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	cmd.MarkFlagsOneRequired("password", "password-stdin")

	return cmd
}

func runCreate(cmd *cobra.Command, factory Factory, opts *createOptions) error {
	password := opts.password
	if opts.passwordStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.New("reading password from stdin: no input")
		}
		password = strings.TrimRight(line, "\r\n")
	}

	provisioner, cleanup, err := factory(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := provisioner.CreateUser(cmd.Context(), operatorCredential, domain.CreateUserInput{
		Email:       opts.email,
		Password:    password,
		Name:        opts.name,
		Role:        opts.role,
		Title:       opts.title,
		Communities: opts.communities,
	})
	if err != nil {
		return describe(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created %s account_id=%s\n", opts.email, result.AccountID)
	return nil
}

// describe keeps the domain error for ExitCode and shows its code and message.
func describe(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return fmt.Errorf("%s: %s: %w", de.Kind.Code(), de.Message, err)
	}
	return err
}

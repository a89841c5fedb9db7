package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nw-com/nw-patrol/internal/domain"
	"github.com/nw-com/nw-patrol/internal/provisioning"
)

type applyFailedError struct {
	failed, total int
}

func (e *applyFailedError) Error() string {
	return fmt.Sprintf("%d of %d accounts failed", e.failed, e.total)
}

func newApplyCommand(factory Factory) *cobra.Command {
	var (
		file     string
		stopFast bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create every account listed in a manifest",
		Long: `Create every account listed in a YAML manifest, one after another.

Each entry is reported with its outcome code. Accounts that already exist are
reported as already-exists and do not stop the run unless --fail-fast is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApply(cmd, factory, file, stopFast)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "manifest path (required)")
	cmd.Flags().BoolVar(&stopFast, "fail-fast", false, "stop at the first failed entry")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runApply(cmd *cobra.Command, factory Factory, file string, stopFast bool) error {
	manifest, err := provisioning.LoadManifest(file)
	if err != nil {
		return domain.WrapError(domain.KindInvalidArgument, "invalid manifest", err)
	}

	provisioner, cleanup, err := factory(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	var (
		rows    [][]string
		failed  int
		stopped = -1
	)
	for i, entry := range manifest.Users {
		code, detail := applyEntry(cmd, provisioner, entry)
		rows = append(rows, []string{entry.Email, outcomeCell(code), detail})
		if code == outcomeOK {
			continue
		}
		failed++
		if stopFast {
			stopped = i
			break
		}
	}

	table := newReportTable(cmd.OutOrStdout())
	table.Header([]string{"email", "outcome", "detail"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	if stopped >= 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "stopped after users[%d]\n", stopped)
	}

	if failed > 0 {
		return &applyFailedError{failed: failed, total: len(manifest.Users)}
	}
	return nil
}

func applyEntry(cmd *cobra.Command, provisioner Provisioner, entry provisioning.Entry) (string, string) {
	in, err := entry.Input(os.LookupEnv)
	if err != nil {
		return domain.KindInvalidArgument.Code(), err.Error()
	}

	result, err := provisioner.CreateUser(cmd.Context(), operatorCredential, in)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return de.Kind.Code(), de.Message
		}
		return domain.KindInternal.Code(), "internal error"
	}
	return outcomeOK, "account_id=" + result.AccountID
}

package cli

import (
	"bizdesk/internal/auth"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func newHashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for a password (reads stdin when no argument is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(string(raw), "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}
			hash, err := auth.NewBcryptHasher(cost).Hash(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost factor")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		requestedBy string
		list        bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a gzip JSON snapshot of all records to the blob store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.build(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if list {
				archives, err := a.Archives(cmd.Context())
				if err != nil {
					return err
				}
				for _, info := range archives {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", info.Key, info.Size, info.LastModified.UTC().Format(time.RFC3339))
				}
				return nil
			}

			rec, err := a.Export(cmd.Context(), requestedBy)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Export %s written to %s (%d bytes)\n", rec.ID, rec.Artifact.Key, rec.Artifact.Size)
			return nil
		},
	}
	cmd.Flags().StringVar(&requestedBy, "requested-by", "cli", "label stored with the archive metadata")
	cmd.Flags().BoolVar(&list, "list", false, "list stored archives instead of writing one")
	return cmd
}

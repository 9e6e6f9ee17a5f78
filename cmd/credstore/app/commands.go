package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"

	"github.com/spf13/cobra"

	"github.com/phillarmonic/credstore/internal/pool"
	"github.com/phillarmonic/credstore/internal/secrets"
)

// Domain: Credential Commands
// This file contains the set, get, delete, find and probe commands

func (a *App) createSetCommand() *cobra.Command {
	var fromStdin, isBase64 bool

	cmd := &cobra.Command{
		Use:   "set SERVICE USER",
		Short: "Store a secret",
		Long: `Store a secret for SERVICE and USER.

The password is prompted for without echo when stdin is a terminal, and read
from stdin otherwise. With --base64 the input is decoded and stored as raw bytes.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readSecret(cmd, fromStdin)
			if err != nil {
				return err
			}
			entry, err := a.entry(cmd, args[0], args[1])
			if err != nil {
				return err
			}

			if isBase64 {
				raw, err := base64.StdEncoding.DecodeString(input)
				if err != nil {
					return fmt.Errorf("invalid base64 input: %w", err)
				}
				return entry.SetSecret(raw)
			}
			return entry.SetPassword(input)
		},
	}

	cmd.Flags().String("target", "", "Native location for the secret (backend specific)")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the secret from stdin even on a terminal")
	cmd.Flags().BoolVar(&isBase64, "base64", false, "Input is base64 and is stored as raw bytes")
	return cmd
}

func (a *App) createGetCommand() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "get SERVICE USER",
		Short: "Print a stored secret",
		Long: `Print the secret stored for SERVICE and USER.

Exits with status 2 when nothing is stored and 3 when the entry is ambiguous.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := a.entry(cmd, args[0], args[1])
			if err != nil {
				return err
			}

			// An abandoned wait must not join a worker stuck in a native call
			p := pool.New(1)
			defer p.Shutdown()
			ctx, cancel := a.waitContext(cmd)
			defer cancel()

			async := secrets.NewAsyncEntry(entry, p)
			if raw {
				secret, err := async.GetSecret().Wait(ctx)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(secret)
				return err
			}

			password, err := async.GetPassword().Wait(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), password)
			return err
		},
	}

	cmd.Flags().String("target", "", "Native location for the secret (backend specific)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Write the stored bytes unchanged")
	cmd.Flags().Duration("timeout", 0, "Give up waiting after this long (0 waits forever)")
	return cmd
}

func (a *App) createDeleteCommand() *cobra.Command {
	var soft bool

	cmd := &cobra.Command{
		Use:   "delete SERVICE USER",
		Short: "Remove a stored secret",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := a.entry(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			if soft {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), entry.TryDelete())
				return err
			}
			return entry.DeleteCredential()
		},
	}

	cmd.Flags().String("target", "", "Native location for the secret (backend specific)")
	cmd.Flags().BoolVar(&soft, "soft", false, "Print true or false instead of failing")
	return cmd
}

// foundRecord is one line of find output
type foundRecord struct {
	Service      string `json:"service"`
	Account      string `json:"account"`
	Secret       string `json:"secret,omitempty"`
	SecretBase64 string `json:"secret_base64,omitempty"`
}

func (a *App) createFindCommand() *cobra.Command {
	var asJSON, showSecrets bool

	cmd := &cobra.Command{
		Use:   "find SERVICE [SERVICE...]",
		Short: "List accounts stored for one or more services",
		Long: `List every account stored for each SERVICE.

Services are searched concurrently, bounded by the configured worker count.
Items that cannot be read are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := pool.New(a.cfg.Workers)
			defer p.Shutdown()
			ctx, cancel := a.waitContext(cmd)
			defer cancel()

			target := a.findTarget(cmd)
			futures := make([]*pool.Future[[]secrets.Found], len(args))
			for i, service := range args {
				futures[i] = secrets.FindCredentialsAsync(p, a.builder, service, target)
			}

			var records []foundRecord
			for i, f := range futures {
				found, err := f.Wait(ctx)
				if err != nil {
					return err
				}
				for _, item := range found {
					records = append(records, newFoundRecord(args[i], item, showSecrets))
				}
			}
			sort.SliceStable(records, func(i, j int) bool {
				if records[i].Service != records[j].Service {
					return records[i].Service < records[j].Service
				}
				return records[i].Account < records[j].Account
			})

			out := cmd.OutOrStdout()
			if asJSON {
				if records == nil {
					records = []foundRecord{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			for _, r := range records {
				line := r.Service + "\t" + r.Account
				if showSecrets {
					if r.Secret != "" {
						line += "\t" + r.Secret
					} else if r.SecretBase64 != "" {
						line += "\tbase64:" + r.SecretBase64
					}
				}
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().String("target", "", "Restrict the search to one native location")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Include secrets in the output")
	cmd.Flags().Duration("timeout", 0, "Give up waiting after this long (0 waits forever)")
	return cmd
}

func newFoundRecord(service string, f secrets.Found, showSecrets bool) foundRecord {
	r := foundRecord{Service: service, Account: f.Account}
	if !showSecrets {
		return r
	}
	if pw, ok := f.Password(); ok {
		r.Secret = pw
	} else {
		r.SecretBase64 = base64.StdEncoding.EncodeToString(f.Secret)
	}
	return r
}

func (a *App) createProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Show which backend is in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "platform:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "backend:   %s\n", a.builder.Kind())
			if runtime.GOOS == "linux" || runtime.GOOS == "freebsd" {
				state, err := secrets.ProbeSecretService()
				fmt.Fprintf(out, "secret-service: %s\n", state)
				if err != nil {
					fmt.Fprintf(out, "  reason: %v\n", err)
				}
			}
			return nil
		},
	}
}

// waitContext bounds a wait by the command's --timeout flag
func (a *App) waitContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if d := a.timeout(cmd); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

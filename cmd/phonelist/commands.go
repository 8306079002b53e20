package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/myphonelist/backend/internal/repository"
	"github.com/myphonelist/backend/internal/service"
	"github.com/spf13/cobra"
)

// errReported marks failures whose message was already printed as a notification.
var errReported = errors.New("reported")

const defaultExportFile = "contacts_export.vcf"

type app struct {
	svc   service.ContactService
	close func() error
}

type openFunc func(ctx context.Context) (*app, error)

// withApp opens the store for the duration of one command.
func withApp(open openFunc, run func(cmd *cobra.Command, args []string, svc service.ContactService) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := open(cmd.Context())
		if err != nil {
			return fmt.Errorf("open contact store: %w", err)
		}
		defer a.close()
		return run(cmd, args, a.svc)
	}
}

func newRootCmd(open openFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "phonelist",
		Short:         "Manage the local phone list",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newListCmd(open),
		newAddCmd(open),
		newEditCmd(open),
		newDeleteCmd(open),
		newImportCmd(open),
		newExportCmd(open),
		newShareCmd(open),
		newBackupCmd(open),
		newRestoreCmd(open),
	)
	return root
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid contact id %q", s)
	}
	return id, nil
}

// ---------------------------------------------------------------------------
// list / add / edit / delete
// ---------------------------------------------------------------------------

func newListCmd(open openFunc) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contacts, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: withApp(open, func(cmd *cobra.Command, _ []string, svc service.ContactService) error {
			contacts, err := svc.List(cmd.Context(), query)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPHONE\tEMAIL\tTAG")
			for _, c := range contacts {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.PhoneNumber, c.Email, c.Tag)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search name, phone, email or tag")
	return cmd
}

func newAddCmd(open openFunc) *cobra.Command {
	var name, phone, email, tag string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a contact",
		Args:  cobra.NoArgs,
		RunE: withApp(open, func(cmd *cobra.Command, _ []string, svc service.ContactService) error {
			c, err := svc.Add(cmd.Context(), name, phone, email, tag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Contact added (id %d)\n", c.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "contact name")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&tag, "tag", "", "free-form tag")
	return cmd
}

func newEditCmd(open openFunc) *cobra.Command {
	var name, phone, email, tag string
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Replace a contact's fields; unspecified flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(open, func(cmd *cobra.Command, args []string, svc service.ContactService) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := svc.Get(cmd.Context(), id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("contact %d not found", id)
				}
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("name") {
				c.Name = name
			}
			if flags.Changed("phone") {
				c.PhoneNumber = phone
			}
			if flags.Changed("email") {
				c.Email = email
			}
			if flags.Changed("tag") {
				c.Tag = tag
			}
			if err := svc.Update(cmd.Context(), c); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Contact updated")
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "contact name")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&tag, "tag", "", "free-form tag")
	return cmd
}

func newDeleteCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a contact",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(open, func(cmd *cobra.Command, args []string, svc service.ContactService) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := svc.Get(cmd.Context(), id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("contact %d not found", id)
				}
				return err
			}
			if err := svc.Delete(cmd.Context(), c); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Contact deleted")
			return nil
		}),
	}
}

// ---------------------------------------------------------------------------
// import / export / share
// ---------------------------------------------------------------------------

func newImportCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import contacts from a vCard file",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(open, func(cmd *cobra.Command, args []string, svc service.ContactService) error {
			f, err := os.Open(args[0])
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Failed to import VCF: %v\n", err)
				return errReported
			}
			defer f.Close()
			return reportImport(cmd.OutOrStdout(), func() (int, error) {
				return svc.ImportVCF(cmd.Context(), f)
			})
		}),
	}
}

func reportImport(out io.Writer, run func() (int, error)) error {
	n, err := run()
	if err != nil {
		fmt.Fprintf(out, "Failed to import VCF: %v\n", err)
		return errReported
	}
	fmt.Fprintf(out, "VCF imported: %d\n", n)
	return nil
}

func newExportCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "export [FILE]",
		Short: "Export all contacts to a vCard file (default " + defaultExportFile + ")",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(open, func(cmd *cobra.Command, args []string, svc service.ContactService) error {
			path := defaultExportFile
			if len(args) == 1 {
				path = args[0]
			}
			out := cmd.OutOrStdout()

			var buf bytes.Buffer
			n, err := svc.ExportVCF(cmd.Context(), &buf)
			if errors.Is(err, service.ErrNothingToExport) {
				fmt.Fprintln(out, "No contacts to export")
				return nil
			}
			if err == nil {
				err = writeFileAtomic(path, buf.Bytes())
			}
			if err != nil {
				fmt.Fprintf(out, "Failed to export VCF: %v\n", err)
				return errReported
			}
			fmt.Fprintf(out, "VCF exported: %d to %s\n", n, path)
			return nil
		}),
	}
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".phonelist-export-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func newShareCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "share",
		Short: "Add a contact from shared text ([Name]/[Mobile]/[Home] lines) read from stdin",
		Args:  cobra.NoArgs,
		RunE: withApp(open, func(cmd *cobra.Command, _ []string, svc service.ContactService) error {
			text, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			_, added, err := svc.AddFromSharedText(cmd.Context(), string(text))
			if err != nil {
				return err
			}
			if added {
				fmt.Fprintln(cmd.OutOrStdout(), "Contact added")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "No contact found in shared text")
			}
			return nil
		}),
	}
}

// ---------------------------------------------------------------------------
// backup / restore
// ---------------------------------------------------------------------------

func newBackupCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Export all contacts to the configured export storage",
		Args:  cobra.NoArgs,
		RunE: withApp(open, func(cmd *cobra.Command, _ []string, svc service.ContactService) error {
			out := cmd.OutOrStdout()
			res, err := svc.Backup(cmd.Context())
			switch {
			case errors.Is(err, service.ErrNothingToExport):
				fmt.Fprintln(out, "No contacts to export")
				return nil
			case err != nil:
				fmt.Fprintf(out, "Failed to export VCF: %v\n", err)
				return errReported
			}
			fmt.Fprintf(out, "VCF exported: %d to %s\n", res.Exported, res.URL)
			fmt.Fprintf(out, "Key: %s\n", res.Key)
			return nil
		}),
	}
}

func newRestoreCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "restore KEY",
		Short: "Import a backup from the configured export storage",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(open, func(cmd *cobra.Command, args []string, svc service.ContactService) error {
			return reportImport(cmd.OutOrStdout(), func() (int, error) {
				return svc.Restore(cmd.Context(), args[0])
			})
		}),
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gchange/internal/nglist"
	"github.com/sells-group/gchange/internal/ngmatch"
	"github.com/sells-group/gchange/internal/store"
)

var nglistCmd = &cobra.Command{
	Use:   "nglist",
	Short: "Manage client NG lists",
	Long:  "Commands for listing, viewing, importing and deleting NG lists.",
}

// -- nglist list --

var nglistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List selectable NG lists",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "format")
		if err != nil {
			return err
		}
		defer env.Close()

		names, err := env.Provider.List(ctx)
		if err != nil {
			return eris.Wrap(err, "nglist list")
		}
		printNGLists(os.Stdout, names)
		return nil
	},
}

// -- nglist show --

var nglistShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print an NG list as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "format")
		if err != nil {
			return err
		}
		defer env.Close()

		list, err := env.Provider.Load(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "nglist show")
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	},
}

// -- nglist import --

var nglistImportName string

var nglistImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an NG list file into the store",
	Long: `Parses an .xlsx, .csv or .yaml NG list and saves it in the configured
store, replacing any list with the same name. The name defaults to the
file name.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := initStore(ctx, "")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		name, list, err := importNGList(ctx, st, args[0], nglistImportName)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stderr, "imported %s: %d names, %d phones\n", name, len(list.Names), len(list.Phones))
		return nil
	},
}

// -- nglist delete --

var nglistDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete an NG list from the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := initStore(ctx, "")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return eris.Wrap(st.DeleteNGList(ctx, args[0]), "nglist delete")
	},
}

func init() {
	nglistImportCmd.Flags().StringVar(&nglistImportName, "name", "", "list name (default: file name)")

	nglistCmd.AddCommand(nglistListCmd)
	nglistCmd.AddCommand(nglistShowCmd)
	nglistCmd.AddCommand(nglistImportCmd)
	nglistCmd.AddCommand(nglistDeleteCmd)
	rootCmd.AddCommand(nglistCmd)
}

// importNGList parses path and saves it under name, or under the file
// name when name is empty.
func importNGList(ctx context.Context, st store.Store, path, name string) (string, ngmatch.List, error) {
	if name == "" {
		name = filepath.Base(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ngmatch.List{}, eris.Wrapf(err, "nglist import: read %s", path)
	}
	list, err := nglist.Parse(filepath.Base(path), data)
	if err != nil {
		return "", ngmatch.List{}, err
	}
	if err := st.SaveNGList(ctx, name, list); err != nil {
		return "", ngmatch.List{}, eris.Wrapf(err, "nglist import: save %q", name)
	}
	return name, list, nil
}

// printNGLists writes the selectable names, "なし" first.
func printNGLists(w io.Writer, names []string) {
	_, _ = fmt.Fprintln(w, nglist.None)
	for _, n := range names {
		_, _ = fmt.Fprintln(w, n)
	}
}

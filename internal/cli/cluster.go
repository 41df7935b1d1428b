package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/gpumon/internal/config"
	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/ui"
)

// AddClusterOptions holds options for the add-cluster command.
type AddClusterOptions struct {
	Hosts       []string
	DisplayName string
	User        string
	Force       bool
}

var (
	addOpts   AddClusterOptions
	removeYes bool
)

var (
	listClusterCmd = &cobra.Command{
		Use:     "list-clusters",
		Aliases: []string{"ls"},
		Short:   "List cluster files",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listClusters(cmd.OutOrStdout(), clusterStore())
		},
	}
	addClusterCmd = &cobra.Command{
		Use:   "add-cluster <name>",
		Short: "Create a cluster file",
		Long: `Create <config-dir>/<name>.yaml listing the hosts to monitor.

Hosts are SSH host-specs: an ssh_config alias, a hostname, user@host or
host:port. Without --host, an interactive form asks for them.

Examples:
  gpumon add-cluster lab --host gpu-node1 --host gpu-node2
  gpumon add-cluster a100 --host ml@10.0.0.5 --display-name "A100 Pool"
  gpumon add-cluster lab`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return addCluster(cmd.OutOrStdout(), clusterStore(), args[0], addOpts, ui.IsTerminal(os.Stdin))
		},
	}
	removeClusterCmd = &cobra.Command{
		Use:               "remove-cluster <name>",
		Aliases:           []string{"rm"},
		Short:             "Delete a cluster file",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeClusterNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return removeCluster(cmd.OutOrStdout(), clusterStore(), args[0], removeYes, ui.IsTerminal(os.Stdin))
		},
	}
)

func init() {
	addClusterCmd.Flags().StringArrayVar(&addOpts.Hosts, "host", nil, "host to monitor (repeatable)")
	addClusterCmd.Flags().StringVar(&addOpts.DisplayName, "display-name", "", "name shown in the dashboard title")
	addClusterCmd.Flags().StringVar(&addOpts.User, "user", "", "SSH user for hosts without an explicit user@")
	addClusterCmd.Flags().BoolVarP(&addOpts.Force, "force", "f", false, "overwrite an existing cluster file")

	removeClusterCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "don't ask for confirmation")

	rootCmd.AddCommand(listClusterCmd, addClusterCmd, removeClusterCmd)
}

// listClusters prints every cluster with its title and host count.
func listClusters(w io.Writer, store *config.Store) error {
	names, err := store.List()
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Fprintf(w, "No cluster files in %s\n", store.Dir)
		fmt.Fprintln(w, "Create one with: gpumon add-cluster <name> --host <host>")
		return nil
	}

	header := lipgloss.NewStyle().Bold(true)
	muted := lipgloss.NewStyle().Foreground(ui.ColorMuted)
	errStyle := lipgloss.NewStyle().Foreground(ui.ColorError)

	fmt.Fprintln(w, header.Render("Clusters in "+store.Dir))
	for _, name := range names {
		c, err := store.Load(name)
		if err != nil {
			fmt.Fprintf(w, "  %s %s %s\n", errStyle.Render(ui.SymbolFail), name, errStyle.Render(errors.Summary(err)))
			continue
		}
		fmt.Fprintf(w, "  %s %s %s\n", ui.SymbolOnline, name,
			muted.Render(fmt.Sprintf("(%s, %d host%s)", c.Title(), len(c.Hosts), plural(len(c.Hosts)))))
	}
	return nil
}

// addCluster writes a new cluster file. Without hosts it falls back to a
// form when interactive is true.
func addCluster(w io.Writer, store *config.Store, name string, opts AddClusterOptions, interactive bool) error {
	if err := config.ValidateName(name); err != nil {
		return err
	}

	if store.Exists(name) && !opts.Force {
		if !interactive {
			return errors.New(errors.ErrStore,
				fmt.Sprintf("Cluster '%s' already exists at %s", name, store.Path(name)),
				"Use --force to overwrite it")
		}
		overwrite, err := confirm(fmt.Sprintf("Cluster '%s' already exists. Overwrite?", name))
		if err != nil || !overwrite {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	c := config.DefaultCluster(name)
	c.DisplayName = opts.DisplayName
	c.User = opts.User
	c.Hosts = cleanHosts(opts.Hosts)

	if len(c.Hosts) == 0 {
		if !interactive {
			return errors.New(errors.ErrConfig,
				"No hosts given",
				"Pass hosts with --host, e.g. gpumon add-cluster "+name+" --host gpu-node1")
		}
		cancelled, err := promptCluster(c)
		if err != nil {
			return err
		}
		if cancelled {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	if strings.TrimSpace(c.DisplayName) == "" {
		c.DisplayName = name
	}
	if err := config.Validate(c); err != nil {
		return err
	}
	if err := store.Save(c); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s Saved cluster '%s' (%d host%s) to %s\n",
		ui.SymbolSuccess, name, len(c.Hosts), plural(len(c.Hosts)), store.Path(name))
	return nil
}

// removeCluster deletes a cluster file after confirmation.
func removeCluster(w io.Writer, store *config.Store, name string, yes, interactive bool) error {
	if err := config.ValidateName(name); err != nil {
		return err
	}
	if !store.Exists(name) {
		return errors.New(errors.ErrStore,
			fmt.Sprintf("Cluster '%s' not found in %s", name, store.Dir),
			"List available clusters with: gpumon list-clusters")
	}

	if !yes {
		if !interactive {
			return errors.New(errors.ErrStore,
				"Refusing to remove without confirmation",
				"Pass --yes to remove non-interactively")
		}
		ok, err := confirm(fmt.Sprintf("Remove cluster '%s' (%s)?", name, store.Path(name)))
		if err != nil || !ok {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	path := store.Path(name)
	if err := store.Remove(name); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s Removed cluster '%s' (%s)\n", ui.SymbolSuccess, name, path)
	return nil
}

// promptCluster asks for the display name and hosts.
func promptCluster(c *config.Cluster) (cancelled bool, err error) {
	displayName := c.DisplayName
	if displayName == "" {
		displayName = c.Name
	}
	var hostsText string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Display name").
				Description("Shown in the dashboard title").
				Value(&displayName),
			huh.NewText().
				Title("Hosts").
				Description("One per line: alias, hostname, user@host or host:port").
				Value(&hostsText).
				Validate(func(s string) error {
					if len(splitHosts(s)) == 0 {
						return fmt.Errorf("enter at least one host")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return true, nil
		}
		return false, errors.WrapWithCode(err, errors.ErrConfig, "Couldn't read cluster details", "Pass --host flags instead")
	}

	c.DisplayName = strings.TrimSpace(displayName)
	c.Hosts = splitHosts(hostsText)
	return false, nil
}

func confirm(title string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description("This cannot be undone").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

// splitHosts splits on newlines, commas and spaces.
func splitHosts(s string) []string {
	return cleanHosts(strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == ',' || r == ' ' || r == '\t' || r == '\r'
	}))
}

// cleanHosts trims entries and drops empties and repeats, keeping order.
func cleanHosts(hosts []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}

func completeClusterNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names, err := clusterStore().List()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var matches []string
	for _, n := range names {
		if strings.HasPrefix(n, toComplete) {
			matches = append(matches, n)
		}
	}
	return matches, cobra.ShellCompDirectiveNoFileComp
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

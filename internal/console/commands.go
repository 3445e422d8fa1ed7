package console

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"endpointd/pkg/server"
)

func (c *Console) buildCommands() *cobra.Command {
	root := &cobra.Command{
		Use:           "endpointd",
		Short:         "Manage the endpoint server",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.out)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show server state, bindings and cached adapters",
		Args:  cobra.NoArgs,
		RunE:  c.runStatus,
	}
	statusCmd.Flags().BoolVar(&c.jsonOut, "json", false, "Print the snapshot as JSON")

	root.AddCommand(
		&cobra.Command{
			Use:   "start [port]",
			Short: "Start the listener, replaying all registrations",
			Args:  cobra.MaximumNArgs(1),
			RunE:  c.runStart,
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the listener and clear all registrations",
			Args:  cobra.NoArgs,
			RunE:  c.runStop,
		},
		&cobra.Command{
			Use:   "restart [port]",
			Short: "Restart the listener, keeping registrations",
			Args:  cobra.MaximumNArgs(1),
			RunE:  c.runRestart,
		},
		&cobra.Command{
			Use:   "register <path> <instance>",
			Short: "Bind an instance at a context path",
			Args:  cobra.ExactArgs(2),
			RunE:  c.runRegister,
		},
		&cobra.Command{
			Use:   "unregister <path>",
			Short: "Remove the binding at a context path",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runUnregister,
		},
		statusCmd,
		&cobra.Command{
			Use:   "instances",
			Short: "List manifest instances and where they are bound",
			Args:  cobra.NoArgs,
			RunE:  c.runInstances,
		},
		&cobra.Command{
			Use:     "quit",
			Aliases: []string{"exit"},
			Short:   "Leave the console",
			Args:    cobra.NoArgs,
			Run:     func(*cobra.Command, []string) { c.quitting = true },
		},
	)
	return root
}

func parsePort(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	port, err := strconv.Atoi(args[0])
	if err != nil || port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", args[0])
	}
	return port, nil
}

func (c *Console) runStart(cmd *cobra.Command, args []string) error {
	port, err := parsePort(args, c.defaultPort)
	if err != nil {
		return err
	}
	if !c.srv.StartServer(port) {
		return fmt.Errorf("could not start on port %d (see log)", port)
	}
	cmd.Printf("Server running on port %d\n", c.srv.Port())
	return nil
}

func (c *Console) runStop(cmd *cobra.Command, _ []string) error {
	if !c.srv.StopServer() {
		cmd.Println("Server is not running")
		return nil
	}
	cmd.Println("Server stopped")
	return nil
}

func (c *Console) runRestart(cmd *cobra.Command, args []string) error {
	def := c.defaultPort
	if p := c.srv.Port(); p != 0 {
		def = p
	}
	port, err := parsePort(args, def)
	if err != nil {
		return err
	}
	if !c.srv.RestartServer(port) {
		return fmt.Errorf("could not restart on port %d (see log)", port)
	}
	cmd.Printf("Server restarted on port %d\n", c.srv.Port())
	return nil
}

func (c *Console) runRegister(cmd *cobra.Command, args []string) error {
	path, name := args[0], args[1]
	inst, ok := c.host.Instance(name)
	if !ok {
		return fmt.Errorf("unknown instance %q", name)
	}
	if err := c.srv.Register(path, inst); err != nil {
		cmd.Printf("Not registered: %v\n", err)
		return nil
	}
	cmd.Printf("Registered %s -> %s\n", path, name)
	return nil
}

func (c *Console) runUnregister(cmd *cobra.Command, args []string) error {
	if err := c.srv.Unregister(args[0]); err != nil {
		cmd.Printf("Not unregistered: %v\n", err)
		return nil
	}
	cmd.Printf("Unregistered %s\n", args[0])
	return nil
}

func (c *Console) runStatus(cmd *cobra.Command, _ []string) error {
	snap := c.srv.Snapshot()
	if c.jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	if snap.State == server.Stopped {
		cmd.Println("State: stopped")
	} else {
		cmd.Printf("State: %s on port %d\n", snap.State, snap.Port)
	}

	refs := make(map[string]int, len(snap.Adapters))
	for _, a := range snap.Adapters {
		refs[a.Instance] = a.Refs
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tINSTANCE\tREFS")
	for _, b := range snap.Bindings {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", b.Path, b.Instance, refs[b.Instance])
	}
	return tw.Flush()
}

func (c *Console) runInstances(cmd *cobra.Command, _ []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tPATHS")
	for _, info := range c.host.Instances() {
		paths := "-"
		if len(info.Paths) > 0 {
			paths = fmt.Sprint(info.Paths)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, info.Kind, paths)
	}
	return tw.Flush()
}

// Command exeio is a process supervisor: it exposes an HTTP control plane
// for starting, stopping, restarting and observing long-running or
// periodic child processes on a host.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "exeio",
		Short: "A process supervisor with an HTTP control plane",
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var flags ServeFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			v.SetEnvPrefix("exeio")
			v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			v.AutomaticEnv()
			bindServeFlags(v, cmd)

			flags.Host = v.GetString("host")
			flags.Port = v.GetInt("port")
			flags.APIKey = v.GetString("api-key")
			flags.DataDir = v.GetString("data-dir")
			flags.ConfigPath = v.GetString("config")

			// runServe's exit codes (1 = fatal startup, 2 = lock held) are
			// part of the supervisor's contract, so report them directly
			// rather than flattening everything to cobra's default exit 1.
			if code := runServe(flags); code != 0 {
				os.Exit(code)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().String("host", "127.0.0.1", "address to bind the HTTP control plane to")
	cmd.Flags().Int("port", 8080, "port to bind the HTTP control plane to")
	cmd.Flags().String("api-key", "", "API key required in the exeio-api-key header (random if omitted)")
	cmd.Flags().String("data-dir", "", "directory for the lock file and per-entry logs (default: OS-specific user data dir)")
	cmd.Flags().String("config", "", "path to the persisted entry list (default: OS-specific user config dir)")

	return cmd
}

func bindServeFlags(v *viper.Viper, cmd *cobra.Command) {
	for _, name := range []string{"host", "port", "api-key", "data-dir", "config"} {
		_ = v.BindPFlag(name, cmd.Flags().Lookup(name))
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

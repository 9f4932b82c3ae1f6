/*
Copyright © 2024 Dave Rawks <dave@rawks.io>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

//go:generate stringer -type=PT ../pkg/runtime/protocol.go

package cmd

import (
	"log"
	_ "net/http/pprof"
	"os"

	logs "github.com/appscode/go/log/golog"
	"github.com/appscode/go/runtime"
	gearmand "github.com/gearhulk/gearhulk/pkg/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var cfg gearmand.Config
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Gearman server",
	Long: `Start the Gearman server with the specified configuration.

The server will listen for job submissions from clients and dispatch
them to available workers. It includes a read-only HTTP monitoring API
(/status, /workers) and built-in Prometheus metrics (/metrics).

The server uses LevelDB to persist background jobs by default and runs a
periodic sweep for workers that exceed their CAN_DO_TIMEOUT. Scheduled job
submission (SUBMIT_JOB_SCHED / SUBMIT_JOB_EPOCH) is not supported.

Examples:
  # Start server with default settings
  gearhulk server

  # Start server on specific address
  gearhulk server --addr 0.0.0.0:4730

  # Start server with custom storage directory
  gearhulk server --storage-dir /var/lib/gearhulk

  # Start server with custom web interface address
  gearhulk server --web-addr :8080

  # Start server with verbose logging
  gearhulk server --addr 0.0.0.0:4730 --verbose 1`,
	PersistentPreRun: func(c *cobra.Command, args []string) {
		c.Flags().VisitAll(func(flag *pflag.Flag) {
			log.Printf("FLAG: --%s=%q", flag.Name, flag.Value)
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		logs.InitLogs()
		defer logs.FlushLogs()
		defer runtime.HandleCrash()
		if err := gearmand.NewServer(cfg).Start(); err != nil {
			log.Fatalf("gearhulk: server failed to start: %v", err)
		}
		select {}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	cfg = gearmand.DefaultConfig()

	// GNU-style flags with both short and long forms
	serverCmd.Flags().StringVarP(&cfg.ListenAddr, "addr", "a", cfg.ListenAddr, "listening address, such as 0.0.0.0:4730")
	serverCmd.Flags().StringVarP(&cfg.Storage, "storage-dir", "s", os.TempDir()+"/gearmand", "directory where LevelDB file is stored")
	serverCmd.Flags().StringVarP(&cfg.WebAddress, "web-addr", "w", cfg.WebAddress, "server HTTP API address")

	serverCmd.Flags().IntVarP(&cfg.ThreadCount, "threads", "t", cfg.ThreadCount, "number of I/O threads dispatching commands")
	serverCmd.Flags().IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "buffered depth of the inter-thread dispatch channel")
	serverCmd.Flags().IntVar(&cfg.WakeupCount, "wakeup-count", cfg.WakeupCount, "sleeping workers to notify per newly queued job")
	serverCmd.Flags().StringVar(&cfg.GracefulSignal, "graceful-signal", cfg.GracefulSignal, "OS signal that triggers a graceful shutdown")
	serverCmd.Flags().DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "how often to sweep for timed-out jobs (0 disables)")
	serverCmd.Flags().DurationVar(&cfg.ProtocolTimeout, "protocol-timeout", cfg.ProtocolTimeout, "idle read timeout per connection (0 disables)")

	// Add verbose flag for logging
	serverCmd.Flags().IntVarP(&cfg.LogVerbosity, "verbose", "v", cfg.LogVerbosity, "log verbosity level")
}

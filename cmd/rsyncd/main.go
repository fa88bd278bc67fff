// Command rsyncd is the daemon binary: it loads a module file, listens
// on a TCP port, and hands each accepted connection to
// internal/rsyncd.Accept. Per spec.md's exclusion of full rsyncd.conf
// parsing from the core, the module file here is the Go-native YAML
// form internal/rsyncd.LoadConfig understands, not upstream's own
// config syntax.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/synctree/rsyncd/internal/errkind"
	"github.com/synctree/rsyncd/internal/logging"
	"github.com/synctree/rsyncd/internal/rsyncd"
	"github.com/synctree/rsyncd/internal/transport"
)

var daemonConfiguration struct {
	ConfigPath string
	Port       uint16
	Verbose    bool
}

var rootCommand = &cobra.Command{
	Use:   "rsyncd [flags]",
	Short: "Serve rsync modules over the rsync wire protocol",
	RunE: func(command *cobra.Command, arguments []string) error {
		log := logging.RootLogger.WithRole(string(errkind.RoleDaemon))
		if daemonConfiguration.Verbose {
			log = log.WithLevel(logging.LevelDebug)
		}

		config, err := rsyncd.LoadConfig(daemonConfiguration.ConfigPath)
		if err != nil {
			return err
		}

		port := daemonConfiguration.Port
		if port == 0 {
			port = transport.DefaultDaemonPort
		}

		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return errkind.New(errkind.KindSocketIO, errkind.RoleDaemon, "listen", err)
		}
		defer listener.Close()
		log.Info("rsyncd: serving %d module(s) on port %d", len(config.Modules), port)

		return serve(listener, config, log)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// serve accepts connections until Accept returns any error (the
// listener closing included), dispatching each to its own goroutine so a slow
// or stuck client can't stall the rest, mirroring the teacher's own
// accept-loop-per-connection pattern used by its agent listener.
func serve(listener net.Listener, config rsyncd.Config, log *logging.Logger) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return errkind.New(errkind.KindSocketIO, errkind.RoleDaemon, "accept", err)
		}
		go handleConnection(conn, config, log)
	}
}

func handleConnection(conn net.Conn, config rsyncd.Config, log *logging.Logger) {
	defer conn.Close()

	negotiated, err := rsyncd.Accept(conn, config, log)
	if err != nil {
		log.Error(err, "", 0)
		return
	}
	if negotiated == nil {
		// A module listing was served; the connection is already closed out.
		return
	}

	log.Info("rsyncd: serving module %q to %s (protocol %d)",
		negotiated.Module.Name, conn.RemoteAddr(), negotiated.Session.Version)

	stats, err := rsyncd.Serve(negotiated)
	if err != nil {
		log.Error(err, negotiated.Module.Name, 0)
		return
	}

	snapshot := stats.Snapshot()
	log.Info("rsyncd: served module %q to %s: %d entries, %d transferred",
		negotiated.Module.Name, conn.RemoteAddr(), snapshot.FilesConsidered, snapshot.FilesTransferred)
}

func init() {
	flags := rootCommand.Flags()
	flags.StringVarP(&daemonConfiguration.ConfigPath, "config", "c", "", "Path to the module file")
	flags.Uint16VarP(&daemonConfiguration.Port, "port", "p", 0, "TCP port to listen on (default 873)")
	flags.BoolVarP(&daemonConfiguration.Verbose, "verbose", "v", false, "Increase logging verbosity")
	rootCommand.MarkFlagRequired("config")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(errkind.ExitCode(err))
	}
}

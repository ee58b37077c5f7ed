package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/pathstore/internal/browsefs"
	"github.com/agentic-research/pathstore/internal/engine"
	"github.com/agentic-research/pathstore/internal/kvstore"
)

var mountDataPath string

func init() {
	mountCmd.Flags().StringVarP(&mountDataPath, "data", "d", "", "path to the SQLite data file (\":memory:\" for an ephemeral store)")
}

var mountCmd = &cobra.Command{
	Use:   "mount [mountpoint]",
	Short: "mount the store's document tree read-only, via NFS, for browsing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mountpoint := args[0]

		root, err := loadSchema(schemaPath)
		if err != nil {
			return err
		}

		dataPath := mountDataPath
		if dataPath == "" {
			dataPath = ":memory:"
		}
		kv, err := kvstore.Open(dataPath)
		if err != nil {
			return fmt.Errorf("open data store: %w", err)
		}
		defer kv.Close()

		eng := engine.New(kv, root)
		fs := browsefs.New(eng, root)

		nfsSrv, err := browsefs.NewServer(fs)
		if err != nil {
			return fmt.Errorf("start nfs server: %w", err)
		}
		defer nfsSrv.Close()

		if err := browsefs.Mount(nfsSrv.Port(), mountpoint); err != nil {
			return fmt.Errorf("mount: %w", err)
		}
		log.Printf("mount: browsing at %s (read-only)", mountpoint)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		log.Printf("mount: unmounting %s", mountpoint)
		return browsefs.Unmount(mountpoint)
	},
}

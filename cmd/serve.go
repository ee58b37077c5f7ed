package cmd

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/agentic-research/pathstore/internal/engine"
	"github.com/agentic-research/pathstore/internal/kvstore"
	"github.com/agentic-research/pathstore/internal/permission"
	"github.com/agentic-research/pathstore/internal/session"
)

var (
	serveDataPath string
	serveAddr     string
	servePermPath string
	serveAck      bool
)

func init() {
	serveCmd.Flags().StringVarP(&serveDataPath, "data", "d", "", "path to the SQLite data file (\":memory:\" for an ephemeral store)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":7070", "address to listen on")
	serveCmd.Flags().StringVar(&servePermPath, "permission", "", "path to an HCL permission rule file (default: allow everything)")
	serveCmd.Flags().BoolVar(&serveAck, "ack-subscribe", false, "send an immediate acknowledgement when a subscription is registered")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the wire contract over a websocket listener",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := loadSchema(schemaPath)
		if err != nil {
			return err
		}

		dataPath := serveDataPath
		if dataPath == "" {
			dataPath = ":memory:"
		}
		kv, err := kvstore.Open(dataPath)
		if err != nil {
			return fmt.Errorf("open data store: %w", err)
		}
		defer kv.Close()

		eng := engine.New(kv, root)

		perm := session.AllowAll
		if servePermPath != "" {
			src, err := os.ReadFile(servePermPath)
			if err != nil {
				return fmt.Errorf("read permission rules: %w", err)
			}
			perm, err = permission.Compile(src, servePermPath)
			if err != nil {
				return fmt.Errorf("compile permission rules: %w", err)
			}
		}

		cfg := session.Config{AckSubscribe: serveAck, Permission: perm}
		upgrader := websocket.Upgrader{}

		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				log.Printf("serve: upgrade: %v", err)
				return
			}
			sess := session.New(conn, eng, kv, cfg)
			if err := sess.Run(r.Context()); err != nil {
				log.Printf("serve: session ended: %v", err)
			}
		})

		srv := &http.Server{Addr: serveAddr, Handler: mux}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		log.Printf("serve: listening on %s", serveAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("serve: %w", err)
			}
		case <-sigCh:
			log.Printf("serve: shutting down")
			return srv.Close()
		}
		return nil
	},
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/baekya-protocol/baekya/internal/api"
	"github.com/baekya-protocol/baekya/internal/app/issuance"
	"github.com/baekya-protocol/baekya/internal/app/protocol"
	"github.com/baekya-protocol/baekya/internal/domain"
	"github.com/baekya-protocol/baekya/internal/infra/logger"
	"github.com/baekya-protocol/baekya/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("no-issuance", false, "Do not run the periodic P-token issuance")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the protocol node",
	Long: `Open the SQLite store, restore protocol state, create the default DAOs
and serve the operational API until interrupted.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.NewSublogger("serve")

	db, err := sqlite.Open(conf.DataDir())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	svc := protocol.New(conf.Protocol(), nil, db)
	if err := svc.AttachStore(db); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}

	if conf.Bootstrap.DefaultDAOs {
		daos, err := svc.Bootstrap(ctx)
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		log.WithField("daos", len(daos)).Info("Default DAOs ready")

		if op := conf.Bootstrap.InitialOperator; op != "" {
			_, err := svc.SetInitialOperator(ctx, op)
			switch {
			case errors.Is(err, domain.ErrInvalidStateTransition):
				log.Debug("Initial operator already set")
			case err != nil:
				return fmt.Errorf("initial operator: %w", err)
			default:
				log.WithField("operator", op).Info("Initial operator set")
			}
		}
	}

	noIssuance, _ := cmd.Flags().GetBool("no-issuance")
	if conf.Issuance.Enabled && !noIssuance {
		sc, err := conf.IssuanceSchedule()
		if err != nil {
			return err
		}
		sched, err := issuance.New(sc, svc)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	server := api.NewServer(svc, Version)
	if conf.API.Metrics {
		server.EnableMetrics()
	}
	httpServer := &http.Server{
		Addr:              conf.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": httpServer.Addr, "version": Version}).Info("API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("API shutdown")
	}
	log.Info("Node stopped")
	return nil
}

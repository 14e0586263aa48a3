package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/fpv-racedash/log"
	"github.com/mpapenbr/fpv-racedash/pkg/cmd/common"
	"github.com/mpapenbr/fpv-racedash/pkg/config"
	"github.com/mpapenbr/fpv-racedash/pkg/db/postgres"
	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/repository/event"
	"github.com/mpapenbr/fpv-racedash/pkg/repository/records"
	"github.com/mpapenbr/fpv-racedash/pkg/store/memory"
	"github.com/mpapenbr/fpv-racedash/pkg/store/natskv"
	"github.com/mpapenbr/fpv-racedash/pkg/utils"
)

var (
	target    string
	eventName string
)

func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "writes the records of a snapshot file into a record store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := common.SetupLoggers(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runImport(ctx)
		},
	}
	cmd.Flags().StringVar(&config.SnapshotFile, "snapshot", "",
		"JSON file with the records of an event")
	cmd.Flags().StringVar(&target, "target", "postgres",
		"record store to write to (nats, postgres)")
	cmd.Flags().StringVar(&config.Event, "event", "",
		"key of the event")
	cmd.Flags().StringVar(&eventName, "name", "",
		"name of the event if it is created (postgres)")
	cmd.Flags().StringVar(&config.NatsURL, "nats-url", nats.DefaultURL,
		"URL of the NATS server")
	cmd.Flags().StringVar(&config.NatsBucket, "nats-bucket", natskv.DefaultBucket,
		"JetStream KV bucket holding the records")
	_ = cmd.MarkFlagRequired("snapshot")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func runImport(ctx context.Context) error {
	r, err := memory.LoadFile(config.SnapshotFile)
	if err != nil {
		return err
	}
	switch target {
	case "nats":
		return importNats(ctx, r)
	case "postgres":
		return importPostgres(ctx, r)
	}
	return fmt.Errorf("unknown target %q", target)
}

func importNats(ctx context.Context, r model.Records) error {
	if err := common.WaitForServices(utils.ExtractFromNatsURL(config.NatsURL)); err != nil {
		return err
	}
	conn, err := nats.Connect(config.NatsURL)
	if err != nil {
		return err
	}
	defer conn.Close()
	kv, err := natskv.OpenBucket(ctx, conn, config.NatsBucket)
	if err != nil {
		return err
	}
	n, err := natskv.NewPublisher(kv, config.Event).PublishAll(ctx, r)
	if err != nil {
		return err
	}
	log.Info("records published",
		log.String("bucket", config.NatsBucket),
		log.String("event", config.Event),
		log.Int("entries", n))
	return nil
}

func importPostgres(ctx context.Context, r model.Records) error {
	if err := common.WaitForServices(utils.ExtractFromDBURL(config.DB)); err != nil {
		return err
	}
	pool, err := postgres.InitWithUrl(config.DB)
	if err != nil {
		return err
	}
	defer pool.Close()
	return Store(ctx, pool, config.Event, eventName, r)
}

// Store replaces the records of the event with the given key. The event is
// created if it does not exist.
//
//nolint:whitespace // editor/linter issue
func Store(
	ctx context.Context,
	pool *pgxpool.Pool,
	key, name string,
	r model.Records,
) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		e, err := event.LoadByKey(ctx, tx, key)
		if errors.Is(err, event.ErrNotFound) {
			e = &event.Event{Key: key, Name: name}
			if err = event.Create(ctx, tx, e); err == nil {
				log.Info("event created", log.String("key", key), log.String("id", e.ID.String()))
			}
		}
		if err != nil {
			return err
		}
		if err := records.Replace(ctx, tx, e.ID, r); err != nil {
			return err
		}
		log.Info("records stored",
			log.String("event", key),
			log.Int("races", len(r.Races)),
			log.Int("laps", len(r.Laps)))
		return nil
	})
}

package migrate

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/fpv-racedash/log"
	"github.com/mpapenbr/fpv-racedash/pkg/cmd/common"
	"github.com/mpapenbr/fpv-racedash/pkg/config"
	dbMigrate "github.com/mpapenbr/fpv-racedash/pkg/db/migrate"
	"github.com/mpapenbr/fpv-racedash/pkg/utils"
)

var down bool

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "performs database migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := common.SetupLoggers(); err != nil {
				return err
			}
			return startMigration()
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "revert all migrations")
	return cmd
}

func startMigration() error {
	if err := common.WaitForServices(utils.ExtractFromDBURL(config.DB)); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	dbURL := prepareURLForDB(config.DB)
	if down {
		log.Info("Reverting all migrations")
		if err := dbMigrate.MigrateDown(dbURL); err != nil {
			return err
		}
	} else if err := dbMigrate.MigrateDb(dbURL); err != nil {
		return err
	}
	version, dirty, err := dbMigrate.Version(dbURL)
	if err != nil {
		return err
	}
	log.Info("Schema version", log.Uint("version", version), log.Bool("dirty", dirty))
	return nil
}

func prepareURLForDB(url string) string {
	options := "sslmode=disable"
	if strings.Contains(url, "sslmode=") {
		return url
	}
	if strings.Contains(url, "?") {
		return fmt.Sprintf("%s&%s", url, options)
	}
	return fmt.Sprintf("%s?%s", url, options)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/camden-git/facebench/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema and seed the models",
	Long:  `Creates any missing tables and the ArcFace, Facenet and Dlib model rows. Running it again changes nothing.`,
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	store, closeDB, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	list, err := store.ListModels(cmd.Context())
	if err != nil {
		return err
	}
	target := cfg.DatabasePath
	if cfg.DatabaseDriver == config.DriverMySQL {
		target = "mysql"
	}
	fmt.Printf("Database ready (%s), %d models:\n", target, len(list))
	for _, m := range list {
		fmt.Printf("  %d. %s\n", m.ID, m.Name)
	}
	return nil
}

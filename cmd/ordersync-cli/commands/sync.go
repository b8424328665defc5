package commands

import (
	"fmt"
	"os"
	"time"

	"ordersync/lib/configutil"
	"ordersync/lib/renderer/chromedriver"
	"ordersync/lib/scrapers/instacart"
	"ordersync/lib/serviceutil"
	"ordersync/lib/sqliteutil"
	"ordersync/services/ordersync"
	"ordersync/services/ordersync/db"

	"github.com/spf13/cobra"
)

type Config struct {
	Dataset         string `json:"dataset"`
	PaceMinSeconds  int    `json:"pace_min_seconds"`
	PaceMaxSeconds  int    `json:"pace_max_seconds"`
	Headless        bool   `json:"headless"`
	Checkpoint      bool   `json:"checkpoint"`
	PhotoDir        string `json:"photo_dir"`
	JournalDb       string `json:"journal_db"`
	AccountUrl      string `json:"account_url"`
	OrdersUrl       string `json:"orders_url"`
	BrowserDataDir  string `json:"browser_data_dir"`
}

var (
	syncFile     *string
	syncAfter    *string
	syncHeadless *bool
)

func init() {
	syncFile = syncCmd.Flags().StringP("file", "f", "", "Dataset path, overrides the config.")
	syncAfter = syncCmd.Flags().String("after", "", "Only sync orders strictly after this time (2006-01-02 15:04). Requires an empty dataset.")
	syncHeadless = syncCmd.Flags().Bool("headless", false, "Run the browser without a window. Manual login is impossible in this mode.")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync [--file <path/to/orders.json>] [--after <datetime>]",
	Short: "Pulls new orders into the dataset, oldest first.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadRecursively[Config]("ordersync.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		if cfg.Dataset == "" {
			cfg.Dataset = "orders.json"
		}
		if *syncFile != "" {
			cfg.Dataset = *syncFile
		}
		headless := cfg.Headless || *syncHeadless

		opts := ordersync.Options{
			DatasetPath: cfg.Dataset,
			Cursor:      *syncAfter,
			PaceMin:     time.Duration(cfg.PaceMinSeconds) * time.Second,
			PaceMax:     time.Duration(cfg.PaceMaxSeconds) * time.Second,
			Checkpoint:  cfg.Checkpoint,
			PhotoDir:    cfg.PhotoDir,
			Client: instacart.ClientOptions{
				AccountURL:     cfg.AccountUrl,
				OrdersURL:      cfg.OrdersUrl,
				CredentialHint: os.Getenv("INSTACART_EMAIL"),
				Interactive:    !headless,
				OnAuthState: func(state instacart.AuthState) {
					if state == instacart.AwaitingManualAuth {
						fmt.Println("Complete the login in the browser window. Waiting...")
					}
				},
			},
		}

		if cfg.JournalDb != "" {
			journal, err := sqliteutil.OpenDB(db.Schema, cfg.JournalDb)
			if err != nil {
				serviceutil.Fatal("failed to open journal db", err)
			}
			defer journal.Close()
			opts.Journal = journal
		}

		dataDir := cfg.BrowserDataDir
		if dataDir == "" {
			dataDir = chromedriver.DefaultUserDataDir()
		}
		factory := chromedriver.NewFactory(chromedriver.Options{
			Headless:    headless,
			UserDataDir: dataDir,
		})

		service := ordersync.NewService(factory, opts)
		result, err := service.Run(cmd.Context())
		if err != nil {
			serviceutil.Fatal("sync failed", err)
		}
		fmt.Printf("Dataset now holds %d orders: %s\n", len(result), cfg.Dataset)
	},
}

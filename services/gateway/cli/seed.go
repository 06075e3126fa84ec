package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/NooberThanYall/fixo-crm/internal/bootstrap"
	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

var seedCmd = &cobra.Command{
	Use:   "seed FILE",
	Short: "Load tenants' field catalogs and products from a YAML file",
	Long: `Load development data into the configured store.

  tenants:
    - id: u1
      fields: [color, size]
      products:
        - name: Widget
          price: 80
          stock: 12
          color: red`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

// SeedFile is the YAML layout read by the seed command.
type SeedFile struct {
	Tenants []SeedTenant `yaml:"tenants"`
}

// SeedTenant is one tenant's catalog and products.
type SeedTenant struct {
	ID       string          `yaml:"id"`
	Fields   []string        `yaml:"fields"`
	Products []domain.Fields `yaml:"products"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := bootstrap.BuildLogger(viper.GetString("log_level"), serviceName, "")
	stores, err := bootstrap.OpenStores(ctx, bootstrap.StoreConfig{
		Driver:      viper.GetString("store_driver"),
		PostgresDSN: viper.GetString("postgres_dsn"),
		SQLitePath:  viper.GetString("sqlite_path"),
	}, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	return seed(ctx, stores, f, cmd.OutOrStdout())
}

// seed decodes r and writes every tenant's catalog and products.
func seed(ctx context.Context, stores *bootstrap.Stores, r io.Reader, out io.Writer) error {
	var file SeedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}
	for _, t := range file.Tenants {
		if t.ID == "" {
			return fmt.Errorf("seed tenant without id")
		}
		if err := stores.SetFields(ctx, t.ID, t.Fields); err != nil {
			return err
		}
		for i, p := range t.Products {
			if _, err := stores.Records.Create(ctx, t.ID, p); err != nil {
				return fmt.Errorf("tenant %s product %d: %w", t.ID, i, err)
			}
		}
		fmt.Fprintf(out, "seeded %s: %d field(s), %d product(s)\n", t.ID, len(t.Fields), len(t.Products))
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jchantrell/tqarc/internal/database"
)

var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Query the catalog database from the command line",
	Long: `Query runs SQL against the catalog built by index, lists its tables, shows
a table schema, or searches entries by path or logical asset path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		listTables, err := cmd.Flags().GetBool("tables")
		if err != nil {
			return fmt.Errorf("failed to get tables flag: %w", err)
		}
		schemaTable, err := cmd.Flags().GetString("schema")
		if err != nil {
			return fmt.Errorf("failed to get schema flag: %w", err)
		}
		find, err := cmd.Flags().GetString("find")
		if err != nil {
			return fmt.Errorf("failed to get find flag: %w", err)
		}
		asset, err := cmd.Flags().GetString("asset")
		if err != nil {
			return fmt.Errorf("failed to get asset flag: %w", err)
		}
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return fmt.Errorf("failed to get limit flag: %w", err)
		}

		slog.Debug("Query parameters",
			"database", cfg.Database,
			"list-tables", listTables,
			"schema", schemaTable,
			"find", find,
			"asset", asset)

		db, err := database.NewDatabase(database.DefaultDatabaseOptions(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		if find != "" || asset != "" {
			if err := requireCatalog(ctx, db); err != nil {
				return err
			}
		}

		switch {
		case listTables:
			tables, err := db.Tables(ctx)
			if err != nil {
				return fmt.Errorf("listing tables: %w", err)
			}
			fmt.Println("Available tables:")
			for _, t := range tables {
				fmt.Printf("  %s\n", t)
			}
			return nil

		case schemaTable != "":
			return printSchema(ctx, db, schemaTable)

		case find != "":
			entries, err := db.FindEntries(ctx, find, limit)
			if err != nil {
				return fmt.Errorf("finding entries: %w", err)
			}
			printCatalogEntries(entries)
			return nil

		case asset != "":
			entries, err := db.LookupAsset(ctx, asset)
			if err != nil {
				return fmt.Errorf("looking up asset: %w", err)
			}
			if len(entries) == 0 {
				return fmt.Errorf("asset %s not cataloged", asset)
			}
			printCatalogEntries(entries)
			return nil

		case len(args) > 0:
			return runSQL(ctx, db, args[0])
		}

		return fmt.Errorf("no query provided, use --tables, --schema <table>, --find <text> or --asset <path>")
	},
}

// requireCatalog fails with a hint when db has not been filled by index.
func requireCatalog(ctx context.Context, db *database.Database) error {
	ok, err := db.HasCatalog(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s has no catalog, run tqarc index first", db.Path())
	}
	return nil
}

func printCatalogEntries(entries []database.CatalogEntry) {
	fmt.Printf("%-32s %6s %-56s %12s %5s %10s\n", "Archive", "Index", "Path", "Size", "Parts", "Key")
	fmt.Println(strings.Repeat("-", 126))
	for _, e := range entries {
		fmt.Printf("%-32s %6d %-56s %12d %5d %08x\n", e.Archive, e.Index, e.Path, e.RealSize, e.NumParts, e.AssetKey)
	}
	fmt.Printf("\n%d entries\n", len(entries))
}

func printSchema(ctx context.Context, db *database.Database, table string) error {
	rows, err := db.Query(ctx, `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("getting schema for table %s: %w", table, err)
	}
	defer rows.Close()

	fmt.Printf("Schema for table '%s':\n", table)
	fmt.Printf("%-24s %-10s %-8s %-24s %-7s\n", "Column", "Type", "NotNull", "Default", "Primary")
	fmt.Println(strings.Repeat("-", 77))

	var n int
	for rows.Next() {
		var (
			name, dataType string
			notNull, pk    int
			defaultValue   any
		)
		if err := rows.Scan(&name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return fmt.Errorf("scanning schema row: %w", err)
		}

		defaultStr := "NULL"
		if defaultValue != nil {
			defaultStr = fmt.Sprintf("%v", defaultValue)
		}
		fmt.Printf("%-24s %-10s %-8s %-24s %-7s\n", name, dataType, yesNo(notNull != 0), defaultStr, yesNo(pk != 0))
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating schema: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no such table: %s", table)
	}
	return nil
}

func runSQL(ctx context.Context, db *database.Database, query string) error {
	slog.Debug("Executing SQL query", "query", query)

	rows, err := db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("getting column names: %w", err)
	}

	fmt.Println(strings.Join(columns, "\t"))
	seps := make([]string, len(columns))
	for i, col := range columns {
		seps[i] = strings.Repeat("-", len(col))
	}
	fmt.Println(strings.Join(seps, "\t"))

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scanning row: %w", err)
		}
		cells := make([]string, len(values))
		for i, v := range values {
			switch v := v.(type) {
			case nil:
				cells[i] = "NULL"
			case []byte:
				cells[i] = string(v)
			default:
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Println(strings.Join(cells, "\t"))
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rows: %w", err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().Bool("tables", false, "List available tables")
	queryCmd.Flags().String("schema", "", "Show schema for specified table")
	queryCmd.Flags().String("find", "", "Find entries whose path contains text")
	queryCmd.Flags().String("asset", "", "Look up entries by logical asset path")
	queryCmd.Flags().Int("limit", 100, "Maximum entries returned by --find (0 = no limit)")
}

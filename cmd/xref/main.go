package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/maloquacious/semver"
	"github.com/spf13/cobra"

	"github.com/maloquacious/xrefstore/internal/logger"
	"github.com/maloquacious/xrefstore/internal/store"
	"github.com/maloquacious/xrefstore/internal/store/sqlite"
)

var (
	version = semver.Version{Minor: 1, PreRelease: "alpha", Build: semver.Commit()}
)

var (
	dbPath     string
	tableName  string
	verbose    bool
	format     string
	column     string
	both       bool
	batchBytes int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "xref",
		Short: "Disk-backed bidirectional cross-reference store",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", format)
			}
			logger.Default.SetDebug(verbose)
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", store.DefaultDBFile, "path to the database file")
	rootCmd.PersistentFlags().StringVar(&tableName, "table", sqlite.DefaultTable, "association table name")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&format, "format", "text", "output format (text|json)")

	loadCmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Bulk-load identifier pairs from a mapping dump (gzip-aware)",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoad,
	}
	loadCmd.Flags().IntVar(&batchBytes, "batch-bytes", sqlite.DefaultBatchBytes, "input bytes per load round")

	lookupCmd := &cobra.Command{
		Use:   "lookup KEY",
		Short: "Look up the values associated with a key",
		Args:  cobra.ExactArgs(1),
		RunE:  runLookup,
	}
	lookupCmd.Flags().StringVar(&column, "column", "", "pin the key to one column (a|b); default tries both")

	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Stream every stored pair to stdout",
		RunE:  runDump,
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Report row count and file size",
		RunE:  runStats,
	}

	removeCmd := &cobra.Command{
		Use:   "remove VALUE",
		Short: "Remove rows matching a value",
		Args:  cobra.ExactArgs(1),
		RunE:  runRemove,
	}
	removeCmd.Flags().StringVar(&column, "column", "", "restrict removal to one column (a|b)")
	removeCmd.Flags().BoolVar(&both, "both", false, "remove rows where the value occurs in either column")

	wipeCmd := &cobra.Command{
		Use:   "wipe",
		Short: "Reset the table to empty, keeping the file",
		RunE:  runWipe,
	}

	destroyCmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete the database file entirely",
		RunE:  runDestroy,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.String())
		},
	}

	rootCmd.AddCommand(loadCmd, lookupCmd, dumpCmd, statsCmd, removeCmd, wipeCmd, destroyCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveDBPath maps the --db flag to a database file path. A directory
// is resolved to the default database file inside it.
func resolveDBPath() string {
	if info, err := os.Stat(dbPath); err == nil && info.IsDir() {
		return store.GetDBPath(dbPath)
	}
	return dbPath
}

// requireDBPath resolves the --db flag for read-only commands, failing
// early when no database exists rather than creating an empty one.
func requireDBPath() (string, error) {
	if info, err := os.Stat(dbPath); err == nil && info.IsDir() {
		exists, err := store.CheckExists(dbPath)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", fmt.Errorf("no database at %s", store.GetDBPath(dbPath))
		}
		return store.GetDBPath(dbPath), nil
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return "", fmt.Errorf("no database at %s", dbPath)
	}
	return dbPath, nil
}

// openStore constructs and opens the store at path for the configured
// table. Callers are responsible for Close.
func openStore(path string) (*sqlite.Store, error) {
	opts := []sqlite.Option{sqlite.WithTable(tableName)}
	if batchBytes > 0 {
		opts = append(opts, sqlite.WithBatchBytes(batchBytes))
	}
	s, err := sqlite.New(path, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Open(); err != nil {
		return nil, err
	}
	return s, nil
}

// openInput opens the mapping dump, transparently decompressing gzip.
func openInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip input: %w", err)
	}
	return &gzipFile{zr: zr, f: f}, nil
}

// gzipFile closes both the decompressor and the underlying file.
type gzipFile struct {
	zr *gzip.Reader
	f  *os.File
}

func (g *gzipFile) Read(p []byte) (int, error) { return g.zr.Read(p) }

func (g *gzipFile) Close() error {
	if err := g.zr.Close(); err != nil {
		g.f.Close()
		return err
	}
	return g.f.Close()
}

func runLoad(cmd *cobra.Command, args []string) error {
	src, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer src.Close()

	path := resolveDBPath()
	s, err := openStore(path)
	if err != nil {
		return err
	}
	defer s.Close()

	logger.Default.Info("loading %s into %s (table %s)", args[0], path, tableName)
	progress := func(inserted int64) {
		logger.Default.Debug("inserted %s rows", humanize.Comma(inserted))
	}

	total, err := s.Populate(cmd.Context(), src, nil, progress)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	logger.Default.Info("loaded %s rows, indices built", humanize.Comma(total))
	return nil
}

func runLookup(cmd *cobra.Command, args []string) error {
	path, err := requireDBPath()
	if err != nil {
		return err
	}
	s, err := openStore(path)
	if err != nil {
		return err
	}
	defer s.Close()

	var result store.Set
	if column == "" {
		result, err = s.Lookup(cmd.Context(), args[0])
	} else {
		col := store.Column(column)
		if !col.Valid() {
			return fmt.Errorf("invalid column %q: must be a or b", column)
		}
		result, err = s.LookupOne(cmd.Context(), args[0], col)
	}
	if err != nil {
		return err
	}

	if format == "json" {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"key":    args[0],
			"values": result.Values(),
		})
	}
	for _, v := range result.Values() {
		fmt.Println(v)
	}
	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	path, err := requireDBPath()
	if err != nil {
		return err
	}
	s, err := openStore(path)
	if err != nil {
		return err
	}
	defer s.Close()

	enc := json.NewEncoder(os.Stdout)
	for p, err := range s.All(cmd.Context()) {
		if err != nil {
			return err
		}
		if format == "json" {
			if err := enc.Encode(map[string]string{"a": p.A, "b": p.B}); err != nil {
				return err
			}
			continue
		}
		fmt.Printf("%s\t%s\n", p.A, p.B)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	path, err := requireDBPath()
	if err != nil {
		return err
	}
	s, err := openStore(path)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.Len(cmd.Context())
	if err != nil {
		return err
	}
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	if format == "json" {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"db":    path,
			"table": tableName,
			"rows":  n,
			"bytes": size,
		})
	}
	fmt.Printf("db:    %s\n", path)
	fmt.Printf("table: %s\n", tableName)
	fmt.Printf("rows:  %s\n", humanize.Comma(n))
	fmt.Printf("size:  %s\n", humanize.Bytes(uint64(size)))
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	if both == (column != "") {
		return fmt.Errorf("specify exactly one of --column or --both")
	}

	path, err := requireDBPath()
	if err != nil {
		return err
	}
	s, err := openStore(path)
	if err != nil {
		return err
	}
	defer s.Close()

	if both {
		return s.RemoveOneBoth(cmd.Context(), args[0])
	}
	col := store.Column(column)
	if !col.Valid() {
		return fmt.Errorf("invalid column %q: must be a or b", column)
	}
	return s.RemoveOne(cmd.Context(), args[0], col)
}

func runWipe(cmd *cobra.Command, args []string) error {
	path, err := requireDBPath()
	if err != nil {
		return err
	}
	s, err := openStore(path)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Wipe(cmd.Context()); err != nil {
		return err
	}
	logger.Default.Info("table %s wiped", tableName)
	return nil
}

func runDestroy(cmd *cobra.Command, args []string) error {
	path := resolveDBPath()
	s, err := sqlite.New(path, sqlite.WithTable(tableName))
	if err != nil {
		return err
	}
	if err := s.DeleteDatabase(); err != nil {
		return err
	}
	logger.Default.Info("database %s deleted", path)
	return nil
}

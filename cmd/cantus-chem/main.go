// Command cantus-chem is the CLI for the chemistry knowledge engine.
// It resolves formulas, reports derived properties, and manages the
// reference table datasets.
package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/sxyu/cantus-chem/core/chemdata"
	"github.com/sxyu/cantus-chem/core/resolve"
	"github.com/sxyu/cantus-chem/core/sqlite"
	"github.com/sxyu/cantus-chem/internal/api"
	"github.com/sxyu/cantus-chem/internal/logging"
	"github.com/sxyu/cantus-chem/internal/server"
	"github.com/sxyu/cantus-chem/internal/tableload"
)

const version = "0.3.0"

// CLI defines the command-line interface for cantus-chem.
var CLI struct {
	// Global flags
	TablesPath string `name:"tables" help:"Path to an alternate dataset file (JSON, XML or SQLite)" type:"path"`
	LogLevel   string `name:"log-level" help:"Log level" enum:"debug,info,warn,error" default:"info"`
	LogFormat  string `name:"log-format" help:"Log output format" enum:"json,text" default:"json"`

	Resolve  ResolveCmd  `cmd:"" help:"Resolve a formula into its composition and properties"`
	Mass     MassCmd     `cmd:"" help:"Compute molar mass at tracked precision"`
	Charge   ChargeCmd   `cmd:"" help:"Report net charge candidates"`
	Strength StrengthCmd `cmd:"" help:"Classify a species by acid/base strength"`
	Tables   TablesGroup `cmd:"" help:"Dataset operations (info, export, verify)"`
	Serve    ServeCmd    `cmd:"" help:"Start the REST API and WebSocket server"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// loadRegistry returns the active reference tables: the --tables dataset
// when given, otherwise the embedded defaults.
func loadRegistry() (*chemdata.Registry, error) {
	if CLI.TablesPath != "" {
		logging.Debug("loading custom tables", "path", server.AbsPath(CLI.TablesPath))
		return tableload.Load(CLI.TablesPath)
	}
	return chemdata.Default()
}

// ResolveCmd resolves a formula and prints the full result.
type ResolveCmd struct {
	Formula   string         `arg:"" help:"Chemical formula, e.g. Al2(SO4)3"`
	Ions      bool           `help:"Recognize polyatomic ions"`
	Decompose bool           `help:"Expand recognized ions into element counts (implies --ions)"`
	Hint      map[string]int `help:"Pin an element to one ionic charge (symbol=charge)"`
	JSON      bool           `help:"Output as JSON"`
}

func (c *ResolveCmd) Run() error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	res, err := resolve.New(reg).Resolve(c.Formula, resolve.Options{
		Ions:          c.Ions || c.Decompose,
		DecomposeIons: c.Decompose,
		ChargeHints:   c.Hint,
	})
	if err != nil {
		return err
	}

	if c.JSON {
		output, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	printResult(res)
	return nil
}

func printResult(res *resolve.Result) {
	fmt.Printf("Formula: %s\n", res.Formula)

	if len(res.Elements) > 0 {
		fmt.Printf("  Elements:\n")
		for _, ec := range res.Elements {
			fmt.Printf("    %s x%d\n", ec.Symbol, ec.Count)
		}
	}

	if len(res.Ions) > 0 {
		fmt.Printf("  Ions:\n")
		for _, ic := range res.Ions {
			fmt.Printf("    %s x%d (charge %s)\n", ic.Key, ic.Count, formatCharge(ic.Charge))
		}
	}

	if len(res.Unresolved) > 0 {
		fmt.Printf("  Unresolved: %s\n", strings.Join(res.Unresolved, ", "))
	}

	fmt.Printf("  Mass: %s\n", massString(res.Mass))
	if res.Charge != nil {
		fmt.Printf("  Charge: %s\n", chargeString(res.Charge))
	}
	fmt.Printf("  Acidity: %s\n", strengthString(res.Acidity, "Ka"))
	fmt.Printf("  Basicity: %s\n", strengthString(res.Basicity, "Kb"))

	for _, warn := range res.Warnings {
		fmt.Printf("  [warn] %s\n", warn.Message)
	}
}

// massString renders a mass for humans: the tracked-precision form with
// its significant figure count, or "undefined" when absent.
func massString(m *chemdata.MassValue) string {
	if m == nil {
		return "undefined"
	}
	if m.Mode != chemdata.PrecisionSigFig {
		return strconv.FormatFloat(m.Value, 'g', -1, 64) + " g/mol"
	}
	return fmt.Sprintf("%s g/mol (%d sig figs)", m.String(), m.SigFigs)
}

// formatCharge renders one charge with an explicit sign, zero as "0".
func formatCharge(c int) string {
	if c == 0 {
		return "0"
	}
	return fmt.Sprintf("%+d", c)
}

// chargeString renders a candidate set: "+2", "+2 or +3", with a
// truncation note when the set was capped.
func chargeString(cs *resolve.ChargeSet) string {
	if cs.Certain() && !cs.Truncated {
		return formatCharge(cs.Candidates[0])
	}
	parts := make([]string, len(cs.Candidates))
	for i, c := range cs.Candidates {
		parts[i] = formatCharge(c)
	}
	s := strings.Join(parts, " or ")
	if cs.Truncated {
		s += " (truncated)"
	}
	return s
}

// strengthString renders a strength tier, with the measured constant
// when one exists.
func strengthString(si resolve.StrengthInfo, constant string) string {
	if si.Constant != nil {
		return fmt.Sprintf("%s (%s = %.3g)", si.Strength, constant, *si.Constant)
	}
	return string(si.Strength)
}

// MassCmd prints the molar mass of a formula.
type MassCmd struct {
	Formula   string `arg:"" help:"Chemical formula"`
	Ions      bool   `help:"Recognize polyatomic ions"`
	Decompose bool   `help:"Expand recognized ions into element counts (implies --ions)"`
	Raw       bool   `help:"Print the unrounded value"`
}

func (c *MassCmd) Run() error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	res, err := resolve.New(reg).Resolve(c.Formula, resolve.Options{
		Ions:          c.Ions || c.Decompose,
		DecomposeIons: c.Decompose,
	})
	if err != nil {
		return err
	}

	if res.Mass == nil {
		fmt.Println("undefined")
		for _, warn := range res.Warnings {
			fmt.Printf("  [warn] %s\n", warn.Message)
		}
		return nil
	}

	if c.Raw {
		fmt.Println(strconv.FormatFloat(res.Mass.Value, 'g', -1, 64))
		return nil
	}
	fmt.Println(res.Mass.String())
	return nil
}

// ChargeCmd prints the net charge candidates of a formula.
type ChargeCmd struct {
	Formula string         `arg:"" help:"Chemical formula"`
	Ions    bool           `help:"Recognize polyatomic ions"`
	Hint    map[string]int `help:"Pin an element to one ionic charge (symbol=charge)"`
}

func (c *ChargeCmd) Run() error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	res, err := resolve.New(reg).Resolve(c.Formula, resolve.Options{
		Ions:        c.Ions,
		ChargeHints: c.Hint,
	})
	if err != nil {
		return err
	}

	if res.Charge == nil {
		fmt.Println("undefined")
		for _, warn := range res.Warnings {
			fmt.Printf("  [warn] %s\n", warn.Message)
		}
		return nil
	}

	fmt.Println(chargeString(res.Charge))
	return nil
}

// StrengthCmd classifies a species by the dissociation tables.
type StrengthCmd struct {
	Species string `arg:"" help:"Species formula, e.g. CH3COOH"`
	JSON    bool   `help:"Output as JSON"`
}

func (c *StrengthCmd) Run() error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	acidity, basicity := resolve.New(reg).Strength(c.Species)

	if c.JSON {
		output, _ := json.MarshalIndent(map[string]resolve.StrengthInfo{
			"acidity":  acidity,
			"basicity": basicity,
		}, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("%s:\n", strings.TrimSpace(c.Species))
	fmt.Printf("  Acidity: %s\n", strengthString(acidity, "Ka"))
	fmt.Printf("  Basicity: %s\n", strengthString(basicity, "Kb"))
	return nil
}

// TablesGroup contains dataset operations.
type TablesGroup struct {
	Info   TablesInfoCmd   `cmd:"" help:"Show dataset identity and table counts"`
	Export TablesExportCmd `cmd:"" help:"Export the active dataset to a file"`
	Verify TablesVerifyCmd `cmd:"" help:"Load and validate a dataset file"`
}

// TablesInfoCmd shows the active dataset's identity and counts.
type TablesInfoCmd struct {
	JSON bool `help:"Output as JSON"`
}

func (c *TablesInfoCmd) Run() error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	stats := reg.Stats()

	if c.JSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Tables: %s\n", stats.Name)
	fmt.Printf("  Version: %s\n", stats.Version)
	fmt.Printf("  Elements: %d\n", stats.Elements)
	fmt.Printf("  Ions: %d\n", stats.Ions)
	fmt.Printf("  Ka entries: %d\n", stats.Ka)
	fmt.Printf("  Kb entries: %d\n", stats.Kb)
	fmt.Printf("  Fingerprint: %s\n", stats.Fingerprint)
	return nil
}

// TablesExportCmd writes the active dataset to a file.
type TablesExportCmd struct {
	Out      string `arg:"" help:"Output path (.json, .json.xz or .xml)" type:"path"`
	Compress bool   `help:"xz-compress JSON output"`
}

func (c *TablesExportCmd) Run() error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	if err := tableload.Export(reg, c.Out, c.Compress); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Printf("Exported: %s\n", c.Out)
	fmt.Printf("  Elements: %d\n", reg.ElementCount())
	fmt.Printf("  Ions: %d\n", reg.IonCount())
	fmt.Printf("  Fingerprint: %s\n", reg.Fingerprint())
	return nil
}

// TablesVerifyCmd loads a dataset file and reports whether it validates.
type TablesVerifyCmd struct {
	Path string `arg:"" help:"Dataset file to verify" type:"existingfile"`
}

func (c *TablesVerifyCmd) Run() error {
	reg, err := tableload.Load(c.Path)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	stats := reg.Stats()
	fmt.Printf("Dataset: %s\n", c.Path)
	fmt.Printf("  [OK] %d elements, %d ions, %d Ka, %d Kb\n",
		stats.Elements, stats.Ions, stats.Ka, stats.Kb)
	fmt.Printf("  Fingerprint: %s\n", stats.Fingerprint)
	fmt.Println("Verification passed!")
	return nil
}

// ServeCmd starts the REST API and WebSocket server.
type ServeCmd struct {
	Addr           string   `help:"Listen address" default:":8793"`
	CacheSize      int      `help:"Result cache entry cap (0 = default)"`
	RateLimit      int      `help:"Requests per minute per client (0 = disabled)"`
	RateLimitBurst int      `help:"Burst size for rate limiting"`
	Origins        []string `help:"Allowed CORS and WebSocket origins (default: allow all)"`
}

func (c *ServeCmd) Run() error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	srv, err := api.New(api.Config{
		Addr:              c.Addr,
		Registry:          reg,
		CacheSize:         c.CacheSize,
		RateLimitRequests: c.RateLimit,
		RateLimitBurst:    c.RateLimitBurst,
		AllowedOrigins:    c.Origins,
	})
	if err != nil {
		return err
	}

	return srv.Start()
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("cantus-chem version %s\n", version)

	info := sqlite.GetInfo()
	fmt.Printf("  SQLite driver: %s (%s)\n", info.DriverType, info.Package)

	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	fmt.Printf("  Tables: %s %s\n", reg.Name(), reg.Version())
	fmt.Printf("  Fingerprint: %s\n", reg.Fingerprint())
	return nil
}

func parseLogLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func parseLogFormat(s string) logging.Format {
	if s == "text" {
		return logging.FormatText
	}
	return logging.FormatJSON
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("cantus-chem"),
		kong.Description("Chemistry knowledge engine for formulas, compositions, and reference tables"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	logging.InitLogger(parseLogLevel(CLI.LogLevel), parseLogFormat(CLI.LogFormat))
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}

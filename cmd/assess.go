package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/idguard/pkg/aggregate"
	"github.com/user/idguard/pkg/config"
	"github.com/user/idguard/pkg/detect"
	"github.com/user/idguard/pkg/finding"
	"github.com/user/idguard/pkg/report"
)

// ErrCriticalFindings signals that the run completed but the aggregated set
// contains at least one CRITICAL finding. main maps it to exit code 2.
var ErrCriticalFindings = errors.New("critical findings detected")

var assessFlags struct {
	organization    string
	directoryConfig string
	privilege       string
	cloudDirectory  string
	attackPathDir   string
	riskScan        string
	catalogDir      string
	outputDir       string
}

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Run every configured detector and produce all reports",
	Long: `Assess loads the run configuration, runs each detector against its source
document, writes one technical report per source, aggregates all findings,
and renders the executive document. Findings flow to the aggregator in
memory; the technical reports are the human-readable export of the same
data, and "idguard summarize" re-aggregates from those files alone.

A source whose document cannot be parsed is reported and skipped; the run
continues with the remaining sources. A run with no usable source fails.`,
	RunE: runAssess,
}

func init() {
	f := assessCmd.Flags()
	f.StringVar(&assessFlags.organization, "org", "", "Organization name for the executive report")
	f.StringVar(&assessFlags.directoryConfig, "directory-config", "", "Directory configuration export (JSON)")
	f.StringVar(&assessFlags.privilege, "privilege", "", "Identity/privilege export (JSON)")
	f.StringVar(&assessFlags.cloudDirectory, "cloud-directory", "", "Cloud directory export (JSON)")
	f.StringVar(&assessFlags.attackPathDir, "attack-path", "", "Attack-path graph export directory")
	f.StringVar(&assessFlags.riskScan, "risk-scan", "", "External risk-scan report (XML or HTML)")
	f.StringVar(&assessFlags.catalogDir, "catalog", "", "Risk-rule catalog directory (optional)")
	f.StringVar(&assessFlags.outputDir, "out", "", "Report output directory")
	rootCmd.AddCommand(assessCmd)
}

// loadRunConfig merges the config file with command-line overrides. A
// missing config file is fine as long as flags name at least one source.
func loadRunConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &config.Config{OutputDir: "reports"}
	}
	if assessFlags.organization != "" {
		cfg.Organization = assessFlags.organization
	}
	if assessFlags.directoryConfig != "" {
		cfg.Sources.DirectoryConfig = assessFlags.directoryConfig
	}
	if assessFlags.privilege != "" {
		cfg.Sources.Privilege = assessFlags.privilege
	}
	if assessFlags.cloudDirectory != "" {
		cfg.Sources.CloudDirectory = assessFlags.cloudDirectory
	}
	if assessFlags.attackPathDir != "" {
		cfg.Sources.AttackPathDir = assessFlags.attackPathDir
	}
	if assessFlags.riskScan != "" {
		cfg.Sources.RiskScan = assessFlags.riskScan
	}
	if assessFlags.catalogDir != "" {
		cfg.CatalogDir = assessFlags.catalogDir
	}
	if assessFlags.outputDir != "" {
		cfg.OutputDir = assessFlags.outputDir
	}
	if cfg.Organization == "" {
		cfg.Organization = "Unnamed Organization"
	}
	return cfg, nil
}

func runAssess(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return err
	}

	var catalog *detect.RuleCatalog
	if cfg.CatalogDir != "" {
		catalog, err = detect.LoadCatalog(cfg.CatalogDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: rule catalog not loaded: %v\n", err)
			catalog = nil
		}
	}

	now := time.Now().UTC()
	sources := runDetectors(cfg, catalog, now)
	if len(sources) == 0 {
		return fmt.Errorf("no usable data sources; nothing to aggregate")
	}

	metrics := aggregate.Aggregate(sources, now)
	execPath := filepath.Join(cfg.OutputDir, "executive.html")
	out, err := os.Create(execPath)
	if err != nil {
		return err
	}
	if err := aggregate.RenderExecutive(out, metrics, cfg.Organization); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "risk score %d/100 across %d findings (%d critical, %d high)\n",
		metrics.RiskScore, metrics.Total,
		metrics.BySeverity[finding.SeverityCritical], metrics.BySeverity[finding.SeverityHigh])
	fmt.Fprintf(os.Stderr, "executive report written to %s\n", execPath)

	if metrics.HasCritical() {
		return ErrCriticalFindings
	}
	return nil
}

// runDetectors executes every configured detector, writing one technical
// report per source as it goes. Sources that cannot be assessed are skipped
// with a warning. Findings are returned in a fixed source order so
// aggregation stays deterministic.
func runDetectors(cfg *config.Config, catalog *detect.RuleCatalog, now time.Time) []aggregate.SourceFindings {
	var sources []aggregate.SourceFindings
	record := func(source string, findings []finding.Finding) {
		if _, err := writeTechnical(cfg.OutputDir, source, findings); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s report not written: %v\n", source, err)
		}
		sources = append(sources, aggregate.SourceFindings{Source: source, Findings: findings})
	}

	byteDetectors := []struct {
		path     string
		detector detect.Detector
	}{
		{cfg.Sources.DirectoryConfig, detect.DirectoryConfigDetector{}},
		{cfg.Sources.Privilege, detect.PrivilegeDetector{}},
		{cfg.Sources.CloudDirectory, detect.CloudDirectoryDetector{}},
		{cfg.Sources.RiskScan, detect.RiskScanDetector{Catalog: catalog}},
	}
	for _, d := range byteDetectors {
		if d.path == "" {
			continue
		}
		data, err := os.ReadFile(d.path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s could not be assessed: %v\n", d.detector.Source(), err)
			continue
		}
		findings, err := d.detector.Detect(data, now)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s could not be assessed: %v\n", d.detector.Source(), err)
			continue
		}
		record(d.detector.Source(), findings)
	}

	if cfg.Sources.AttackPathDir != "" {
		export, err := detect.LoadAttackPathDir(cfg.Sources.AttackPathDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s could not be assessed: %v\n", detect.SourceAttackPath, err)
		} else {
			record(detect.SourceAttackPath, detect.DetectAttackPath(export, now))
		}
	}
	return sources
}

func writeTechnical(dir, source string, findings []finding.Finding) (string, error) {
	path := filepath.Join(dir, source+".txt")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := report.WriteTechnical(f, findings); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	fmt.Fprintf(os.Stderr, "%s: %d findings -> %s\n", source, len(findings), path)
	return path, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/jsonutil"
	"github.com/auditview/auditview/pkg/manifest"
	"github.com/auditview/auditview/pkg/output"
	"github.com/auditview/auditview/pkg/output/baseline"
	"github.com/auditview/auditview/pkg/output/events"
	"github.com/auditview/auditview/pkg/output/exitcode"
	"github.com/auditview/auditview/pkg/output/policy"
	"github.com/auditview/auditview/pkg/report"
	"github.com/auditview/auditview/pkg/ui"
)

// checkResult is the -json output of check.
type checkResult struct {
	ReportID string   `json:"reportId"`
	Policy   string   `json:"policy"`
	Pass     bool     `json:"pass"`
	ExitCode int      `json:"exitCode"`
	Failures []string `json:"failures"`
	Ignored  int      `json:"ignored"`
	Packages int      `json:"packages"`
	Highest  string   `json:"highestSeverity,omitempty"`

	Baseline *baseline.ComparisonResult `json:"baseline,omitempty"`
}

// runCheck gates an audit against a policy without writing a report.
func runCheck(ctx context.Context, args []string, e env) exitcode.Code {
	fs := newFlagSet("check", "Gate `npm audit --json` output against a policy. Exits 1 when the policy fails.", e.stderr)
	var (
		cf           CommonFlags
		hf           HookFlags
		pol          string
		project      string
		asJSON       bool
		baselinePath string
		savePath     string
	)
	cf.Register(fs, true)
	hf.Register(fs, true)
	fs.StringVar(&pol, "policy", "standard", "Policy: permissive, standard, strict or a YAML path (empty skips the gate)")
	fs.StringVar(&project, "project", "", "Project directory: verifies package-lock.json and reads package.json")
	fs.BoolVar(&asJSON, "json", false, "Print the verdict as JSON on stdout")
	fs.StringVar(&baselinePath, "baseline", "", "Fail only on packages that are new or escalated since this baseline file")
	fs.StringVar(&savePath, "save-baseline", "", "Write this audit as the baseline file (keeps first-seen dates)")

	m := exitcode.New()
	ok, err := parseFlags(fs, args)
	if !ok {
		m.RecordError(err)
		return finish(e, m)
	}

	logger := cf.Apply(e.stderr)
	cfg := outputConfig(&cf, &hf, logger)

	if project != "" {
		if err := manifest.CheckLockfile(project); err != nil {
			if errors.Is(err, manifest.ErrLockfileNotFound) {
				err = fmt.Errorf("%w in %s; run `npm install` (or `npm i --package-lock-only`) first", err, project)
			}
			m.RecordError(err)
			return finish(e, m)
		}
		if cf.Manifest == "" {
			cf.Manifest = project
		}
	}

	if pol == "" && baselinePath == "" && savePath == "" {
		m.RecordError(fmt.Errorf("%w: nothing to check; pass -policy or -baseline", exitcode.ErrUsage))
		return finish(e, m)
	}
	var gate *policy.Policy
	if pol != "" {
		if gate, err = output.LoadPolicy(pol); err != nil {
			m.RecordError(err)
			return finish(e, m)
		}
	}
	var known *baseline.Baseline
	if baselinePath != "" {
		if known, err = baseline.LoadBaseline(baselinePath); err != nil {
			m.RecordError(err)
			return finish(e, m)
		}
	}
	tc, err := output.LoadReportConfig(cfg)
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}
	d, err := output.BuildDispatcher(cfg)
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("closing hooks", slog.String("error", err.Error()))
		}
	}()

	p, err := output.NewPipeline(tc, output.WriterConfig(cfg, tc, nil),
		output.WithDispatcher(d),
		output.WithSource(events.SourceCLI),
		output.WithLogger(logger),
	)
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}

	data, err := cf.ReadInput(e.stdin)
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}
	man, err := cf.LoadManifest()
	if err != nil && !errors.Is(err, manifest.ErrNotFound) {
		m.RecordError(err)
		return finish(e, m)
	}

	doc, err := p.Assemble(ctx, output.Input{Audit: data, Manifest: man})
	if err != nil {
		m.RecordError(err)
		return finish(e, m)
	}
	res := policy.Result{Pass: true, ExitCode: defaults.ExitSuccess}
	if gate != nil {
		if res, err = p.Gate(ctx, doc, gate); err != nil {
			m.RecordError(err)
			return finish(e, m)
		}
		m.RecordPolicy(res)
	}

	entries := baseline.ExtractEntries(doc.Vulnerabilities)
	var cmp *baseline.ComparisonResult
	var cmpGate policy.Result
	if known != nil {
		c := known.Compare(entries)
		cmp = &c
		cmpGate = baselineResult(c)
		m.RecordPolicy(cmpGate)
		logger.Info("baseline compared",
			slog.String("baseline", baselinePath),
			slog.Int("new", len(c.New)),
			slog.Int("escalated", len(c.Escalated)),
			slog.Int("fixed", len(c.Fixed)))
	}
	if savePath != "" {
		if err := saveBaseline(savePath, doc, entries); err != nil {
			m.RecordError(err)
			return finish(e, m)
		}
		logger.Info("baseline saved", slog.String("path", savePath), slog.Int("packages", len(entries)))
	}

	if asJSON {
		failures := append([]string{}, res.Failures...)
		failures = append(failures, cmpGate.Failures...)
		code, _ := m.ExitCode()
		out, err := jsonutil.MarshalIndent(checkResult{
			ReportID: doc.ID,
			Policy:   res.PolicyName,
			Pass:     code == exitcode.Success,
			ExitCode: int(code),
			Failures: failures,
			Ignored:  res.Summary.Ignored,
			Packages: doc.Counts.Listed,
			Highest:  string(doc.Counts.Highest()),
			Baseline: cmp,
		}, "", "  ")
		if err != nil {
			m.RecordError(err)
			return finish(e, m)
		}
		fmt.Fprintln(e.stdout, string(out))
	} else if !ui.IsSilent() {
		ui.PrintSummary(e.stdout, doc)
		if gate != nil {
			ui.PrintGate(e.stdout, res)
		}
		if cmp != nil {
			ui.PrintGate(e.stdout, cmpGate)
			fmt.Fprintln(e.stdout, "  "+cmp.Summary)
		}
	}
	return finish(e, m)
}

// baselineResult expresses a comparison as a gate verdict.
func baselineResult(c baseline.ComparisonResult) policy.Result {
	res := policy.Result{Pass: !c.HasRegression, PolicyName: "baseline", ExitCode: defaults.ExitSuccess}
	if c.HasRegression {
		res.Failures = c.Failures()
		res.ExitCode = defaults.ExitPolicyFailed
	}
	return res
}

// saveBaseline refreshes the baseline at path, or creates it.
func saveBaseline(path string, doc *report.Document, entries []baseline.Entry) error {
	b, err := baseline.LoadBaseline(path)
	switch {
	case errors.Is(err, baseline.ErrBaselineNotFound):
		b = baseline.CreateFromDocument(doc)
	case err != nil:
		return err
	default:
		b.Refresh(entries, doc.ID)
	}
	return b.SaveBaseline(path)
}

// Package pipeline compares two folders file by file following a rules file.
//
// For every rule, the files matching its patterns are discovered in both
// folders, sorted, and paired by position. Each pair is compared by the
// comparator registered for the rule kind. Pairs run concurrently, bounded
// by a shared Limiter; a pair that fails is recorded in the report and never
// aborts the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/csvcompare/internal/logging"
	"github.com/JonMunkholm/csvcompare/internal/metrics"
	"github.com/JonMunkholm/csvcompare/internal/report"
	"github.com/JonMunkholm/csvcompare/internal/rules"
)

var errNotDir = errors.New("not a directory")

// DefaultPairTimeout bounds one pair comparison when none is configured.
const DefaultPairTimeout = 5 * time.Minute

// Pipeline runs folder comparisons.
type Pipeline struct {
	limiter     *Limiter
	pairTimeout time.Duration
}

// New creates a pipeline. A nil limiter allows DefaultMaxConcurrent pairs.
func New(limiter *Limiter, pairTimeout time.Duration) *Pipeline {
	if limiter == nil {
		limiter = NewLimiter(DefaultMaxConcurrent, 0)
	}
	if pairTimeout <= 0 {
		pairTimeout = DefaultPairTimeout
	}
	return &Pipeline{limiter: limiter, pairTimeout: pairTimeout}
}

// Limiter returns the limiter bounding this pipeline.
func (p *Pipeline) Limiter() *Limiter {
	return p.limiter
}

// Run compares nominalDir against actualDir with every rule of rf, in rule
// order. The returned error is only set when ctx ends; comparison failures
// are part of the report.
func (p *Pipeline) Run(ctx context.Context, nominalDir, actualDir string, rf *rules.File) (*report.Run, error) {
	run := report.NewRun(report.SourceCLI)
	run.NominalDir = nominalDir
	run.ActualDir = actualDir
	ctx = logging.ContextWithRunID(ctx, run.ID.String())

	logging.FromContext(ctx).Info("comparison run started",
		"nominal", nominalDir,
		"actual", actualDir,
		"rules", len(rf.Rules),
	)

	for i := range rf.Rules {
		result, err := p.runRule(ctx, nominalDir, actualDir, &rf.Rules[i])
		if err != nil {
			return nil, err
		}
		run.Rules = append(run.Rules, result)
	}

	run.Finish()
	metrics.ObserveRun(run.AllOkay)

	files, failed := run.Counts()
	logging.FromContext(ctx).Info("comparison run finished",
		"all_okay", run.AllOkay,
		"files", files,
		"failed", failed,
		"duration", run.Duration,
	)
	return run, nil
}

func (p *Pipeline) runRule(ctx context.Context, nominalDir, actualDir string, rule *rules.Rule) (report.RuleResult, error) {
	logger := logging.WithFields(ctx, "rule", rule.Name)
	result := newRuleResult(rule)

	comparator, ok := Get(rule.Kind())
	if !ok {
		result.Error = fmt.Sprintf("no comparator registered for %s (known: %v)", rule.Kind(), Kinds())
		logger.Error("rule failed", "error", result.Error)
		return result, nil
	}
	return p.runRuleWith(ctx, nominalDir, actualDir, rule, comparator)
}

func (p *Pipeline) runRuleWith(ctx context.Context, nominalDir, actualDir string, rule *rules.Rule, comparator Comparator) (report.RuleResult, error) {
	logger := logging.WithFields(ctx, "rule", rule.Name)
	result := newRuleResult(rule)

	nominalFiles, err := Discover(nominalDir, rule.PatternInclude, rule.PatternExclude)
	if err != nil {
		result.Error = "nominal " + err.Error()
		logger.Error("rule failed", "error", err)
		return result, nil
	}
	actualFiles, err := Discover(actualDir, rule.PatternInclude, rule.PatternExclude)
	if err != nil {
		result.Error = "actual " + err.Error()
		logger.Error("rule failed", "error", err)
		return result, nil
	}

	logger.Info("files discovered", "nominal", len(nominalFiles), "actual", len(actualFiles))
	if len(nominalFiles) != len(actualFiles) {
		logger.Warn("folders hold a different number of matching files, surplus files are not compared",
			"nominal", len(nominalFiles),
			"actual", len(actualFiles),
		)
	}

	pairs := Zip(nominalFiles, actualFiles)
	files := make([]report.FileResult, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	for i, pair := range pairs {
		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				return err
			}
			defer p.limiter.Release()

			files[i] = p.comparePair(gctx, comparator, rule,
				filepath.Join(nominalDir, filepath.FromSlash(pair.Nominal)),
				filepath.Join(actualDir, filepath.FromSlash(pair.Actual)),
				pair.RelativePath,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	result.Files = files
	return result, nil
}

func newRuleResult(rule *rules.Rule) report.RuleResult {
	return report.RuleResult{
		Name:           rule.Name,
		Kind:           string(rule.Kind()),
		PatternInclude: rule.PatternInclude,
		PatternExclude: rule.PatternExclude,
		Files:          []report.FileResult{},
	}
}

// comparePair runs one comparison under the pair timeout and records its
// metrics. It never fails; errors become part of the result.
func (p *Pipeline) comparePair(ctx context.Context, c Comparator, rule *rules.Rule, nominal, actual, relPath string) report.FileResult {
	logger := logging.WithFields(ctx, "rule", rule.Name, "file", relPath)
	ctx, cancel := context.WithTimeout(ctx, p.pairTimeout)
	defer cancel()

	start := time.Now()
	res, err := c.Compare(ctx, nominal, actual, rule)
	elapsed := time.Since(start)

	metrics.ObservePair(string(rule.Kind()), metrics.ResultOf(err, res.IsError), elapsed, res.BytesRead)
	if err != nil {
		logger.Error("comparison failed", "error", err)
		res = report.Failed(nominal, actual, err)
	} else {
		metrics.ObserveDiffs(res.Diffs)
		if res.IsError {
			logger.Warn("files differ", "diffs", len(res.Diffs))
		} else {
			logger.Info("files match")
		}
	}

	res.RelativePath = relPath
	res.Duration = elapsed
	return res
}

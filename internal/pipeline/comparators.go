package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/JonMunkholm/csvcompare/internal/core"
	"github.com/JonMunkholm/csvcompare/internal/report"
	"github.com/JonMunkholm/csvcompare/internal/rules"
)

func compareCSV(ctx context.Context, nominal, actual string, rule *rules.Rule) (report.FileResult, error) {
	res, err := core.ComparePaths(ctx, nominal, actual, rule.CSV.CompareConfig())
	if err != nil {
		return report.FileResult{}, err
	}
	return report.FromCompareResult(nominal, actual, res), nil
}

func compareHash(ctx context.Context, nominal, actual string, rule *rules.Rule) (report.FileResult, error) {
	start := time.Now()

	nomSum, nomSize, err := sha256File(nominal)
	if err != nil {
		return report.FileResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return report.FileResult{}, err
	}
	actSum, actSize, err := sha256File(actual)
	if err != nil {
		return report.FileResult{}, err
	}

	res := report.FileResult{
		Nominal:   nominal,
		Actual:    actual,
		BytesRead: nomSize + actSize,
		Hash:      &report.HashDetail{Function: rule.Hash.Function, Nominal: nomSum, Actual: actSum},
		Duration:  time.Since(start),
	}
	res.IsError = !res.Hash.Match()
	return res, nil
}

func sha256File(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", core.ErrFileAccess, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("%w: hashing %s: %v", core.ErrFileAccess, path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

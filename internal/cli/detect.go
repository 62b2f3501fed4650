package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dumpkit/internal/core"
	"dumpkit/internal/detector"
	"dumpkit/internal/reader"
)

// detectDialect samples path's header through the byte reader and runs
// the dialect detector, returning its winning dialect regardless of
// confidence (callers that care about confidence use detectCmd).
func detectDialect(path string) (core.Dialect, error) {
	result, err := runDetect(path)
	if err != nil {
		return "", err
	}
	return result.Dialect, nil
}

func runDetect(path string) (detector.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return detector.Result{}, fmt.Errorf("stat %s: %w", path, err)
	}
	rd, err := reader.Open(path, info.Size(), reader.NewRegistry())
	if err != nil {
		return detector.Result{}, err
	}
	defer rd.Close()
	return detector.Detect(rd)
}

func newDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <dump>",
		Short: "Guess the SQL dialect a dump file was produced by",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runDetect(args[0])
			if err != nil {
				return err
			}
			log := newStatusLog(cmd)
			log.Summary("dialect: %s (confidence: %s)", result.Dialect, result.Confidence)
			return nil
		},
	}
	return cmd
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var (
	runDocumentsFile string
	runDocumentIDs   []string
)

var runCmd = &cobra.Command{
	Use:   "run [mappingId]",
	Short: "Execute a mapping against a batch of document ids",
	Long: `Run loads the named mapping and processes the given document ids
through the Execution Engine, printing the resulting Result as JSON.

Examples:
  docxferctl run orders-v1 --ids DOC1,DOC2,DOC3
  docxferctl run orders-v1 --file doc-ids.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSliceVar(&runDocumentIDs, "ids", nil, "comma-separated document ids to process")
	runCmd.Flags().StringVar(&runDocumentsFile, "file", "", "path to a file with one document id per line")
}

func runRun(cmd *cobra.Command, args []string) error {
	mappingID := args[0]

	ids := append([]string(nil), runDocumentIDs...)
	if len(runDocumentsFile) > 0 {
		fromFile, err := readIDsFile(runDocumentsFile)
		if err != nil {
			return err
		}
		ids = append(ids, fromFile...)
	}
	if len(ids) == 0 {
		return errors.New("docxferctl run: no document ids given, use --ids or --file")
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	a.startBackground()
	defer a.stop()

	result, err := a.engine.ProcessDocuments(context.Background(), mappingID, ids)
	if err != nil {
		return errors.Wrap(err, "docxferctl run: execution failed")
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func readIDsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "docxferctl run: open %q", path)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := sc.Text(); len(line) > 0 {
			ids = append(ids, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "docxferctl run: read %q", path)
	}
	return ids, nil
}

package executor

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/retrieval-engine/pkg/errors"
)

// WriteRun writes results in TREC run format, one line per ranked
// document: "qid Q0 docid rank score tag". Failed queries are omitted.
func WriteRun(w io.Writer, runTag string, results []BatchResult) error {
	if runTag == "" || strings.ContainsAny(runTag, " \t\n") {
		return apperrors.Invalidf("run tag %q must be a single non-empty word", runTag)
	}
	bw := bufio.NewWriter(w)
	for _, r := range results {
		if r.Err != nil || r.Result == nil {
			continue
		}
		for rank, d := range r.Result.Results {
			_, err := fmt.Fprintf(bw, "%s Q0 %s %d %s %s\n",
				r.QueryID, d.DocID, rank+1, strconv.FormatFloat(d.Score, 'f', 6, 64), runTag)
			if err != nil {
				return fmt.Errorf("writing run line: %w", err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing run: %w", err)
	}
	return nil
}

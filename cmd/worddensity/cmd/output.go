package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density"
	apperrors "github.com/Adithya-Monish-Kumar-K/worddensity/pkg/errors"
)

const topicsHeader = "Most relevant topics are:"

func printReport(w io.Writer, report *density.Report, opts *options) error {
	if opts.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	if _, err := fmt.Fprintln(w, topicsHeader); err != nil {
		return err
	}
	for _, p := range report.Phrases {
		var err error
		if opts.showFreq {
			_, err = fmt.Fprintf(w, "%s (%d)\n", p.Phrase, p.Frequency)
		} else {
			_, err = fmt.Fprintln(w, p.Phrase)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// userError reduces an AppError to its user-facing message.
func userError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return errors.New(appErr.Message)
	}
	return err
}

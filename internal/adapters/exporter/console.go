package exporter

import (
	"fmt"
	"io"
	"os"

	"telegram-intel/internal/domain"
	"telegram-intel/internal/ports"
)

// ConsoleExporter реализует интерфейс OutcomeExporter для вывода итогов в консоль.
type ConsoleExporter struct {
	out io.Writer
}

// NewConsoleExporter создает новый экземпляр ConsoleExporter. nil означает os.Stdout.
func NewConsoleExporter(out io.Writer) ports.OutcomeExporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleExporter{out: out}
}

// Export выводит итог прогона по одной цели.
func (e *ConsoleExporter) Export(target string, outcome domain.CollectionOutcome, runErr error) error {
	if _, err := fmt.Fprintf(e.out, "--- %s ---\n", target); err != nil {
		return err
	}
	fmt.Fprintln(e.out, outcome.Message)

	if outcome.ChatID != nil {
		fmt.Fprintf(e.out, "Chat ID: %d\n", *outcome.ChatID)
	}
	if outcome.Status != nil {
		fmt.Fprintf(e.out, "Status: %s\n", *outcome.Status)
	}
	if runErr != nil {
		fmt.Fprintf(e.out, "Error: %v\n", runErr)
	}
	return nil
}

package main

import (
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"telegram-intel/internal/adapters/exporter"
	"telegram-intel/internal/adapters/parser"
	"telegram-intel/internal/adapters/source"
	"telegram-intel/internal/app"
	"telegram-intel/internal/core/services"
	"telegram-intel/internal/ports"
	"telegram-intel/internal/server"
	"telegram-intel/internal/server/usecase"
)

var (
	targetsFile string
	limit       int
	noProgress  bool
)

func init() {
	collectCmd := &cobra.Command{
		Use:   "collect [target...]",
		Short: "Collect chat metadata and participants",
		Long: `collect runs the collection pipeline for every target on behalf of the
application user given by --email. Targets are numeric IDs, @usernames,
t.me links or invite links, given as arguments or in a JSON/YAML file.`,
		RunE: runCollect,
	}
	collectCmd.Flags().StringVar(&email, "email", "", "Application user email")
	collectCmd.Flags().StringVarP(&targetsFile, "input-file", "f", "", "JSON or YAML file with targets")
	collectCmd.Flags().IntVar(&limit, "limit", 0, "Maximum participants per chat (0 for the configured default)")
	collectCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	_ = collectCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	var (
		src  ports.DataSource
		prsr ports.TargetParser
	)
	switch {
	case targetsFile != "":
		src = source.NewFileSource(targetsFile)
		prsr = parser.ForFile(targetsFile)
	case len(args) > 0:
		src = source.NewArgsSource(args)
		prsr = parser.NewJsonParser()
	default:
		return fmt.Errorf("укажите цели аргументами или через --input-file")
	}

	data, err := src.Fetch()
	if err != nil {
		return err
	}
	refs, err := prsr.Parse(data)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	user, err := store.GetAppUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("пользователь %s не найден", email)
	}

	progress := &barProgress{enabled: !noProgress}
	collector, err := app.NewCollector(cfg, store, nil, logger, services.WithProgress(progress.update))
	if err != nil {
		return err
	}
	trigger := usecase.NewCollectChatUseCase(collector, store, server.NewRunStore(), usecase.WithLogger(logger))
	out := exporter.NewConsoleExporter(cmd.OutOrStdout())

	var failed int
	for _, ref := range refs {
		outcome, runErr := trigger.TriggerCollection(ctx, user.ID, ref, limit)
		progress.finish()
		if runErr != nil {
			failed++
		}
		if err := out.Export(ref.String(), outcome, runErr); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("сбор завершился с ошибками для %d из %d целей", failed, len(refs))
	}
	return nil
}

// barProgress рисует прогресс перечисления участников одной цели.
type barProgress struct {
	enabled bool
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
}

func (p *barProgress) update(collected, total int) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		size := int64(-1)
		if total > 0 {
			size = int64(total)
		}
		p.bar = progressbar.Default(size, "participants")
	} else if total > 0 && int64(total) != p.bar.GetMax64() {
		p.bar.ChangeMax(total)
	}
	_ = p.bar.Set(collected)
}

func (p *barProgress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

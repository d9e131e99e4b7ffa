package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/abhisek/smartrepeat/internal/console"
	"github.com/abhisek/smartrepeat/internal/generation"
	"github.com/abhisek/smartrepeat/internal/llm"
	"github.com/abhisek/smartrepeat/internal/session"
	"github.com/abhisek/smartrepeat/internal/smartrepeat"
	"github.com/abhisek/smartrepeat/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var repeatCmd = &cobra.Command{
	Use:   "repeat",
	Short: "Run a Smart Repeat pass in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		profile, _ := cmd.Flags().GetString("profile")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		if _, err := st.ProfileRepo().EnsureProfile(ctx, user, profile); err != nil {
			return fmt.Errorf("prepare profile: %w", err)
		}

		vocab, err := store.NewCachedVocabulary(st.VocabRepo(), appConfig.Cache.VocabularySize)
		if err != nil {
			return err
		}

		provider, err := llm.Open(ctx, appConfig.LLM, st.EventRepo(), logger)
		if err != nil {
			logger.Warn("generation service unavailable", zap.Error(err))
			fmt.Fprintln(cmd.ErrOrStderr(), "Generation service not configured:", err)
			fmt.Fprintln(cmd.ErrOrStderr(), "Writing analysis and text drills will use built-in fallbacks.")
		}

		sessions := session.NewStore(logger, time.Now)
		defer sessions.Close()

		engine := smartrepeat.New(appConfig.Engine(), smartrepeat.Deps{
			Sessions:    sessions,
			Recovery:    session.NewRecovery(st.ProfileRepo(), time.Now, logger),
			Vocabulary:  vocab,
			Progress:    st.ProfileRepo(),
			Completions: st.CompletionRepo(),
			Generator:   generation.New(provider, appConfig.GenerationGateway(), logger),
			Logger:      logger,
		})

		term := console.New(engine, user, profile, cmd.OutOrStdout(), logger)
		monitor := session.NewMonitor(sessions, appConfig.SessionPolicy(), appConfig.SweepInterval(), logger)
		monitor.OnExpire = term.Expired

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return monitor.Run(gctx)
		})
		g.Go(func() error {
			defer cancel()
			return term.Run(gctx, cmd.InOrStdin())
		})
		if err := g.Wait(); err != nil {
			return err
		}
		logger.Info("repeat finished", zap.String("user", user), zap.String("profile", profile))
		return nil
	},
}

func init() {
	repeatCmd.Flags().StringP("user", "u", defaultUser(), "User to drill")
	repeatCmd.Flags().StringP("profile", "p", smartrepeat.DefaultProfile, "Vocabulary profile")
}

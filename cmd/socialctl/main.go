// Command socialctl signs in against the social API with a session token and
// runs one command through a client session.
//
//	socialctl [--seed local.json] [--watch 2m] <command> [args]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"habitSocialAPI/internal/apperr"
	"habitSocialAPI/internal/cache"
	"habitSocialAPI/internal/config"
	"habitSocialAPI/internal/gateway"
	"habitSocialAPI/internal/session"
	"habitSocialAPI/internal/types/habit"
	"habitSocialAPI/internal/types/stats"
	"habitSocialAPI/internal/workers"
	"habitSocialAPI/utils"
)

// step is one parsed command line: an optional intent to dispatch and an
// optional view printed afterwards.
type step struct {
	cmd  session.Command
	view func(ctx context.Context, s *session.Session, res any) (any, error)
}

// seed is the on-disk shape of --seed.
type seed struct {
	Habits []habit.Habit `json:"habits"`
	Tasks  []habit.Task  `json:"tasks"`
	Goals  []habit.Goal  `json:"goals"`
}

type app struct {
	seedPath string
	watch    time.Duration
	out      io.Writer
	logger   *zap.Logger
	// exec runs a parsed step against a signed-in session.
	exec func(ctx context.Context, st step) error
}

func main() {
	logger := utils.InitLogger("socialctl")
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout, logger: logger}
	a.exec = a.run
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		logger.Error("command failed", zap.String("kind", string(apperr.KindOf(err))), zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "socialctl",
		Short:         "Drive a social session from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.seedPath, "seed", "", "JSON file with local habits, tasks and goals")
	root.PersistentFlags().DurationVar(&a.watch, "watch", 0, "keep syncing friends in the background for this long after the command")

	root.AddCommand(
		a.command("refresh", "List challenges after a refresh", cobra.NoArgs, func([]string) (step, error) {
			return step{view: func(ctx context.Context, s *session.Session, _ any) (any, error) {
				return s.Challenges.Snapshot(), nil
			}}, nil
		}),
		a.command("join <challenge-id>", "Join a challenge", cobra.ExactArgs(1), func(args []string) (step, error) {
			id, err := parseID("join", args[0])
			if err != nil {
				return step{}, err
			}
			return step{cmd: session.JoinChallenge{ChallengeID: id}, view: challengeView(id)}, nil
		}),
		a.command("leave <challenge-id>", "Leave a challenge", cobra.ExactArgs(1), func(args []string) (step, error) {
			id, err := parseID("leave", args[0])
			if err != nil {
				return step{}, err
			}
			return step{cmd: session.LeaveChallenge{ChallengeID: id}, view: challengeView(id)}, nil
		}),
		a.command("friends", "Show friends and pending requests", cobra.NoArgs, func([]string) (step, error) {
			return step{view: friendLists}, nil
		}),
		a.command("request <username> [message...]", "Send a friend request", cobra.MinimumNArgs(1), func(args []string) (step, error) {
			cmd := session.SendFriendRequest{ToUsername: args[0]}
			if len(args) > 1 {
				msg := strings.Join(args[1:], " ")
				cmd.Message = &msg
			}
			return step{cmd: cmd}, nil
		}),
		a.command("accept <request-id>", "Accept an incoming friend request", cobra.ExactArgs(1), func(args []string) (step, error) {
			id, err := parseID("accept", args[0])
			if err != nil {
				return step{}, err
			}
			return step{cmd: session.AcceptFriendRequest{RequestID: id}, view: friendLists}, nil
		}),
		a.command("decline <request-id>", "Decline an incoming friend request", cobra.ExactArgs(1), func(args []string) (step, error) {
			id, err := parseID("decline", args[0])
			if err != nil {
				return step{}, err
			}
			return step{cmd: session.DeclineFriendRequest{RequestID: id}, view: friendLists}, nil
		}),
		a.command("unfriend <user-id>", "Remove a friend", cobra.ExactArgs(1), func(args []string) (step, error) {
			id, err := parseID("unfriend", args[0])
			if err != nil {
				return step{}, err
			}
			return step{cmd: session.RemoveFriend{FriendID: id}, view: friendLists}, nil
		}),
		a.command("cancel <username>", "Withdraw an outgoing friend request", cobra.ExactArgs(1), func(args []string) (step, error) {
			return step{cmd: session.CancelFriendRequest{ToUsername: args[0]}, view: friendLists}, nil
		}),
		a.command("search <query...>", "Search users by name", cobra.MinimumNArgs(1), func(args []string) (step, error) {
			q := strings.Join(args, " ")
			return step{view: func(ctx context.Context, s *session.Session, _ any) (any, error) {
				return s.Friends.Search(ctx, q)
			}}, nil
		}),
		a.command("feed [user-id]", "Show the friends feed or one user's activities", cobra.MaximumNArgs(1), func(args []string) (step, error) {
			if len(args) == 0 {
				return step{view: func(ctx context.Context, s *session.Session, _ any) (any, error) {
					return s.Feed.FriendsFeed(ctx)
				}}, nil
			}
			id, err := parseID("feed", args[0])
			if err != nil {
				return step{}, err
			}
			return step{view: func(ctx context.Context, s *session.Session, _ any) (any, error) {
				return s.Feed.Activities(ctx, id)
			}}, nil
		}),
		a.command("stats <user-id>", "Show a user's statistics", cobra.ExactArgs(1), func(args []string) (step, error) {
			id, err := parseID("stats", args[0])
			if err != nil {
				return step{}, err
			}
			return step{view: func(ctx context.Context, s *session.Session, _ any) (any, error) {
				return s.Stats.Stats(ctx, id)
			}}, nil
		}),
	)
	return root
}

// command builds a sub-command whose argument errors surface as validation
// errors like every other bad input.
func (a *app) command(use, short string, args cobra.PositionalArgs, parse func([]string) (step, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args: func(cmd *cobra.Command, argv []string) error {
			if err := args(cmd, argv); err != nil {
				return apperr.Validation(err.Error())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, argv []string) error {
			st, err := parse(argv)
			if err != nil {
				return err
			}
			return a.exec(cmd.Context(), st)
		},
	}
}

func parseID(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation(fmt.Sprintf("%s: invalid id %q", name, raw))
	}
	return id, nil
}

func challengeView(id uuid.UUID) func(context.Context, *session.Session, any) (any, error) {
	return func(ctx context.Context, s *session.Session, _ any) (any, error) {
		c, _ := s.Challenges.Challenge(id)
		return c, nil
	}
}

func (a *app) run(ctx context.Context, st step) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.SessionToken == "" {
		return apperr.New(apperr.KindAuth, apperr.CodeUnauthorized, "SESSION_TOKEN is not set")
	}
	logger := a.logger

	gateway.RegisterMetrics()
	clientCfg := gateway.DefaultConfig()
	clientCfg.BaseURL = cfg.APIBaseURL
	gw := gateway.NewHTTPGateway(clientCfg, cfg.SessionToken)
	defer gw.Close()

	me, err := gw.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, err := session.New(gw, session.Options{
		User:                    me.Summary(),
		MutationTimeout:         cfg.MutationTimeout,
		StatsTimeout:            cfg.StatsTimeout,
		StatsCacheTTL:           cfg.StatsCacheTTL,
		StatsCache:              cache.NewMemoryCache[stats.UserStatistics](),
		RemoteActivitiesEnabled: cfg.RemoteActivitiesEnabled,
		Logger:                  logger,
		OnAuthExpired: func() {
			logger.Warn("session token rejected, signing out")
			cancel()
		},
	})
	if err != nil {
		return err
	}
	defer sess.SignOut()

	if a.seedPath != "" {
		if err := loadSeed(sess, a.seedPath); err != nil {
			return err
		}
	}

	if err := prime(ctx, sess); err != nil {
		return err
	}

	var res any
	if st.cmd != nil {
		if res, err = sess.Dispatch(ctx, st.cmd); err != nil {
			return err
		}
	}
	if st.view != nil {
		if res, err = st.view(ctx, sess, res); err != nil {
			return err
		}
	}
	if err := printJSON(a.out, res); err != nil {
		return err
	}

	if a.watch > 0 {
		wctx, wcancel := context.WithTimeout(ctx, a.watch)
		defer wcancel()
		<-workers.StartFriendSyncWorker(wctx, sess.Friends, cfg.FriendSyncInterval, logger)
	}
	return nil
}

// prime loads remote state so commands that look entities up locally, such
// as join or accept, can find them.
func prime(ctx context.Context, s *session.Session) error {
	if _, err := s.Dispatch(ctx, session.RefreshChallenges{}); err != nil {
		return fmt.Errorf("load challenges: %w", err)
	}
	if _, err := s.Dispatch(ctx, session.SyncFriends{Force: true}); err != nil {
		return fmt.Errorf("load friends: %w", err)
	}
	return nil
}

func loadSeed(s *session.Session, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	var sd seed
	if err := json.Unmarshal(data, &sd); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	if err := s.Habits.Replace(sd.Habits); err != nil {
		return err
	}
	if err := s.Tasks.Replace(sd.Tasks); err != nil {
		return err
	}
	return s.Goals.Replace(sd.Goals)
}

func friendLists(ctx context.Context, s *session.Session, _ any) (any, error) {
	return map[string]any{
		"friends":  s.Friends.Friends(),
		"incoming": s.Friends.Incoming(),
		"outgoing": s.Friends.Outgoing(),
	}, nil
}

func printJSON(w io.Writer, v any) error {
	if v == nil {
		v = map[string]bool{"ok": true}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package sessionctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/chat-session-client/internal/config"
	"github.com/sandeepkv93/chat-session-client/internal/di"
	"github.com/sandeepkv93/chat-session-client/internal/domain"
	"github.com/sandeepkv93/chat-session-client/internal/security"
	"github.com/sandeepkv93/chat-session-client/internal/service"
	"github.com/sandeepkv93/chat-session-client/internal/tools/common"
	"github.com/sandeepkv93/chat-session-client/internal/tools/ui"
)

type options struct {
	envFile string
	ci      bool
	timeout time.Duration
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Drive the chat client session from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file applied before reading the environment")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "deadline for one-shot commands")
	cmd.AddCommand(
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newRegisterCommand(opts),
		newStatusCommand(opts),
		newVerifyCommand(opts),
		newRefreshCommand(opts),
		newProfileCommand(opts),
		newSetCommand(opts),
		newServeCommand(opts),
	)
	return cmd
}

func newLoginCommand(opts *options) *cobra.Command {
	var creds domain.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if creds.Password == "" {
				creds.Password = os.Getenv("SESSIONCTL_PASSWORD")
			}
			return opts.run(cmd, "sessionctl login", func(ctx context.Context, s *di.Session) (map[string]any, error) {
				if _, err := s.Manager.Login(ctx, creds); err != nil {
					return nil, err
				}
				return describeSession(s.Manager.Snapshot()), nil
			})
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password (or SESSIONCTL_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, "sessionctl logout", func(ctx context.Context, s *di.Session) (map[string]any, error) {
				s.Manager.Logout(ctx)
				return describeSession(s.Manager.Snapshot()), nil
			})
		},
	}
}

func newRegisterCommand(opts *options) *cobra.Command {
	var reg domain.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account without logging in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if reg.Password == "" {
				reg.Password = os.Getenv("SESSIONCTL_PASSWORD")
			}
			return opts.run(cmd, "sessionctl register", func(ctx context.Context, s *di.Session) (map[string]any, error) {
				return s.Manager.Register(ctx, reg)
			})
		},
	}
	cmd.Flags().StringVar(&reg.Name, "name", "", "display name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "account password (or SESSIONCTL_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session after the idle check",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, "sessionctl status", func(ctx context.Context, s *di.Session) (map[string]any, error) {
				return describeSession(s.Manager.Snapshot()), nil
			})
		},
	}
}

func newVerifyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the stored credential, refreshing once if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, "sessionctl verify", func(ctx context.Context, s *di.Session) (map[string]any, error) {
				if err := s.Manager.VerifyToken(ctx); err != nil {
					return describeSession(s.Manager.Snapshot()), err
				}
				return describeSession(s.Manager.Snapshot()), nil
			})
		},
	}
}

func newRefreshCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored credential for a new one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, "sessionctl refresh", func(ctx context.Context, s *di.Session) (map[string]any, error) {
				if _, err := s.Manager.RefreshToken(ctx); err != nil {
					return nil, err
				}
				return describeSession(s.Manager.Snapshot()), nil
			})
		},
	}
}

func newProfileCommand(opts *options) *cobra.Command {
	var fields []string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update the remote profile with key=value pairs",
		RunE: func(cmd *cobra.Command, args []string) error {
			updates, err := parseFields(fields)
			if err != nil {
				return err
			}
			return opts.run(cmd, "sessionctl profile", func(ctx context.Context, s *di.Session) (map[string]any, error) {
				rec, err := s.Manager.UpdateProfile(ctx, updates)
				if err != nil {
					return nil, err
				}
				if rec == nil {
					return nil, domain.ErrNoCredential
				}
				return describeSession(s.Manager.Snapshot()), nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&fields, "set", nil, "profile field as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

func newSetCommand(opts *options) *cobra.Command {
	var clearLocal bool
	cmd := &cobra.Command{
		Use:   "set [key=value...]",
		Short: "Merge fields into the stored session without contacting the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			var fields map[string]any
			if !clearLocal {
				if len(args) == 0 {
					return errors.New("set: pass key=value pairs or --clear")
				}
				var err error
				if fields, err = parseFields(args); err != nil {
					return err
				}
			}
			return opts.run(cmd, "sessionctl set", func(ctx context.Context, s *di.Session) (map[string]any, error) {
				if _, err := s.Manager.UpdateUser(ctx, fields); err != nil {
					return nil, err
				}
				return describeSession(s.Manager.Snapshot()), nil
			})
		},
	}
	cmd.Flags().BoolVar(&clearLocal, "clear", false, "drop the local session only")
	return cmd
}

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the view host with the idle check and realtime connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := di.InitializeApp(ctx, cfg)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			return a.Run(ctx)
		},
	}
}

func (o *options) loadConfig() (*config.Config, error) {
	if err := common.LoadEnvFile(o.envFile); err != nil {
		return nil, err
	}
	return config.Load()
}

// run restores the stored session, executes fn and reports the outcome
// either as JSON (--ci) or through the interactive progress view.
func (o *options) run(cmd *cobra.Command, title string, fn func(context.Context, *di.Session) (map[string]any, error)) error {
	cfg, err := o.loadConfig()
	if err != nil {
		if o.ci {
			return common.PrintCIResult(cmd.OutOrStdout(), title, nil, err)
		}
		return err
	}
	exec := func(ctx context.Context) (map[string]any, error) {
		s, err := di.InitializeSession(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("initialize session: %w", err)
		}
		defer func() {
			if cerr := s.Close(context.Background()); cerr != nil {
				s.Logger.Warn("release session resources", "error", cerr)
			}
		}()
		s.Manager.Initialize(ctx)
		return fn(ctx, s)
	}

	if o.ci {
		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		ctx, cancel := context.WithTimeout(parent, o.timeout)
		defer cancel()
		data, err := exec(ctx)
		return common.PrintCIResult(cmd.OutOrStdout(), title, data, err)
	}
	_, err = ui.Run(title, func(ctx context.Context) ([]string, error) {
		ctx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		data, err := exec(ctx)
		return detailLines(data), err
	})
	return err
}

func describeSession(snap service.Snapshot) map[string]any {
	out := map[string]any{
		"authenticated": snap.IsAuthenticated,
		"state":         snap.State.String(),
	}
	if snap.User == nil {
		return out
	}
	out["session_id"] = snap.User.SessionID
	if name := snap.User.ProfileString("name"); name != "" {
		out["name"] = name
	}
	if email := snap.User.ProfileString("email"); email != "" {
		out["email"] = email
	}
	if snap.User.LastActivity > 0 {
		out["last_activity"] = time.UnixMilli(snap.User.LastActivity).UTC().Format(time.RFC3339)
	}
	if exp, ok := security.ExpiresAt(snap.User.Token); ok {
		out["token_expires_at"] = exp.UTC().Format(time.RFC3339)
	}
	return out
}

func parseFields(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q: expected key=value", p)
		}
		out[key] = value
	}
	return out, nil
}

func detailLines(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, data[k]))
	}
	return lines
}
